package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/ewoo/marketdraft/internal/model"
	"github.com/ewoo/marketdraft/internal/pricecache"
)

// Manager maintains one shared upstream connection and a reference-counted
// asset subscription set. Parsed ticks are written into the price cache; the
// cache decides whether each tick is applied or stale.
type Manager interface {
	// Start connects to the upstream and begins processing messages.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the connection.
	Stop(ctx context.Context) error

	// Subscribe adds a reference to each asset. Newly referenced assets are
	// subscribed upstream. Idempotent per caller reference.
	Subscribe(assetIDs []string)

	// Unsubscribe drops a reference from each asset. Assets that reach zero
	// references are unsubscribed upstream.
	Unsubscribe(assetIDs []string)

	// Stats returns current feed statistics.
	Stats() ManagerStats
}

// manager implements the Manager interface.
type manager struct {
	cfg    ManagerConfig
	cache  *pricecache.Cache
	logger *slog.Logger

	// newClient builds connections; swapped out in tests.
	newClient func(ClientConfig, *slog.Logger) Client

	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// resyncCh coalesces subscription change requests for the sync worker.
	resyncCh chan struct{}

	mu         sync.Mutex
	client     Client
	refs       map[string]int      // asset id → reference count
	subscribed map[string]struct{} // assets the upstream currently knows about
	sid        int64               // active upstream subscription id, 0 if none

	// Command/response correlation
	pendingMu sync.Mutex
	pending   map[int64]chan Response
	cmdID     int64 // atomic counter

	applied    atomic.Int64
	stale      atomic.Int64
	parseErrs  atomic.Int64
	reconnects atomic.Int64
}

// NewManager creates a feed manager writing into cache.
func NewManager(cfg ManagerConfig, cache *pricecache.Cache, logger *slog.Logger) Manager {
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.SubscribeRate > 0 {
		limit = rate.Limit(cfg.SubscribeRate)
	}
	burst := cfg.SubscribeBurst
	if burst < 1 {
		burst = 1
	}

	return &manager{
		cfg:        cfg,
		cache:      cache,
		logger:     logger,
		newClient:  NewClient,
		limiter:    rate.NewLimiter(limit, burst),
		resyncCh:   make(chan struct{}, 1),
		refs:       make(map[string]int),
		subscribed: make(map[string]struct{}),
		pending:    make(map[int64]chan Response),
	}
}

// Start connects and begins processing.
func (m *manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	client := m.newClient(m.clientConfig(), m.logger)
	if err := client.Connect(m.ctx); err != nil {
		return fmt.Errorf("connect feed: %w", err)
	}

	m.mu.Lock()
	m.client = client
	m.mu.Unlock()

	m.wg.Add(2)
	go m.readLoop(client)
	go m.syncLoop()

	m.logger.Info("feed manager started", "url", m.cfg.WSURL)
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping feed manager")

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("feed shutdown timeout, forcing close")
	}

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client != nil {
		client.Close()
	}

	m.logger.Info("feed manager stopped")
	return nil
}

// Subscribe adds references and schedules an upstream sync.
func (m *manager) Subscribe(assetIDs []string) {
	m.mu.Lock()
	for _, id := range assetIDs {
		m.refs[id]++
	}
	m.mu.Unlock()

	m.requestResync()
}

// Unsubscribe drops references and schedules an upstream sync.
func (m *manager) Unsubscribe(assetIDs []string) {
	m.mu.Lock()
	for _, id := range assetIDs {
		if m.refs[id] <= 1 {
			delete(m.refs, id)
		} else {
			m.refs[id]--
		}
	}
	m.mu.Unlock()

	m.requestResync()
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	client := m.client
	tracked := len(m.refs)
	m.mu.Unlock()

	connected := client != nil && client.IsConnected()

	return ManagerStats{
		Connected:     connected,
		AssetsTracked: tracked,
		TicksApplied:  m.applied.Load(),
		TicksStale:    m.stale.Load(),
		ParseErrors:   m.parseErrs.Load(),
		Reconnects:    m.reconnects.Load(),
	}
}

func (m *manager) clientConfig() ClientConfig {
	pingTimeout := m.cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 60 * time.Second
	}
	writeTimeout := m.cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return ClientConfig{
		URL:          m.cfg.WSURL,
		APIKey:       m.cfg.APIKey,
		PingTimeout:  pingTimeout,
		WriteTimeout: writeTimeout,
		BufferSize:   m.cfg.MessageBufferSize,
	}
}

// requestResync nudges the sync worker. The channel has capacity one, so
// bursts of changes coalesce into a single diff pass.
func (m *manager) requestResync() {
	select {
	case m.resyncCh <- struct{}{}:
	default:
	}
}

// syncLoop reconciles the upstream subscription with the reference-counted
// want-set. All subscribe traffic is serialized here, so add and delete
// commands can never race each other.
func (m *manager) syncLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.resyncCh:
			if err := m.syncSubscriptions(); err != nil {
				m.logger.Warn("subscription sync failed", "error", err)
				// Leave state as-is; next change or reconnect retries.
			}
		}
	}
}

// syncSubscriptions diffs want vs subscribed and issues upstream commands.
func (m *manager) syncSubscriptions() error {
	m.mu.Lock()
	client := m.client
	sid := m.sid

	var toAdd, toDelete []string
	for id := range m.refs {
		if _, ok := m.subscribed[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for id := range m.subscribed {
		if _, ok := m.refs[id]; !ok {
			toDelete = append(toDelete, id)
		}
	}
	m.mu.Unlock()

	if client == nil || !client.IsConnected() {
		return nil // reconnect path will resync
	}
	if len(toAdd) == 0 && len(toDelete) == 0 {
		return nil
	}

	if err := m.limiter.Wait(m.ctx); err != nil {
		return err
	}

	if sid == 0 {
		if len(toAdd) == 0 {
			return nil
		}
		newSID, err := m.sendSubscribe(client, toAdd)
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.sid = newSID
		for _, id := range toAdd {
			m.subscribed[id] = struct{}{}
		}
		m.mu.Unlock()
		return nil
	}

	if len(toAdd) > 0 {
		if err := m.sendUpdate(client, sid, "add_assets", toAdd); err != nil {
			return err
		}
		m.mu.Lock()
		for _, id := range toAdd {
			m.subscribed[id] = struct{}{}
		}
		m.mu.Unlock()
	}

	if len(toDelete) > 0 {
		if err := m.sendUpdate(client, sid, "delete_assets", toDelete); err != nil {
			return err
		}
		m.mu.Lock()
		for _, id := range toDelete {
			delete(m.subscribed, id)
		}
		m.mu.Unlock()
	}

	return nil
}

// sendSubscribe issues a subscribe command for the price channel and returns
// the upstream subscription id.
func (m *manager) sendSubscribe(client Client, assetIDs []string) (int64, error) {
	resp, err := m.sendCommand(client, "subscribe", SubscribeParams{
		Channels: []string{"price"},
		AssetIDs: assetIDs,
	})
	if err != nil {
		return 0, err
	}

	var subMsg SubscribedMsg
	if err := json.Unmarshal(resp.Msg, &subMsg); err != nil {
		return 0, fmt.Errorf("parse subscribed response: %w", err)
	}
	if subMsg.SID == 0 {
		// Marking the assets subscribed without a sid would desync the diff
		// state; leave the want-set untouched so the next sync retries.
		return 0, fmt.Errorf("subscribed response missing sid")
	}

	m.logger.Debug("subscribed",
		"assets", len(assetIDs),
		"sid", subMsg.SID,
	)
	return subMsg.SID, nil
}

// sendUpdate issues an update_subscription command on an existing sid.
func (m *manager) sendUpdate(client Client, sid int64, action string, assetIDs []string) error {
	_, err := m.sendCommand(client, "update_subscription", UpdateSubscriptionParams{
		SIDs:     []int64{sid},
		Action:   action,
		AssetIDs: assetIDs,
	})
	if err != nil {
		return err
	}

	m.logger.Debug("subscription updated",
		"action", action,
		"assets", len(assetIDs),
		"sid", sid,
	)
	return nil
}

// sendCommand sends a command and waits for its correlated response.
func (m *manager) sendCommand(client Client, cmd string, params interface{}) (Response, error) {
	id := atomic.AddInt64(&m.cmdID, 1)
	respCh := make(chan Response, 1)

	m.pendingMu.Lock()
	m.pending[id] = respCh
	m.pendingMu.Unlock()

	defer func() {
		m.pendingMu.Lock()
		delete(m.pending, id)
		m.pendingMu.Unlock()
	}()

	data, _ := json.Marshal(Command{ID: id, Cmd: cmd, Params: params})
	if err := client.Send(data); err != nil {
		return Response{}, err
	}

	select {
	case <-m.ctx.Done():
		return Response{}, m.ctx.Err()
	case <-time.After(m.cfg.SubscribeTimeout):
		return Response{}, ErrTimeout
	case resp := <-respCh:
		if resp.Type == "error" {
			var errMsg ErrorMsg
			json.Unmarshal(resp.Msg, &errMsg)
			return Response{}, fmt.Errorf("%s: %s", errMsg.Code, errMsg.Message)
		}
		return resp, nil
	}
}

// readLoop consumes messages and errors from one connection until it dies.
func (m *manager) readLoop(client Client) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-client.Errors():
			m.logger.Warn("feed connection error", "error", err)
			m.wg.Add(1)
			go m.reconnect(client)
			return

		case msg, ok := <-client.Messages():
			if !ok {
				return
			}
			m.handleMessage(msg)
		}
	}
}

// handleMessage parses one inbound message. Malformed messages are dropped
// and logged; they never take down the read loop.
func (m *manager) handleMessage(msg RawMessage) {
	if resp, ok := tryParseResponse(msg.Data); ok {
		m.routeResponse(resp)
		return
	}

	tick, err := parseTick(msg)
	if err != nil {
		m.parseErrs.Add(1)
		m.logger.Warn("dropping malformed message", "error", err)
		return
	}

	if m.cache.Update(tick) {
		m.applied.Add(1)
	} else {
		m.stale.Add(1)
	}
}

// routeResponse delivers a command response to the waiting goroutine.
func (m *manager) routeResponse(resp Response) {
	m.pendingMu.Lock()
	ch, ok := m.pending[resp.ID]
	if ok {
		delete(m.pending, resp.ID)
	}
	m.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// tryParseResponse attempts to parse a message as a command response.
func tryParseResponse(data []byte) (Response, bool) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, false
	}
	if resp.ID == 0 {
		return Response{}, false
	}

	switch resp.Type {
	case "subscribed", "unsubscribed", "error", "ok":
		return resp, true
	}

	return Response{}, false
}

// parseTick parses a "price" data message into a model.PriceTick. Messages
// missing required fields are rejected; unknown fields are ignored.
func parseTick(msg RawMessage) (model.PriceTick, error) {
	var data DataMessage
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return model.PriceTick{}, fmt.Errorf("parse envelope: %w", err)
	}
	if data.Type != "price" {
		return model.PriceTick{}, fmt.Errorf("unknown message type %q", data.Type)
	}

	var price PriceMsg
	if err := json.Unmarshal(data.Msg, &price); err != nil {
		return model.PriceTick{}, fmt.Errorf("parse price msg: %w", err)
	}
	if price.AssetID == "" {
		return model.PriceTick{}, fmt.Errorf("price msg missing asset_id")
	}
	if price.Price == nil {
		return model.PriceTick{}, fmt.Errorf("price msg missing price")
	}
	if price.Seq <= 0 {
		return model.PriceTick{}, fmt.Errorf("price msg missing seq")
	}

	return model.PriceTick{
		AssetID:    price.AssetID,
		Price:      *price.Price,
		Seq:        price.Seq,
		ExchangeTS: price.TS,
		ReceivedAt: msg.ReceivedAt.UnixMicro(),
	}, nil
}

// reconnect replaces a dead connection with exponential backoff and full
// jitter, then re-issues the subscribe for the entire current asset set. The
// upstream has no session memory across connections.
func (m *manager) reconnect(old Client) {
	defer m.wg.Done()

	old.Close()

	// The upstream forgot everything; the next sync starts from scratch.
	m.mu.Lock()
	m.subscribed = make(map[string]struct{})
	m.sid = 0
	m.mu.Unlock()

	delay := m.cfg.ReconnectBaseDelay

	for attempt := 1; ; attempt++ {
		// Full jitter: sleep a uniform random duration up to the current cap.
		wait := time.Duration(rand.Int64N(int64(delay) + 1))

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(wait):
		}

		m.logger.Info("attempting feed reconnection", "attempt", attempt)

		client := m.newClient(m.clientConfig(), m.logger)
		if err := client.Connect(m.ctx); err != nil {
			m.logger.Warn("feed reconnection failed",
				"attempt", attempt,
				"error", err,
			)

			delay *= 2
			if delay > m.cfg.ReconnectMaxDelay {
				delay = m.cfg.ReconnectMaxDelay
			}
			continue
		}

		m.reconnects.Add(1)
		m.logger.Info("feed reconnected", "attempt", attempt)

		m.mu.Lock()
		m.client = client
		m.mu.Unlock()

		m.wg.Add(1)
		go m.readLoop(client)

		m.requestResync()
		return
	}
}
