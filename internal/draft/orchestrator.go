package draft

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ewoo/marketdraft/internal/model"
)

// Orchestrator runs draft sessions. It exclusively owns session and pick
// mutation; all mutations for one session serialize on that session's lock,
// so exactly one SubmitPick can succeed per turn.
type Orchestrator struct {
	cfg      Config
	prices   PriceSource
	assets   AssetSubscriber
	recorder Recorder
	logger   *slog.Logger

	listenerMu sync.RWMutex
	listeners  []PickListener

	mu             sync.RWMutex
	sessions       map[uuid.UUID]*session
	activeByLeague map[uuid.UUID]uuid.UUID // league id → active session id
}

// session is the live state of one draft. All fields are guarded by mu.
type session struct {
	mu sync.Mutex

	id       uuid.UUID
	leagueID uuid.UUID
	state    model.SessionState

	order     []uuid.UUID       // turn sequence, possibly snake-expanded
	positions map[uuid.UUID]int // member → draft order position (0-based)
	slots     int               // roster slots per member

	pool      map[string]struct{} // assets still available
	filled    map[uuid.UUID]int   // member → committed pick count
	forfeited map[uuid.UUID]int   // member → slots lost to timeouts (late fill off)
	picks     []model.Pick

	turn          int // index into order; -1 when terminal
	turnGen       int64
	deadline      time.Time
	timer         *time.Timer
	turnTimeout   time.Duration
	allowLateFill bool

	startedTS int64
}

// NewOrchestrator creates an orchestrator. cfg supplies the session policy
// for sessions started without explicit options. prices and assets must not
// be nil; recorder may be nil when persistence is disabled.
func NewOrchestrator(cfg Config, prices PriceSource, assets AssetSubscriber, recorder Recorder, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:            cfg,
		prices:         prices,
		assets:         assets,
		recorder:       recorder,
		logger:         logger,
		sessions:       make(map[uuid.UUID]*session),
		activeByLeague: make(map[uuid.UUID]uuid.UUID),
	}
}

// AddPickListener registers a listener for committed picks.
func (o *Orchestrator) AddPickListener(l PickListener) {
	o.listenerMu.Lock()
	o.listeners = append(o.listeners, l)
	o.listenerMu.Unlock()
}

// StartSession creates and activates a draft session for a league. A nil
// opts uses the orchestrator's configured policy. Fails with ErrInvalidConfig
// if memberOrder is empty, slotsPerMember is not positive, the pool is empty,
// or the league already has an active session.
func (o *Orchestrator) StartSession(
	leagueID uuid.UUID,
	memberOrder []uuid.UUID,
	slotsPerMember int,
	assetPool []string,
	opts *SessionOptions,
) (uuid.UUID, error) {
	if len(memberOrder) == 0 || slotsPerMember <= 0 || len(assetPool) == 0 {
		return uuid.Nil, ErrInvalidConfig
	}

	if opts == nil {
		opts = &SessionOptions{
			TurnTimeout:   o.cfg.TurnTimeout,
			AllowLateFill: o.cfg.AllowLateFill,
			Snake:         o.cfg.Snake,
		}
	}
	if opts.Snake {
		memberOrder = BuildSnakeOrder(memberOrder, slotsPerMember)
	}

	positions := make(map[uuid.UUID]int)
	for _, m := range memberOrder {
		if _, ok := positions[m]; !ok {
			positions[m] = len(positions)
		}
	}

	pool := make(map[string]struct{}, len(assetPool))
	for _, a := range assetPool {
		pool[a] = struct{}{}
	}

	s := &session{
		id:            uuid.New(),
		leagueID:      leagueID,
		state:         model.SessionActive,
		order:         append([]uuid.UUID(nil), memberOrder...),
		positions:     positions,
		slots:         slotsPerMember,
		pool:          pool,
		filled:        make(map[uuid.UUID]int),
		forfeited:     make(map[uuid.UUID]int),
		turn:          0,
		turnTimeout:   opts.TurnTimeout,
		allowLateFill: opts.AllowLateFill,
		startedTS:     time.Now().UnixMicro(),
	}

	o.mu.Lock()
	if _, busy := o.activeByLeague[leagueID]; busy {
		o.mu.Unlock()
		return uuid.Nil, ErrInvalidConfig
	}
	o.sessions[s.id] = s
	o.activeByLeague[leagueID] = s.id
	o.mu.Unlock()

	s.mu.Lock()
	o.armTurnTimer(s)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	o.record(snap)

	o.logger.Info("draft session started",
		"session", s.id,
		"league", leagueID,
		"members", len(positions),
		"slots", slotsPerMember,
		"pool", len(pool),
	)

	return s.id, nil
}

// SubmitPick commits one pick for the member whose turn it is. On any failure
// the session state is unchanged.
func (o *Orchestrator) SubmitPick(sessionID, memberID uuid.UUID, assetID string) (model.Pick, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return model.Pick{}, err
	}

	s.mu.Lock()

	if s.state != model.SessionActive {
		s.mu.Unlock()
		return model.Pick{}, ErrSessionNotActive
	}
	if s.order[s.turn] != memberID {
		s.mu.Unlock()
		return model.Pick{}, ErrNotYourTurn
	}
	if s.filled[memberID] >= s.slots {
		s.mu.Unlock()
		return model.Pick{}, ErrRosterFull
	}
	if _, ok := s.pool[assetID]; !ok {
		s.mu.Unlock()
		return model.Pick{}, ErrAssetUnavailable
	}

	price := model.PriceUnpriced
	if tick, ok := o.prices.Latest(assetID); ok {
		price = tick.Price
	}

	pick := model.Pick{
		ID:          uuid.New(),
		SessionID:   s.id,
		MemberID:    memberID,
		Slot:        s.filled[memberID] + 1,
		AssetID:     assetID,
		PriceAtPick: price,
		PickedTS:    time.Now().UnixMicro(),
	}

	delete(s.pool, assetID)
	s.filled[memberID]++
	s.picks = append(s.picks, pick)

	o.advanceLocked(s)
	snap := s.snapshotLocked()

	o.emitPick(PickEvent{Pick: pick, Position: s.positions[memberID]})

	s.mu.Unlock()

	o.assets.Subscribe([]string{assetID})
	o.recordPick(pick)
	o.record(snap)

	o.logger.Info("pick committed",
		"session", s.id,
		"member", memberID,
		"asset", assetID,
		"slot", pick.Slot,
		"price", price,
	)

	return pick, nil
}

// SkipTurn advances the turn without creating a pick, for callers that drive
// their own turn clock. The member's slot stays unfilled; whether it can be
// filled on a later lap depends on the session's AllowLateFill option.
func (o *Orchestrator) SkipTurn(sessionID uuid.UUID) error {
	s, err := o.session(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != model.SessionActive {
		s.mu.Unlock()
		return ErrSessionNotActive
	}
	snap := o.skipLocked(s)
	s.mu.Unlock()

	o.record(snap)
	return nil
}

// Abort cancels a session. Pending turn timers become no-ops and the
// session's drafted assets are released from the feed subscription.
func (o *Orchestrator) Abort(sessionID uuid.UUID) error {
	s, err := o.session(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrSessionNotActive
	}
	s.state = model.SessionAborted
	s.turn = -1
	s.turnGen++ // invalidate in-flight timers
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	assets := make([]string, 0, len(s.picks))
	for _, p := range s.picks {
		assets = append(assets, p.AssetID)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	o.mu.Lock()
	if o.activeByLeague[s.leagueID] == s.id {
		delete(o.activeByLeague, s.leagueID)
	}
	o.mu.Unlock()

	if len(assets) > 0 {
		o.assets.Unsubscribe(assets)
	}
	o.emitSessionAborted(s.id)
	o.record(snap)

	o.logger.Info("draft session aborted", "session", s.id)
	return nil
}

// Status returns the read-only current-turn view for a session.
func (o *Orchestrator) Status(sessionID uuid.UUID) (TurnStatus, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return TurnStatus{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := TurnStatus{
		SessionID: s.id,
		State:     s.state,
		Remaining: make([]string, 0, len(s.pool)),
	}
	for a := range s.pool {
		st.Remaining = append(st.Remaining, a)
	}
	sort.Strings(st.Remaining)

	if s.state == model.SessionActive {
		st.Member = s.order[s.turn]
		if !s.deadline.IsZero() {
			st.Deadline = s.deadline
			if left := time.Until(s.deadline); left > 0 {
				st.TimeLeft = left
			}
		}
	}
	return st, nil
}

// Picks returns the committed pick history for a session, in commit order.
func (o *Orchestrator) Picks(sessionID uuid.UUID) ([]model.Pick, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Pick(nil), s.picks...), nil
}

// Snapshot returns the persistence view of a session.
func (o *Orchestrator) Snapshot(sessionID uuid.UUID) (model.DraftSession, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return model.DraftSession{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// Position returns a member's draft order position within a session.
func (o *Orchestrator) Position(sessionID, memberID uuid.UUID) (int, error) {
	s, err := o.session(sessionID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[memberID]
	if !ok {
		return 0, ErrSessionNotFound
	}
	return pos, nil
}

func (o *Orchestrator) session(id uuid.UUID) (*session, error) {
	o.mu.RLock()
	s, ok := o.sessions[id]
	o.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// skipLocked forfeits the current turn and advances. Caller holds s.mu and
// has verified the session is active.
func (o *Orchestrator) skipLocked(s *session) model.DraftSession {
	member := s.order[s.turn]
	if !s.allowLateFill {
		s.forfeited[member]++
	}

	o.logger.Info("turn skipped",
		"session", s.id,
		"member", member,
		"late_fill", s.allowLateFill,
	)

	o.advanceLocked(s)
	return s.snapshotLocked()
}

// advanceLocked moves the turn pointer to the next member owed a turn, or
// completes the session when none remains or the pool is exhausted. Caller
// holds s.mu.
func (o *Orchestrator) advanceLocked(s *session) {
	s.turnGen++ // any timer armed for the old turn is now stale
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.deadline = time.Time{}

	next, done := -1, true
	if len(s.pool) > 0 {
		next, done = nextTurn(s.order, s.turn, func(m uuid.UUID) bool {
			return s.filled[m]+s.forfeited[m] < s.slots
		})
	}

	if done {
		s.state = model.SessionCompleted
		s.turn = -1

		o.mu.Lock()
		if o.activeByLeague[s.leagueID] == s.id {
			delete(o.activeByLeague, s.leagueID)
		}
		o.mu.Unlock()

		o.logger.Info("draft session completed",
			"session", s.id,
			"picks", len(s.picks),
		)
		return
	}

	s.turn = next
	o.armTurnTimer(s)
}

// armTurnTimer schedules the turn clock for the member on the clock. Caller
// holds s.mu. A fired timer for an already-advanced turn is a no-op, guarded
// by the generation counter.
func (o *Orchestrator) armTurnTimer(s *session) {
	if s.turnTimeout <= 0 || s.state != model.SessionActive {
		return
	}

	gen := s.turnGen
	s.deadline = time.Now().Add(s.turnTimeout)
	s.timer = time.AfterFunc(s.turnTimeout, func() {
		o.expireTurn(s, gen)
	})
}

// expireTurn is the timer callback. Stale generations are no-ops: the member
// already picked or the turn was otherwise advanced before the timer fired.
func (o *Orchestrator) expireTurn(s *session, gen int64) {
	s.mu.Lock()
	if s.state != model.SessionActive || s.turnGen != gen {
		s.mu.Unlock()
		return
	}
	snap := o.skipLocked(s)
	s.mu.Unlock()

	o.record(snap)
}

// snapshotLocked builds the persistence view. Caller holds s.mu.
func (s *session) snapshotLocked() model.DraftSession {
	var deadline int64
	if !s.deadline.IsZero() {
		deadline = s.deadline.UnixMicro()
	}
	return model.DraftSession{
		ID:             s.id,
		LeagueID:       s.leagueID,
		State:          s.state,
		TurnOrder:      append([]uuid.UUID(nil), s.order...),
		TurnIndex:      s.turn,
		SlotsPerMember: s.slots,
		TurnDeadline:   deadline,
		StartedTS:      s.startedTS,
		UpdatedAt:      time.Now().UnixMicro(),
	}
}

// emitPick notifies listeners. Caller holds s.mu, which keeps pick delivery
// ordered per session.
func (o *Orchestrator) emitPick(ev PickEvent) {
	o.listenerMu.RLock()
	listeners := o.listeners
	o.listenerMu.RUnlock()

	for _, l := range listeners {
		l.OnPickCommitted(ev)
	}
}

// emitSessionAborted notifies pick listeners that also track the session
// lifecycle.
func (o *Orchestrator) emitSessionAborted(id uuid.UUID) {
	o.listenerMu.RLock()
	listeners := o.listeners
	o.listenerMu.RUnlock()

	for _, l := range listeners {
		if sl, ok := l.(SessionListener); ok {
			sl.OnSessionAborted(id)
		}
	}
}

func (o *Orchestrator) recordPick(pick model.Pick) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordPick(context.Background(), pick); err != nil {
		o.logger.Warn("record pick failed", "pick", pick.ID, "error", err)
	}
}

func (o *Orchestrator) record(snap model.DraftSession) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordSessionState(context.Background(), snap); err != nil {
		o.logger.Warn("record session state failed", "session", snap.ID, "error", err)
	}
}
