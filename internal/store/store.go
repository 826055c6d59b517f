package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ewoo/marketdraft/internal/model"
)

// Config holds writer settings.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	RetryBaseWait time.Duration
	RetryMaxWait  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     500,
		FlushInterval: 1 * time.Second,
		RetryBaseWait: 1 * time.Second,
		RetryMaxWait:  30 * time.Second,
	}
}

// Metrics counts writer activity.
type Metrics struct {
	PickInserts    int64
	SessionUpserts int64
	Conflicts      int64
	Errors         int64
	Flushes        int64
}

// batchSender is the slice of the connection pool the writer uses.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Postgres persists picks and session state asynchronously. RecordPick and
// RecordSessionState enqueue and return immediately: a failing database is
// retried with backoff and never rolls back or blocks the in-memory commit.
// Implements draft.Recorder.
type Postgres struct {
	cfg    Config
	db     batchSender
	logger *slog.Logger

	picks    *queue[model.Pick]
	sessions *queue[model.DraftSession]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	metrics Metrics
	backoff time.Duration // current retry wait, 0 when healthy
}

// NewPostgres creates a store writing to db.
func NewPostgres(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Postgres{
		cfg:      cfg,
		logger:   logger,
		picks:    newQueue[model.Pick](cfg.BatchSize),
		sessions: newQueue[model.DraftSession](cfg.BatchSize),
	}
	if db != nil {
		p.db = db
	}
	return p
}

// Start begins the background flush loop.
func (p *Postgres) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.flushLoop()

	p.logger.Info("store started",
		"batch_size", p.cfg.BatchSize,
		"flush_interval", p.cfg.FlushInterval,
	)
	return nil
}

// Stop flushes remaining work and shuts down.
func (p *Postgres) Stop(ctx context.Context) error {
	p.logger.Info("stopping store")

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("store stop timed out")
	}

	p.picks.Close()
	p.sessions.Close()

	// Drain everything still queued with a fresh context; p.ctx is already
	// cancelled. Each flush pass writes at most one batch per queue, so loop
	// until both queues are empty or a pass stops making progress.
	for ctx.Err() == nil {
		remaining := p.picks.Len() + p.sessions.Len()
		if remaining == 0 {
			break
		}
		p.flush(ctx)
		if left := p.picks.Len() + p.sessions.Len(); left >= remaining {
			p.logger.Error("final flush stalled, dropping queued writes", "remaining", left)
			break
		}
	}

	p.logger.Info("store stopped")
	return nil
}

// RecordPick enqueues a pick for durable insert. Never blocks.
func (p *Postgres) RecordPick(_ context.Context, pick model.Pick) error {
	p.picks.Push(pick)
	return nil
}

// RecordSessionState enqueues a session snapshot for durable upsert. Never
// blocks.
func (p *Postgres) RecordSessionState(_ context.Context, session model.DraftSession) error {
	p.sessions.Push(session)
	return nil
}

// Stats returns current writer metrics.
func (p *Postgres) Stats() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.metrics
}

// flushLoop periodically drains both queues into the database.
func (p *Postgres) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.flush(p.ctx)
		}
	}
}

// flush writes queued picks and sessions. Failed batches are requeued and the
// next flush backs off exponentially until a write succeeds.
func (p *Postgres) flush(ctx context.Context) {
	if p.db == nil {
		return
	}

	p.mu.Lock()
	wait := p.backoff
	p.mu.Unlock()
	if wait > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}

	okPicks := p.flushPicks(ctx)
	okSessions := p.flushSessions(ctx)

	p.mu.Lock()
	if okPicks && okSessions {
		p.backoff = 0
	} else {
		if p.backoff == 0 {
			p.backoff = p.cfg.RetryBaseWait
		} else {
			p.backoff *= 2
			if p.backoff > p.cfg.RetryMaxWait {
				p.backoff = p.cfg.RetryMaxWait
			}
		}
	}
	p.mu.Unlock()
}

// flushPicks inserts queued picks. Picks are immutable, so replays collapse
// via ON CONFLICT DO NOTHING.
func (p *Postgres) flushPicks(ctx context.Context) bool {
	rows := p.picks.Drain(p.cfg.BatchSize)
	if len(rows) == 0 {
		return true
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO picks (id, session_id, member_id, slot, asset_id, price_at_pick, picked_ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, r.ID, r.SessionID, r.MemberID, r.Slot, r.AssetID, r.PriceAtPick, r.PickedTS)
	}

	conflicts, err := p.sendBatch(ctx, batch, len(rows))
	if err != nil {
		p.logger.Error("pick batch insert failed", "error", err, "count", len(rows))
		p.picks.Requeue(rows)
		p.mu.Lock()
		p.metrics.Errors++
		p.mu.Unlock()
		return false
	}

	p.mu.Lock()
	p.metrics.PickInserts += int64(len(rows) - conflicts)
	p.metrics.Conflicts += int64(conflicts)
	p.metrics.Flushes++
	p.mu.Unlock()
	return true
}

// flushSessions upserts queued session snapshots, last write wins per id.
func (p *Postgres) flushSessions(ctx context.Context) bool {
	rows := p.sessions.Drain(p.cfg.BatchSize)
	if len(rows) == 0 {
		return true
	}

	// Only the newest snapshot per session matters.
	latest := make(map[string]model.DraftSession, len(rows))
	for _, r := range rows {
		if prev, ok := latest[r.ID.String()]; !ok || r.UpdatedAt >= prev.UpdatedAt {
			latest[r.ID.String()] = r
		}
	}

	batch := &pgx.Batch{}
	for _, r := range latest {
		batch.Queue(`
			INSERT INTO draft_sessions (id, league_id, state, turn_index, slots_per_member, turn_deadline, started_ts, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE SET
				state = EXCLUDED.state,
				turn_index = EXCLUDED.turn_index,
				turn_deadline = EXCLUDED.turn_deadline,
				updated_at = EXCLUDED.updated_at
			WHERE draft_sessions.updated_at <= EXCLUDED.updated_at
		`, r.ID, r.LeagueID, string(r.State), r.TurnIndex, r.SlotsPerMember, r.TurnDeadline, r.StartedTS, r.UpdatedAt)
	}

	_, err := p.sendBatch(ctx, batch, len(latest))
	if err != nil {
		p.logger.Error("session batch upsert failed", "error", err, "count", len(latest))
		p.sessions.Requeue(rows)
		p.mu.Lock()
		p.metrics.Errors++
		p.mu.Unlock()
		return false
	}

	p.mu.Lock()
	p.metrics.SessionUpserts += int64(len(latest))
	p.metrics.Flushes++
	p.mu.Unlock()
	return true
}

// sendBatch executes a pgx batch and counts conflict no-ops.
func (p *Postgres) sendBatch(ctx context.Context, batch *pgx.Batch, n int) (conflicts int, err error) {
	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < n; i++ {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}
	return conflicts, nil
}
