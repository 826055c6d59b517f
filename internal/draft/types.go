package draft

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ewoo/marketdraft/internal/model"
)

// Errors
var (
	ErrInvalidConfig    = errors.New("invalid session config")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionNotActive = errors.New("session not active")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrAssetUnavailable = errors.New("asset unavailable")
	ErrRosterFull       = errors.New("roster full")
)

// PriceSource supplies price snapshots at pick commit time. Satisfied by
// *pricecache.Cache.
type PriceSource interface {
	Latest(assetID string) (model.PriceTick, bool)
}

// AssetSubscriber tracks which assets need live prices. Satisfied by
// feed.Manager.
type AssetSubscriber interface {
	Subscribe(assetIDs []string)
	Unsubscribe(assetIDs []string)
}

// Recorder persists committed mutations. Calls are fire-and-forget from the
// orchestrator's perspective: in-memory state is authoritative for turn
// correctness, persistence is for durability. Implementations retry failures
// internally.
type Recorder interface {
	RecordPick(ctx context.Context, pick model.Pick) error
	RecordSessionState(ctx context.Context, session model.DraftSession) error
}

// PickEvent is the payload delivered to pick listeners.
type PickEvent struct {
	Pick     model.Pick
	Position int // picking member's draft order position (0-based)
}

// PickListener receives committed picks. Handlers run synchronously under the
// session lock and must not block.
type PickListener interface {
	OnPickCommitted(ev PickEvent)
}

// SessionListener receives session lifecycle events. Pick listeners that also
// implement it are notified when a session is aborted, so derived state
// (scoring, cache subscriptions) is released without a separate call.
type SessionListener interface {
	OnSessionAborted(sessionID uuid.UUID)
}

// Config holds orchestrator-wide session policy, applied to sessions started
// without explicit options.
type Config struct {
	TurnTimeout   time.Duration // 0 disables the turn clock
	AllowLateFill bool          // skipped slots may be filled on a later lap
	Snake         bool          // expand member order into a snake sequence
}

// SessionOptions configures one draft session at start time, overriding the
// orchestrator's defaults.
type SessionOptions struct {
	TurnTimeout   time.Duration // 0 disables the turn clock
	AllowLateFill bool          // skipped slots may be filled on a later lap
	Snake         bool          // expand member order into a snake sequence
}

// TurnStatus is the read-only view of a session's current turn.
type TurnStatus struct {
	SessionID uuid.UUID
	State     model.SessionState
	Member    uuid.UUID     // member on the clock; zero when terminal
	Remaining []string      // assets left in the pool, sorted
	Deadline  time.Time     // zero when untimed or terminal
	TimeLeft  time.Duration // 0 when untimed or terminal
}
