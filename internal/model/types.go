package model

import "github.com/google/uuid"

// PriceUnpriced is the sentinel recorded when a pick is committed before the
// price cache has seen any tick for the asset. Scoring treats such a pick as
// contributing zero until a baseline is backfilled from the first applied tick.
const PriceUnpriced = -1

// -----------------------------------------------------------------------------
// League Types
// -----------------------------------------------------------------------------

// League represents a group of members that drafts together.
type League struct {
	ID        uuid.UUID // Primary key
	Name      string    // Display name
	SlotCount int       // Roster slots per member (N)
	CreatedTS int64     // Creation time (µs since epoch)
}

// Member represents one league participant.
type Member struct {
	ID          uuid.UUID // Primary key
	LeagueID    uuid.UUID // Foreign key to League
	Wallet      string    // Opaque wallet/identity reference
	DisplayName string    // Display name
}

// -----------------------------------------------------------------------------
// Draft Types
// -----------------------------------------------------------------------------

// SessionState is the lifecycle state of a draft session.
type SessionState string

const (
	SessionPending   SessionState = "pending"
	SessionActive    SessionState = "active"
	SessionCompleted SessionState = "completed"
	SessionAborted   SessionState = "aborted"
)

// Terminal reports whether the state admits no further transitions.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionAborted
}

// DraftSession is a snapshot of one draft's turn state. The orchestrator owns
// the live state; this struct is what callers and persistence see.
type DraftSession struct {
	ID             uuid.UUID    // Primary key
	LeagueID       uuid.UUID    // Foreign key to League
	State          SessionState // Current lifecycle state
	TurnOrder      []uuid.UUID  // Member turn sequence (snake pre-expanded by caller)
	TurnIndex      int          // Index into TurnOrder of the member on the clock
	SlotsPerMember int          // Roster slots each member fills (N)
	TurnDeadline   int64        // Deadline for the current turn (µs since epoch), 0 if untimed
	StartedTS      int64        // Session start time (µs since epoch)
	UpdatedAt      int64        // Last mutation time (µs since epoch)
}

// Pick binds one member, one roster slot, and one asset. Immutable once
// committed: (session, asset) and (member, slot) pairs are unique per session.
type Pick struct {
	ID          uuid.UUID // Primary key
	SessionID   uuid.UUID // Foreign key to DraftSession
	MemberID    uuid.UUID // Foreign key to Member
	Slot        int       // Roster slot index, 1..N, assigned in pick order per member
	AssetID     string    // Prediction-market outcome identifier
	PriceAtPick int       // Price snapshot at commit (hundred-thousandths), PriceUnpriced if none
	PickedTS    int64     // Commit time (µs since epoch)
}

// -----------------------------------------------------------------------------
// Price Types
// -----------------------------------------------------------------------------

// PriceTick is one price observation for one asset from the upstream feed.
type PriceTick struct {
	AssetID    string // Prediction-market outcome identifier
	Price      int    // Price (hundred-thousandths, 0-100,000)
	Seq        int64  // Upstream sequence number, monotonic per asset
	ExchangeTS int64  // Upstream server timestamp (µs since epoch)
	ReceivedAt int64  // Local receive timestamp (µs since epoch)
}

// -----------------------------------------------------------------------------
// Scoring Types
// -----------------------------------------------------------------------------

// ScoreEntry is one pick's points contribution, derived from price movement
// since the pick's baseline. Recomputed from (baseline, latest), never
// accumulated over tick history.
type ScoreEntry struct {
	SessionID uuid.UUID // Foreign key to DraftSession
	MemberID  uuid.UUID // Foreign key to Member
	AssetID   string    // Asset this contribution derives from
	Points    int64     // Contribution (fixed-point, scoring multiplier applied)
	Unpriced  bool      // True while the pick has no baseline yet
	UpdatedAt int64     // Last recompute time (µs since epoch)
}

// LeaderboardRow is one member's standing within a session.
type LeaderboardRow struct {
	MemberID uuid.UUID // Member
	Position int       // Draft order position (tie-break key)
	Total    int64     // Sum of the member's ScoreEntry points
}
