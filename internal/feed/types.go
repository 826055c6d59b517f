package feed

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrTimeout         = errors.New("operation timeout")
	ErrAlreadyClosed   = errors.New("already closed")
)

// RawMessage wraps raw message bytes with the local receive timestamp.
type RawMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// Command is a command sent to the upstream feed.
type Command struct {
	ID     int64       `json:"id"`
	Cmd    string      `json:"cmd"`
	Params interface{} `json:"params"`
}

// SubscribeParams are parameters for a subscribe command.
type SubscribeParams struct {
	Channels []string `json:"channels"`
	AssetIDs []string `json:"asset_ids,omitempty"`
}

// UpdateSubscriptionParams are parameters for adding or removing assets on an
// existing subscription.
type UpdateSubscriptionParams struct {
	SIDs     []int64  `json:"sids"`
	Action   string   `json:"action"` // "add_assets" or "delete_assets"
	AssetIDs []string `json:"asset_ids"`
}

// Response is a command response from the upstream.
type Response struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"` // "subscribed", "unsubscribed", "error", "ok"
	Msg  json.RawMessage `json:"msg"`
}

// SubscribedMsg is the message content of a "subscribed" response.
type SubscribedMsg struct {
	SID     int64  `json:"sid"`
	Channel string `json:"channel"`
}

// ErrorMsg is the message content of an "error" response.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DataMessage is a data message from the upstream. Unknown fields are
// ignored; missing required fields reject the message.
type DataMessage struct {
	Type string          `json:"type"` // "price"
	SID  int64           `json:"sid"`
	Msg  json.RawMessage `json:"msg"`
}

// PriceMsg is the message content of a "price" data message.
type PriceMsg struct {
	AssetID string `json:"asset_id"`
	Price   *int   `json:"price"` // hundred-thousandths; pointer so absence rejects
	Seq     int64  `json:"seq"`
	TS      int64  `json:"ts"` // upstream timestamp (µs since epoch)
}

// ClientConfig configures a websocket feed connection.
type ClientConfig struct {
	URL          string        // Upstream websocket URL
	APIKey       string        // Bearer token, empty for unauthenticated feeds
	PingTimeout  time.Duration // Max quiet time before the connection is considered stale
	WriteTimeout time.Duration // Write deadline for sends
	BufferSize   int           // Message channel buffer size
}

// ManagerConfig configures the feed manager.
type ManagerConfig struct {
	WSURL              string        // Upstream websocket URL
	APIKey             string        // Bearer token
	SubscribeTimeout   time.Duration // Timeout for subscribe commands
	ReconnectBaseDelay time.Duration // Base delay for reconnection backoff
	ReconnectMaxDelay  time.Duration // Cap for reconnection backoff
	PingTimeout        time.Duration // Max quiet time before a connection is stale
	WriteTimeout       time.Duration // Write deadline for connection sends
	MessageBufferSize  int           // Connection message buffer size
	SubscribeRate      float64       // Subscribe commands per second (0 = unlimited)
	SubscribeBurst     int           // Subscribe command burst size
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		SubscribeTimeout:   10 * time.Second,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  30 * time.Second,
		PingTimeout:        60 * time.Second,
		WriteTimeout:       5 * time.Second,
		MessageBufferSize:  10000,
		SubscribeRate:      10,
		SubscribeBurst:     20,
	}
}

// ManagerStats provides statistics about the feed manager.
type ManagerStats struct {
	Connected     bool
	AssetsTracked int
	TicksApplied  int64
	TicksStale    int64
	ParseErrors   int64
	Reconnects    int64
}
