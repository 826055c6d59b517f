package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultSubscribeTimeout   = 10 * time.Second
	DefaultMessageBufferSize  = 10000
	DefaultSubscribeRate      = 10.0
	DefaultSubscribeBurst     = 20
	DefaultScoringMultiplier  = 1000 // 1x
	DefaultHistoryDepth       = 64
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
)

func (c *EngineConfig) applyDefaults() {
	// Feed defaults
	if c.Feed.ReconnectBaseDelay == 0 {
		c.Feed.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Feed.ReconnectMaxDelay == 0 {
		c.Feed.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.SubscribeTimeout == 0 {
		c.Feed.SubscribeTimeout = DefaultSubscribeTimeout
	}
	if c.Feed.MessageBufferSize == 0 {
		c.Feed.MessageBufferSize = DefaultMessageBufferSize
	}
	if c.Feed.SubscribeRate == 0 {
		c.Feed.SubscribeRate = DefaultSubscribeRate
	}
	if c.Feed.SubscribeBurst == 0 {
		c.Feed.SubscribeBurst = DefaultSubscribeBurst
	}

	// Scoring defaults
	if c.Scoring.Multiplier == 0 {
		c.Scoring.Multiplier = DefaultScoringMultiplier
	}
	if c.Scoring.HistoryDepth == 0 {
		c.Scoring.HistoryDepth = DefaultHistoryDepth
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}
}
