package config

import "time"

// EngineConfig is the root configuration for a draft engine instance.
type EngineConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	Feed     FeedConfig     `yaml:"feed"`
	Draft    DraftConfig    `yaml:"draft"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Database DBConfig       `yaml:"database"`
}

// InstanceConfig identifies this engine instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds upstream price feed settings.
type FeedConfig struct {
	WSURL              string        `yaml:"ws_url"`
	APIKey             string        `yaml:"api_key"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	SubscribeTimeout   time.Duration `yaml:"subscribe_timeout"`
	MessageBufferSize  int           `yaml:"message_buffer_size"`
	SubscribeRate      float64       `yaml:"subscribe_rate"`  // subscribe commands per second
	SubscribeBurst     int           `yaml:"subscribe_burst"` // subscribe command burst
}

// DraftConfig holds draft session settings.
type DraftConfig struct {
	TurnTimeout   time.Duration `yaml:"turn_timeout"`    // 0 disables turn clocks
	AllowLateFill bool          `yaml:"allow_late_fill"` // skipped slots may be filled on a later lap
	Snake         bool          `yaml:"snake"`           // expand member order into a snake sequence
}

// ScoringConfig holds scoring engine settings.
type ScoringConfig struct {
	Multiplier   int64 `yaml:"multiplier"`    // points per price delta, fixed-point /1000
	HistoryDepth int   `yaml:"history_depth"` // trailing ticks retained per asset
}

// DBConfig holds the persistence database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}
