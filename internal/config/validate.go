package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *EngineConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Feed.WSURL == "" {
		return errors.New("feed.ws_url is required")
	}
	if c.Feed.ReconnectBaseDelay > c.Feed.ReconnectMaxDelay {
		return fmt.Errorf("feed.reconnect_base_delay %v exceeds feed.reconnect_max_delay %v",
			c.Feed.ReconnectBaseDelay, c.Feed.ReconnectMaxDelay)
	}
	if c.Feed.SubscribeRate < 0 {
		return errors.New("feed.subscribe_rate must be >= 0")
	}

	if c.Draft.TurnTimeout < 0 {
		return errors.New("draft.turn_timeout must be >= 0")
	}

	if c.Scoring.Multiplier < 0 {
		return errors.New("scoring.multiplier must be >= 0")
	}
	if c.Scoring.HistoryDepth < 1 {
		return errors.New("scoring.history_depth must be >= 1")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Port < 1 || db.Port > 65535 {
		return fmt.Errorf("%s.port must be between 1 and 65535, got %d", prefix, db.Port)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns %d exceeds %s.max_conns %d", prefix, db.MinConns, prefix, db.MaxConns)
	}
	return nil
}
