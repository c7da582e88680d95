package config

import (
	"fmt"

	"github.com/kilianp07/homebattery/core/dispatch/logging"
	"github.com/rs/zerolog"
)

// LoggingConfig defines the application log level and the tick log store.
type LoggingConfig struct {
	// Level overrides LOG_LEVEL when set.
	Level string `json:"level"`
	// Console selects the human readable output instead of JSON lines.
	Console bool           `json:"console"`
	Ticks   logging.Config `json:"ticks"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	c.Ticks.SetDefaults()
}

// Validate checks the level name and the tick store settings.
func (c LoggingConfig) Validate() error {
	if c.Level != "" {
		if _, err := zerolog.ParseLevel(c.Level); err != nil {
			return fmt.Errorf("invalid level %q: %w", c.Level, err)
		}
	}
	return c.Ticks.Validate()
}
