package config

import (
	"fmt"
	"time"
)

// Sources and backends shared by several sections.
const (
	SourceMQTT      = "mqtt"
	SourceSimulator = "simulator"
	SourceFile      = "file"
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
)

// TelemetryConfig selects where live readings come from.
type TelemetryConfig struct {
	// Source is "mqtt" or "simulator".
	Source        string `json:"source"`
	MaxAgeSeconds int    `json:"max_age_seconds"`
}

func (c *TelemetryConfig) SetDefaults() {
	if c.Source == "" {
		c.Source = SourceMQTT
	}
	if c.MaxAgeSeconds <= 0 {
		c.MaxAgeSeconds = 120
	}
}

func (c TelemetryConfig) Validate() error {
	if c.Source != SourceMQTT && c.Source != SourceSimulator {
		return fmt.Errorf("unknown telemetry source %q", c.Source)
	}
	return nil
}

// MaxAge is the age after which power readings are treated as missing.
func (c TelemetryConfig) MaxAge() time.Duration {
	if c.MaxAgeSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

// PlanConfig selects where the adjusted price schedule is read from.
type PlanConfig struct {
	// Source is "mqtt" (retained topic), "file" or "simulator".
	Source string `json:"source"`
	Path   string `json:"path"`
}

func (c *PlanConfig) SetDefaults() {
	if c.Source == "" {
		c.Source = SourceMQTT
	}
}

func (c PlanConfig) Validate() error {
	switch c.Source {
	case SourceMQTT, SourceSimulator:
		return nil
	case SourceFile:
		if c.Path == "" {
			return fmt.Errorf("plan file source requires a path")
		}
		return nil
	}
	return fmt.Errorf("unknown plan source %q", c.Source)
}

// StateConfig selects where the controller state is persisted.
type StateConfig struct {
	// Backend is "memory", "mqtt" (retained messages) or "sqlite".
	Backend string `json:"backend"`
	Path    string `json:"path"`
	// SettleMS bounds how long the mqtt backend waits for retained values.
	SettleMS int `json:"settle_ms"`
}

func (c *StateConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = SourceMQTT
	}
	if c.SettleMS == 0 {
		c.SettleMS = 2000
	}
}

func (c StateConfig) Validate() error {
	switch c.Backend {
	case BackendMemory, SourceMQTT:
		return nil
	case BackendSQLite:
		if c.Path == "" {
			return fmt.Errorf("sqlite state backend requires a path")
		}
		return nil
	}
	return fmt.Errorf("unknown state backend %q", c.Backend)
}

// Settle returns SettleMS as a duration.
func (c StateConfig) Settle() time.Duration {
	return time.Duration(c.SettleMS) * time.Millisecond
}
