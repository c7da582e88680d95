package logging

import "fmt"

// Config selects the tick log backend.
type Config struct {
	// Backend is one of "memory", "jsonl", "rotating" or "sqlite".
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	// MemoryRecords bounds the memory backend.
	MemoryRecords int `json:"memory_records"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 7
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
	if c.MemoryRecords == 0 {
		c.MemoryRecords = 5760
	}
}

// Validate checks that the backend is known and has a path when required.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "jsonl", "rotating", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("tick log backend %s requires a path", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("unknown tick log backend %q", c.Backend)
	}
}

// Open creates the configured store.
func Open(c Config) (TickStore, error) {
	switch c.Backend {
	case "", "memory":
		return NewMemoryStore(c.MemoryRecords), nil
	case "jsonl":
		return NewJSONLStore(c.Path)
	case "rotating":
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(c.Path)
	default:
		return nil, fmt.Errorf("unknown tick log backend %q", c.Backend)
	}
}
