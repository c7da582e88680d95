package config

import "fmt"

// APIConfig configures the HTTP status and history API.
type APIConfig struct {
	// Address is the listen address; the API is disabled when empty.
	Address string `json:"address"`
	// Token enables bearer authentication when set.
	Token string `json:"token"`
	// MaxTicks bounds the number of records returned by /api/ticks.
	MaxTicks int `json:"max_ticks"`
}

func (c *APIConfig) SetDefaults() {
	if c.MaxTicks == 0 {
		c.MaxTicks = 1000
	}
}

func (c APIConfig) Validate() error {
	if c.MaxTicks < 0 {
		return fmt.Errorf("max_ticks must not be negative")
	}
	return nil
}

// Enabled reports whether the API server should run.
func (c APIConfig) Enabled() bool { return c.Address != "" }
