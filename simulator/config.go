// Package simulator runs the dispatch controller against a simulated home:
// a battery, a PV and household load profile, a price plan and a simple
// price-threshold optimizer, all driven by a virtual clock.
package simulator

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulation.
type Config struct {
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Step     time.Duration `json:"step"`
	// InitialSocPercent is the state of charge at Start.
	InitialSocPercent float64 `json:"initial_soc_percent"`
	PeakPVW           float64 `json:"peak_pv_w"`
	BaseLoadW         float64 `json:"base_load_w"`
	EveningLoadW      float64 `json:"evening_load_w"`
	// Noise is the relative amplitude of the random variation applied to the
	// PV and load profiles.
	Noise float64 `json:"noise"`
	Seed  int64   `json:"seed"`
}

// SetDefaults fills unset values with a one day simulation of a small
// installation.
func (c *Config) SetDefaults() {
	if c.Start.IsZero() {
		now := time.Now()
		c.Start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}
	if c.Duration == 0 {
		c.Duration = 24 * time.Hour
	}
	if c.Step == 0 {
		c.Step = 15 * time.Second
	}
	if c.InitialSocPercent == 0 {
		c.InitialSocPercent = 50
	}
	if c.PeakPVW == 0 {
		c.PeakPVW = 1800
	}
	if c.BaseLoadW == 0 {
		c.BaseLoadW = 250
	}
	if c.EveningLoadW == 0 {
		c.EveningLoadW = 900
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Step <= 0 || c.Step > time.Minute {
		return fmt.Errorf("step must be within (0, 1m], got %s", c.Step)
	}
	if c.Duration < c.Step {
		return fmt.Errorf("duration %s shorter than step %s", c.Duration, c.Step)
	}
	if c.InitialSocPercent < 0 || c.InitialSocPercent > 100 {
		return fmt.Errorf("initial soc must be within [0, 100], got %v", c.InitialSocPercent)
	}
	if c.PeakPVW < 0 || c.BaseLoadW < 0 || c.EveningLoadW < 0 {
		return fmt.Errorf("profile powers must not be negative")
	}
	if c.Noise < 0 || c.Noise >= 1 {
		return fmt.Errorf("noise must be within [0, 1), got %v", c.Noise)
	}
	return nil
}
