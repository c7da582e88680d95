package dispatch

import (
	"fmt"
	"time"
)

// Config defines dispatch-related settings.
type Config struct {
	// TickSeconds is the control period.
	TickSeconds int `json:"tick_seconds"`
	// HourlyCron triggers the hour snapshot; seconds field first.
	HourlyCron string `json:"hourly_cron"`
	// MinRemainingHourFraction bounds the proportional scaling divisor.
	MinRemainingHourFraction float64 `json:"min_remaining_hour_fraction"`
	// Timezone used to match the current hour against the schedule.
	Timezone string `json:"timezone"`
	// ForceSnapshotOnStart captures the hour snapshot at startup even when a
	// persisted snapshot already covers the current hour.
	ForceSnapshotOnStart bool `json:"force_snapshot_on_start"`
}

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.TickSeconds == 0 {
		c.TickSeconds = 15
	}
	if c.HourlyCron == "" {
		c.HourlyCron = "0 0 * * * *"
	}
	if c.MinRemainingHourFraction == 0 {
		c.MinRemainingHourFraction = DefaultMinRemainingFraction
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.TickSeconds <= 0 || c.TickSeconds > 60 || 60%c.TickSeconds != 0 {
		return fmt.Errorf("tick_seconds must divide 60, got %d", c.TickSeconds)
	}
	if c.MinRemainingHourFraction <= 0 || c.MinRemainingHourFraction > 1 {
		return fmt.Errorf("min_remaining_hour_fraction must be in (0, 1], got %v", c.MinRemainingHourFraction)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// TickCron returns the cron spec of the control tick.
func (c Config) TickCron() string {
	return fmt.Sprintf("*/%d * * * * *", c.TickSeconds)
}
