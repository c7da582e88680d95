// Package hour tracks the energy already moved since the top of the hour.
package hour

import (
	"math"
	"time"
)

// State is the state of charge captured when the hour began.
type State struct {
	SocAtStartWh float64   `json:"soc_at_start_of_hour_wh"`
	CapturedAt   time.Time `json:"captured_at"`
}

// Capture snapshots the state of charge for the hour containing now.
func Capture(socWh float64, now time.Time) State {
	return State{SocAtStartWh: socWh, CapturedAt: now}
}

// Valid reports whether a snapshot has been taken.
func (s State) Valid() bool { return !s.CapturedAt.IsZero() }

// Covers reports whether the snapshot was captured within the same clock hour
// as now, in now's location.
func (s State) Covers(now time.Time) bool {
	if !s.Valid() {
		return false
	}
	return Start(s.CapturedAt.In(now.Location())).Equal(Start(now))
}

// AlreadyCharged returns the energy in Wh added since the start of the hour.
func (s State) AlreadyCharged(socWh float64) float64 {
	return math.Max(socWh-s.SocAtStartWh, 0)
}

// AlreadyDischarged returns the energy in Wh removed since the start of the hour.
func (s State) AlreadyDischarged(socWh float64) float64 {
	return math.Max(s.SocAtStartWh-socWh, 0)
}

// Start truncates t to the beginning of its clock hour in t's location.
func Start(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// ElapsedFraction returns the current minute of the hour over 60. Seconds
// are ignored, so every tick within a minute scales the same way.
func ElapsedFraction(now time.Time) float64 {
	return float64(now.Minute()) / 60
}

// RemainingFraction returns 1 - ElapsedFraction(now), never below floor.
// The floor bounds the proportional scaling divisor at the end of the hour.
func RemainingFraction(now time.Time, floor float64) float64 {
	r := 1 - ElapsedFraction(now)
	if r < floor {
		return floor
	}
	return r
}
