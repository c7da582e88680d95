package events

import (
	"time"

	"github.com/kilianp07/homebattery/core/model"
)

// Event is implemented by every event published by the controller.
type Event interface {
	Kind() string
}

// TickEvent is published after every tick.
type TickEvent struct {
	Result model.DispatchResult
}

func (TickEvent) Kind() string { return "tick" }

// ModeChangeEvent is published when the mode differs from the previous tick.
type ModeChangeEvent struct {
	From model.Mode
	To   model.Mode
	Time time.Time
}

func (ModeChangeEvent) Kind() string { return "mode_change" }

// HourSnapshotEvent is published when the hour accumulator is reset.
type HourSnapshotEvent struct {
	SocWh float64
	Lazy  bool
	Time  time.Time
}

func (HourSnapshotEvent) Kind() string { return "hour_snapshot" }
