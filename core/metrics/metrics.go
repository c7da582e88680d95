package metrics

import (
	"time"

	"github.com/kilianp07/homebattery/core/model"
)

// TickEvent is recorded once per control tick.
type TickEvent struct {
	Result   model.DispatchResult
	Snapshot model.TickSnapshot
	// Duration is the wall time spent evaluating the tick.
	Duration time.Duration
}

// MetricsSink records dispatch ticks for observability purposes.
type MetricsSink interface {
	RecordTick(ev TickEvent) error
}

// OptimizerCallEvent captures a single optimizer round trip.
type OptimizerCallEvent struct {
	Latency time.Duration
	Planned model.Planned
	Err     error
	Time    time.Time
}

// OptimizerRecorder records optimizer calls.
type OptimizerRecorder interface {
	RecordOptimizerCall(ev OptimizerCallEvent) error
}

// HourSnapshotEvent is emitted when the state of charge at the start of the
// hour is captured.
type HourSnapshotEvent struct {
	SocWh float64
	// Lazy is true when the snapshot was taken by a tick instead of the
	// hourly trigger.
	Lazy bool
	Time time.Time
}

// HourSnapshotRecorder records hour snapshots.
type HourSnapshotRecorder interface {
	RecordHourSnapshot(ev HourSnapshotEvent) error
}

// TickFailureEvent records a tick stage that failed.
type TickFailureEvent struct {
	Stage string
	Err   error
	Time  time.Time
}

// TickFailureRecorder records tick failures.
type TickFailureRecorder interface {
	RecordTickFailure(ev TickFailureEvent) error
}

// ModeChangeEvent records a transition between dispatch modes.
type ModeChangeEvent struct {
	From model.Mode
	To   model.Mode
	Time time.Time
}

// ModeChangeRecorder records mode transitions.
type ModeChangeRecorder interface {
	RecordModeChange(ev ModeChangeEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordTick(TickEvent) error                   { return nil }
func (NopSink) RecordOptimizerCall(OptimizerCallEvent) error { return nil }
func (NopSink) RecordHourSnapshot(HourSnapshotEvent) error   { return nil }
func (NopSink) RecordTickFailure(TickFailureEvent) error     { return nil }
func (NopSink) RecordModeChange(ModeChangeEvent) error       { return nil }
