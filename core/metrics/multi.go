package metrics

// MultiSink fans out events to multiple sinks. Optional recorder interfaces
// are forwarded only to sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTick forwards the tick to all sinks, returning the first error
// encountered.
func (m *MultiSink) RecordTick(ev TickEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTick(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordOptimizerCall forwards optimizer calls.
func (m *MultiSink) RecordOptimizerCall(ev OptimizerCallEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(OptimizerRecorder); ok {
			if err := rec.RecordOptimizerCall(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordHourSnapshot forwards hour snapshots.
func (m *MultiSink) RecordHourSnapshot(ev HourSnapshotEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(HourSnapshotRecorder); ok {
			if err := rec.RecordHourSnapshot(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordTickFailure forwards tick failures.
func (m *MultiSink) RecordTickFailure(ev TickFailureEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(TickFailureRecorder); ok {
			if err := rec.RecordTickFailure(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordModeChange forwards mode transitions.
func (m *MultiSink) RecordModeChange(ev ModeChangeEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ModeChangeRecorder); ok {
			if err := rec.RecordModeChange(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
