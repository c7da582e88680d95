package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/homebattery/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes the telemetry and plan values seen by each tick as
// Prometheus metrics. Controller-level gauges live in core/dispatch.
type PromSink struct {
	readings       *prometheus.GaugeVec
	planned        *prometheus.GaugeVec
	commands       *prometheus.CounterVec
	optimizerCalls *prometheus.CounterVec
	snapshots      *prometheus.CounterVec
	modeChanges    *prometheus.CounterVec
	failures       *prometheus.CounterVec
}

// NewPromSink registers the sink collectors on reg, or on the default
// registerer when reg is nil. Collectors already registered by an earlier
// sink are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	readings, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "battery_telemetry_watts",
		Help: "Telemetry power readings sampled at the start of the last tick",
	}, []string{"field"}))
	if err != nil {
		return nil, err
	}
	planned, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "battery_planned_watts",
		Help: "Optimizer recommendation for the active hour",
	}, []string{"direction"}))
	if err != nil {
		return nil, err
	}
	commands, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battery_commands_total",
		Help: "Ticks by mode and whether a device command was issued",
	}, []string{"mode", "commanded"}))
	if err != nil {
		return nil, err
	}
	optimizerCalls, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battery_optimizer_calls_total",
		Help: "Optimizer calls by outcome",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	snapshots, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battery_hour_snapshots_total",
		Help: "Start of hour snapshots by trigger",
	}, []string{"trigger"}))
	if err != nil {
		return nil, err
	}
	modeChanges, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battery_mode_changes_total",
		Help: "Transitions between dispatch modes",
	}, []string{"from", "to"}))
	if err != nil {
		return nil, err
	}
	failures, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "battery_sink_failures_total",
		Help: "Tick failures seen by the metrics sink",
	}, []string{"stage"}))
	if err != nil {
		return nil, err
	}
	return &PromSink{
		readings:       readings,
		planned:        planned,
		commands:       commands,
		optimizerCalls: optimizerCalls,
		snapshots:      snapshots,
		modeChanges:    modeChanges,
		failures:       failures,
	}, nil
}

// register returns the already registered collector of the same
// description when reg has one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordTick updates the reading gauges. Missing readings keep their
// previous value.
func (s *PromSink) RecordTick(ev coremetrics.TickEvent) error {
	snap := ev.Snapshot
	for field, r := range map[string]struct {
		v  float64
		ok bool
	}{
		"overflow":    {snap.OverflowPowerW.Value, snap.OverflowPowerW.Valid},
		"consumption": {snap.HouseholdConsumptionW.Value, snap.HouseholdConsumptionW.Valid},
		"pv":          {snap.PVProductionW.Value, snap.PVProductionW.Valid},
		"real_input":  {snap.RealInputPowerW.Value, snap.RealInputPowerW.Valid},
		"real_output": {snap.RealOutputPowerW.Value, snap.RealOutputPowerW.Valid},
	} {
		if r.ok {
			s.readings.WithLabelValues(field).Set(r.v)
		}
	}
	s.readings.WithLabelValues("input_limit").Set(snap.CurrentInputLimitW)
	s.readings.WithLabelValues("output_limit").Set(snap.CurrentOutputLimitW)
	s.planned.WithLabelValues("charge").Set(ev.Result.Planned.ChargeW)
	s.planned.WithLabelValues("discharge").Set(ev.Result.Planned.DischargeW)
	s.commands.WithLabelValues(ev.Result.Mode.String(), strconv.FormatBool(ev.Result.Commanded)).Inc()
	return nil
}

// RecordOptimizerCall counts optimizer calls.
func (s *PromSink) RecordOptimizerCall(ev coremetrics.OptimizerCallEvent) error {
	result := "ok"
	if ev.Err != nil {
		result = "error"
	}
	s.optimizerCalls.WithLabelValues(result).Inc()
	return nil
}

// RecordHourSnapshot counts hour snapshots.
func (s *PromSink) RecordHourSnapshot(ev coremetrics.HourSnapshotEvent) error {
	trigger := "hourly"
	if ev.Lazy {
		trigger = "lazy"
	}
	s.snapshots.WithLabelValues(trigger).Inc()
	return nil
}

// RecordModeChange counts mode transitions.
func (s *PromSink) RecordModeChange(ev coremetrics.ModeChangeEvent) error {
	s.modeChanges.WithLabelValues(ev.From.String(), ev.To.String()).Inc()
	return nil
}

// RecordTickFailure counts tick failures per stage.
func (s *PromSink) RecordTickFailure(ev coremetrics.TickFailureEvent) error {
	s.failures.WithLabelValues(ev.Stage).Inc()
	return nil
}
