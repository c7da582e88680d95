package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/homebattery/core/metrics"
	"github.com/kilianp07/homebattery/core/model"
)

func TestPromSink_RecordTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	ev := coremetrics.TickEvent{
		Result: model.DispatchResult{
			Mode:      model.ModePlannedCharge,
			SetpointW: 600,
			Commanded: true,
			Planned:   model.Planned{ChargeW: 500},
		},
		Snapshot: model.TickSnapshot{
			OverflowPowerW:     model.Some(120),
			PVProductionW:      model.Missing(),
			CurrentInputLimitW: 400,
		},
	}
	if err := sink.RecordTick(ev); err != nil {
		t.Fatalf("record: %v", err)
	}

	expected := `
# HELP battery_commands_total Ticks by mode and whether a device command was issued
# TYPE battery_commands_total counter
battery_commands_total{commanded="true",mode="Planned charge"} 1
`
	if err := testutil.CollectAndCompare(sink.commands, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.readings.WithLabelValues("overflow")); v != 120 {
		t.Errorf("overflow gauge = %v", v)
	}
	if v := testutil.ToFloat64(sink.planned.WithLabelValues("charge")); v != 500 {
		t.Errorf("planned charge gauge = %v", v)
	}
	// overflow, input_limit, output_limit
	if c := testutil.CollectAndCount(sink.readings); c != 3 {
		t.Errorf("expected missing pv reading to be skipped, got %d series", c)
	}
}

func TestPromSink_Recorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	now := time.Now()
	_ = sink.RecordOptimizerCall(coremetrics.OptimizerCallEvent{Time: now})
	_ = sink.RecordOptimizerCall(coremetrics.OptimizerCallEvent{Err: errors.New("down"), Time: now})
	_ = sink.RecordHourSnapshot(coremetrics.HourSnapshotEvent{SocWh: 100, Lazy: true, Time: now})
	_ = sink.RecordModeChange(coremetrics.ModeChangeEvent{From: model.ModeNoAction, To: model.ModeOverride, Time: now})
	_ = sink.RecordTickFailure(coremetrics.TickFailureEvent{Stage: "telemetry", Time: now})

	if v := testutil.ToFloat64(sink.optimizerCalls.WithLabelValues("error")); v != 1 {
		t.Errorf("optimizer errors = %v", v)
	}
	if v := testutil.ToFloat64(sink.snapshots.WithLabelValues("lazy")); v != 1 {
		t.Errorf("lazy snapshots = %v", v)
	}
	if v := testutil.ToFloat64(sink.modeChanges.WithLabelValues("No action", "Override")); v != 1 {
		t.Errorf("mode changes = %v", v)
	}
	if v := testutil.ToFloat64(sink.failures.WithLabelValues("telemetry")); v != 1 {
		t.Errorf("failures = %v", v)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewPromSink(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	_ = first.RecordTickFailure(coremetrics.TickFailureEvent{Stage: "schedule"})
	if v := testutil.ToFloat64(second.failures.WithLabelValues("schedule")); v != 1 {
		t.Fatalf("expected shared collector, got %v", v)
	}
}
