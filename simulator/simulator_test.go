package simulator

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/homebattery/core/dispatch"
	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/optimizer"
	"github.com/kilianp07/homebattery/core/plan"
	"github.com/kilianp07/homebattery/core/state"
	"github.com/kilianp07/homebattery/infra/mqtt"
)

var start = time.Date(2025, 6, 21, 0, 0, 0, 0, time.UTC)

func TestBatteryLimits(t *testing.T) {
	params := model.DefaultBattery()
	b := NewBattery(params, 50)
	require.InDelta(t, 3800, b.SocWh(), 1e-9)

	got := b.ApplyPower(5000, time.Hour)
	assert.Equal(t, params.MaxChargeRateW, got)
	assert.InDelta(t, 3800+1200*params.RoundTripEfficiency, b.SocWh(), 1e-9)

	empty := NewBattery(params, 0)
	assert.Zero(t, empty.ApplyPower(-500, time.Minute))

	full := NewBattery(params, 100)
	assert.Zero(t, full.ApplyPower(500, time.Minute))

	b = NewBattery(params, 1)
	got = b.ApplyPower(-1200, time.Hour)
	assert.InDelta(t, -76, got, 1e-9)
	assert.InDelta(t, 0, b.SocWh(), 1e-9)
}

func TestProfileShape(t *testing.T) {
	cfg := Config{PeakPVW: 2000, BaseLoadW: 200, EveningLoadW: 800}
	p := NewProfile(cfg)
	assert.Zero(t, p.PV(start.Add(3*time.Hour)))
	assert.InDelta(t, 2000, p.PV(start.Add(13*time.Hour)), 1e-6)
	assert.Greater(t, p.Load(start.Add(19*time.Hour+30*time.Minute)), p.Load(start.Add(3*time.Hour)))

	cfg.Noise, cfg.Seed = 0.2, 7
	a, b := NewProfile(cfg), NewProfile(cfg)
	for i := 0; i < 10; i++ {
		at := start.Add(time.Duration(10+i) * time.Hour)
		assert.Equal(t, a.PV(at), b.PV(at))
	}
}

func TestPricePlanCoversDuration(t *testing.T) {
	entries := PricePlan(start.Add(30*time.Minute), 24*time.Hour, NewProfile(Config{PeakPVW: 1500}))
	require.Len(t, entries, 25)
	assert.Equal(t, 0, entries[0].Hour)
	assert.Equal(t, "2025-06-22", entries[24].Date)

	idx, err := plan.ResolveCurrentIndex(entries, start.Add(13*time.Hour+5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 13, idx)
	assert.Less(t, float64(entries[13].AdjustedPrice), float64(entries[13].TibberTotal))
}

func TestThresholdOptimizer(t *testing.T) {
	entries := PricePlan(start, 24*time.Hour, nil)
	o := NewThresholdOptimizer(entries)
	b := model.DefaultBattery()

	cheapest, dearest := 0, 0
	for i, e := range entries {
		if e.AdjustedPrice < entries[cheapest].AdjustedPrice {
			cheapest = i
		}
		if e.AdjustedPrice > entries[dearest].AdjustedPrice {
			dearest = i
		}
	}
	resp, err := o.Optimize(context.Background(), optimizer.NewRequest(b, 3800, cheapest))
	require.NoError(t, err)
	assert.InDelta(t, 1.2, *resp.ActionNextHour, 1e-9)

	resp, err = o.Optimize(context.Background(), optimizer.NewRequest(b, 3800, dearest))
	require.NoError(t, err)
	assert.InDelta(t, -1.2, *resp.ActionNextHour, 1e-9)

	_, err = o.Optimize(context.Background(), optimizer.NewRequest(b, 3800, 99))
	assert.ErrorIs(t, err, optimizer.ErrOptimizerUnavailable)
}

func newSimulation(t *testing.T, cfg Config) (*Simulation, *Home) {
	t.Helper()
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	params := model.DefaultBattery()
	clock := NewClock(cfg.Start)
	home := NewHome(cfg, params, clock)
	ctrl, err := dispatch.NewController(dispatch.Config{Timezone: "UTC"}, params, dispatch.Deps{
		Telemetry: home,
		Schedule:  home,
		Planner:   optimizer.NewPlanner(NewThresholdOptimizer(home.Plan()), params, time.Second),
		Actuator:  home,
		State:     state.NewMemoryStore(),
		Clock:     clock.Now,
	})
	require.NoError(t, err)
	return New(cfg, home, clock, ctrl), home
}

func TestSimulationDay(t *testing.T) {
	sim, home := newSimulation(t, Config{Start: start, Step: time.Minute, InitialSocPercent: 30, Seed: 1})
	sum, err := sim.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 24*60, sum.Ticks)
	assert.Zero(t, sum.Modes[model.ModeFailSafe.String()])
	assert.Zero(t, sum.Modes[model.ModeSkipped.String()])
	assert.Positive(t, sum.Modes[model.ModePlannedCharge.String()]+sum.Modes[model.ModeOverflowCharge.String()])
	assert.Positive(t, sum.ChargedWh)
	assert.Positive(t, sum.DischargedWh)
	assert.Positive(t, home.Commands())

	params := model.DefaultBattery()
	assert.LessOrEqual(t, sum.FinalSocWh, params.CapacityWh)
	assert.GreaterOrEqual(t, sum.FinalSocWh, 0.0)
}

func TestSimulationOverride(t *testing.T) {
	sim, home := newSimulation(t, Config{Start: start.Add(2 * time.Hour), Duration: 10 * time.Minute, Step: time.Minute})
	p := 600.0
	home.SetOverride(&p)
	sum, err := sim.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Ticks)
	assert.Equal(t, 10, sum.Modes[model.ModeOverride.String()])
	for _, r := range sum.Results {
		assert.Equal(t, 600.0, r.SetpointW)
	}
}

func TestSimulationStopsOnCancel(t *testing.T) {
	sim, _ := newSimulation(t, Config{Start: start, Step: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sim.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBridge(t *testing.T) {
	cfg := Config{Start: start.Add(12 * time.Hour)}
	cfg.SetDefaults()
	clock := NewClock(cfg.Start)
	home := NewHome(cfg, model.DefaultBattery(), clock)
	broker := mqtt.NewMemoryBroker()
	topics := mqtt.Topics{}
	topics.SetDefaults()

	b, err := NewBridge(home, broker, topics, 0)
	require.NoError(t, err)

	ctx := context.Background()
	act := mqtt.NewActuator(broker, topics, 0)
	require.NoError(t, act.Apply(ctx, model.CommandFor(800)))
	home.Advance(time.Minute)

	require.NoError(t, b.PublishTelemetry(ctx))
	in, ok := broker.Last(topics.RealInputPower)
	require.True(t, ok)
	assert.Equal(t, "800.0", in)
	limit, _ := broker.Last(topics.InputLimit)
	assert.Equal(t, "800.0", limit)
	soc, _ := broker.Last(topics.Soc)
	v, err := strconv.ParseFloat(soc, 64)
	require.NoError(t, err)
	assert.Greater(t, v, 50.0)

	require.NoError(t, b.PublishPlan(ctx))
	src, err := mqtt.NewScheduleSource(broker, topics, 0)
	require.NoError(t, err)
	entries, err := src.Schedule(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 24)
}
