package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/homebattery/core/dispatch/logging"
	"github.com/kilianp07/homebattery/core/events"
	"github.com/kilianp07/homebattery/core/hour"
	"github.com/kilianp07/homebattery/core/logger"
	"github.com/kilianp07/homebattery/core/metrics"
	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/monitoring"
	"github.com/kilianp07/homebattery/core/plan"
	"github.com/kilianp07/homebattery/core/pricing"
	"github.com/kilianp07/homebattery/core/state"
	"github.com/kilianp07/homebattery/core/telemetry"
	"github.com/kilianp07/homebattery/internal/eventbus"
)

// Tick stages reported on failure.
const (
	StageTelemetry    = "telemetry"
	StageSchedule     = "schedule"
	StageOptimizer    = "optimizer"
	StageActuator     = "actuator"
	StagePublish      = "publish"
	StageState        = "state"
	StageTickLog      = "tick_log"
	StageHourSnapshot = "hour_snapshot"
	StagePanic        = "panic"
)

// Planner returns the planned charge and discharge for the active hour. On
// failure it must still return zero values.
type Planner interface {
	Plan(ctx context.Context, socWh float64, index int) (model.Planned, error)
}

// Actuator applies a device command.
type Actuator interface {
	Apply(ctx context.Context, cmd model.Command) error
}

// ResultPublisher publishes the outcome of a tick.
type ResultPublisher interface {
	Publish(ctx context.Context, res model.DispatchResult) error
}

// Deps are the collaborators of a Controller. Telemetry and Schedule are
// required.
type Deps struct {
	Telemetry telemetry.Source
	Schedule  plan.Source
	Planner   Planner
	Actuator  Actuator
	Publisher ResultPublisher
	State     state.Store
	Metrics   metrics.MetricsSink
	TickLog   logging.TickStore
	Bus       *eventbus.Bus[events.Event]
	Logger    logger.Logger
	Clock     func() time.Time
}

// Controller runs the dispatch cycle. Tick and SnapshotHour are serialized.
type Controller struct {
	engine    *Engine
	loc       *time.Location
	telemetry telemetry.Source
	schedule  plan.Source
	planner   Planner
	actuator  Actuator
	publisher ResultPublisher
	store     state.Store
	sink      metrics.MetricsSink
	ticks     logging.TickStore
	bus       *eventbus.Bus[events.Event]
	logger    logger.Logger
	clock     func() time.Time

	mu    sync.Mutex
	state ControllerState
}

// NewController validates the configuration and wires the collaborators.
func NewController(cfg Config, b model.Battery, d Deps) (*Controller, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if d.Telemetry == nil {
		return nil, errors.New("telemetry source required")
	}
	if d.Schedule == nil {
		return nil, errors.New("schedule source required")
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	log := logger.OrNop(d.Logger)
	c := &Controller{
		engine:    NewEngine(b, cfg.MinRemainingHourFraction, log),
		loc:       loc,
		telemetry: d.Telemetry,
		schedule:  d.Schedule,
		planner:   d.Planner,
		actuator:  d.Actuator,
		publisher: d.Publisher,
		store:     d.State,
		sink:      d.Metrics,
		ticks:     d.TickLog,
		bus:       d.Bus,
		logger:    log,
		clock:     d.Clock,
	}
	if c.store == nil {
		c.store = state.NewMemoryStore()
	}
	if c.sink == nil {
		c.sink = metrics.NopSink{}
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	return c, nil
}

// State exposes the controller state for read access.
func (c *Controller) State() *ControllerState { return &c.state }

// Battery returns the configured battery characteristics.
func (c *Controller) Battery() model.Battery { return c.engine.Battery() }

// Now returns the controller clock in the schedule location.
func (c *Controller) Now() time.Time { return c.clock().In(c.loc) }

// LoadState initializes the controller state from the state store.
func (c *Controller) LoadState(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.state.Load(ctx, c.store)
	h := c.state.Hour()
	mode, _ := c.state.Mode()
	c.logger.Infof("state loaded: soc_at_start_of_hour=%.1fWh captured=%s maintenance=%t mode=%q",
		h.SocAtStartWh, h.CapturedAt.Format(time.RFC3339), c.state.Maintenance(), mode)
	if err != nil {
		c.logger.Warnf("load state: %v", err)
	}
	return err
}

// SnapshotHour captures the state of charge at the start of the hour.
func (c *Controller) SnapshotHour(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.Now()
	snap, err := c.telemetry.Snapshot(ctx)
	if err != nil {
		c.fail(StageHourSnapshot, err, now)
		return err
	}
	return c.captureHour(ctx, snap.SocWh, now, false)
}

func (c *Controller) captureHour(ctx context.Context, socWh float64, now time.Time, lazy bool) error {
	h := hour.Capture(socWh, now)
	c.state.SetHour(h)
	hourSnapshotGauge.Set(socWh)
	if lazy {
		c.logger.Warnf("no snapshot for hour %s, capturing %.1fWh now", hour.Start(now).Format("15:04"), socWh)
	} else {
		c.logger.Infof("hour snapshot: %.1fWh", socWh)
	}
	if rec, ok := c.sink.(metrics.HourSnapshotRecorder); ok {
		if err := rec.RecordHourSnapshot(metrics.HourSnapshotEvent{SocWh: socWh, Lazy: lazy, Time: now}); err != nil {
			c.logger.Warnf("record hour snapshot: %v", err)
		}
	}
	if c.bus != nil {
		c.bus.Publish(events.HourSnapshotEvent{SocWh: socWh, Lazy: lazy, Time: now})
	}
	if err := saveHour(ctx, c.store, h); err != nil {
		err = fmt.Errorf("persist hour snapshot: %w", err)
		c.fail(StageState, err, now)
		return err
	}
	return nil
}

// Tick runs one dispatch cycle and returns the published result. It never
// panics; every outcome, including failures, is published.
func (c *Controller) Tick(ctx context.Context) (res model.DispatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()
	now := c.Now()
	var snap model.TickSnapshot
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("tick panic: %v", r)
			c.fail(StagePanic, err, now)
			res = c.newResult(now, model.ModeFailSafe, snap.SocWh)
			res.Error = err.Error()
			c.safely(func() {
				c.command(ctx, 0, &res)
				c.finish(ctx, res, snap, started)
			})
		}
	}()

	snap, err := c.telemetry.Snapshot(ctx)
	if err != nil {
		if !errors.Is(err, telemetry.ErrTelemetryUnavailable) {
			err = fmt.Errorf("%w: %v", telemetry.ErrTelemetryUnavailable, err)
		}
		c.fail(StageTelemetry, err, now)
		res = c.newResult(now, model.ModeFailSafe, snap.SocWh)
		res.Error = err.Error()
		c.command(ctx, 0, &res)
		c.finish(ctx, res, snap, started)
		return res
	}
	snap.Time = now

	entry, idx, err := c.currentEntry(ctx, now)
	if err != nil {
		c.fail(StageSchedule, err, now)
		res = c.newResult(now, model.ModeSkipped, snap.SocWh)
		res.Error = err.Error()
		c.finish(ctx, res, snap, started)
		return res
	}

	if !c.state.Hour().Covers(now) {
		_ = c.captureHour(ctx, snap.SocWh, now, true)
	}

	planned := c.plan(ctx, snap.SocWh, idx, now)
	entry = planned.Apply(entry)
	c.logger.Debugw("plan entry", map[string]any{
		"index":             entry.Index,
		"hour":              entry.Hour,
		"date":              entry.Date,
		"adjusted_price":    float64(entry.AdjustedPrice),
		"planned_charge":    entry.PlannedCharge,
		"planned_discharge": entry.PlannedDischarge,
	})

	d := c.engine.Decide(Input{
		Snapshot:        snap,
		Planned:         planned,
		Hour:            c.state.Hour(),
		PrevMaintenance: c.state.Maintenance(),
	})
	c.state.SetMaintenance(d.Maintenance)
	if d.Err != nil {
		c.fail(StageTelemetry, d.Err, now)
	}

	res = c.newResult(now, d.Mode, snap.SocWh)
	res.SetpointW = d.SetpointW
	res.Planned = planned
	res.PlanIndex = idx
	res.Maintenance = d.Maintenance
	if d.Err != nil {
		res.Error = d.Err.Error()
	}
	c.command(ctx, d.SetpointW, &res)
	// Real power is the tick-start sample; the new command shows up next tick.
	res.Rates = pricing.Tag(pricing.Input{
		RealInputPowerW:  snap.RealInputPowerW.Or(0),
		RealOutputPowerW: snap.RealOutputPowerW.Or(0),
		OverflowPowerW:   snap.OverflowPowerW.Or(0),
		Price:            snap.CurrentPrice.Or(float64(entry.TibberTotal)),
	})
	c.finish(ctx, res, snap, started)
	return res
}

func (c *Controller) currentEntry(ctx context.Context, now time.Time) (model.PlanEntry, int, error) {
	entries, err := c.schedule.Schedule(ctx)
	if err != nil {
		if !errors.Is(err, plan.ErrMalformedPriceSchedule) {
			err = fmt.Errorf("%w: %v", plan.ErrMalformedPriceSchedule, err)
		}
		return model.PlanEntry{}, -1, err
	}
	idx, err := plan.ResolveCurrentIndex(entries, now)
	if err != nil {
		return model.PlanEntry{}, -1, err
	}
	return entries[idx], idx, nil
}

func (c *Controller) plan(ctx context.Context, socWh float64, idx int, now time.Time) model.Planned {
	if c.planner == nil {
		return model.Planned{}
	}
	started := time.Now()
	planned, err := c.planner.Plan(ctx, socWh, idx)
	latency := time.Since(started)
	optimizerLatency.Observe(latency.Seconds())
	if rec, ok := c.sink.(metrics.OptimizerRecorder); ok {
		if rerr := rec.RecordOptimizerCall(metrics.OptimizerCallEvent{Latency: latency, Planned: planned, Err: err, Time: now}); rerr != nil {
			c.logger.Warnf("record optimizer call: %v", rerr)
		}
	}
	if err != nil {
		c.fail(StageOptimizer, err, now)
		return model.Planned{}
	}
	c.logger.Infof("planned charge %.0fW discharge %.0fW", planned.ChargeW, planned.DischargeW)
	return planned
}

func (c *Controller) command(ctx context.Context, setpointW float64, res *model.DispatchResult) {
	if c.actuator == nil {
		return
	}
	if err := c.actuator.Apply(ctx, model.CommandFor(setpointW)); err != nil {
		c.fail(StageActuator, err, res.Timestamp)
		res.Error = joinErr(res.Error, err)
		return
	}
	res.Commanded = true
}

func (c *Controller) finish(ctx context.Context, res model.DispatchResult, snap model.TickSnapshot, started time.Time) {
	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, res); err != nil {
			c.fail(StagePublish, err, res.Timestamp)
		}
	}
	if err := saveTick(ctx, c.store, res.Maintenance, res.Mode); err != nil {
		c.fail(StageState, err, res.Timestamp)
	}

	prev, had := c.state.record(res)
	if c.bus != nil {
		if had && prev != res.Mode {
			c.bus.Publish(events.ModeChangeEvent{From: prev, To: res.Mode, Time: res.Timestamp})
		}
		c.bus.Publish(events.TickEvent{Result: res})
	}

	elapsed := time.Since(started)
	tickLatency.Observe(elapsed.Seconds())
	ticksTotal.WithLabelValues(res.Mode.String()).Inc()
	setpointGauge.Set(res.SetpointW)
	socGauge.Set(res.SocWh)
	maintenanceGauge.Set(boolGauge(res.Maintenance))
	priceRateGauge.WithLabelValues("buy").Set(res.Rates.Buy)
	priceRateGauge.WithLabelValues("sell").Set(res.Rates.Sell)
	priceRateGauge.WithLabelValues("benefit").Set(res.Rates.Benefit)

	if err := c.sink.RecordTick(metrics.TickEvent{Result: res, Snapshot: snap, Duration: elapsed}); err != nil {
		c.logger.Warnf("record tick: %v", err)
	}
	if c.ticks != nil {
		if err := c.ticks.Append(ctx, logging.NewTickRecord(res, snap)); err != nil {
			c.fail(StageTickLog, err, res.Timestamp)
		}
	}

	c.logger.Infof("mode %q request %.0fW soc %.0fWh real in/out %.0f/%.0fW",
		res.Mode, res.SetpointW, res.SocWh, snap.RealInputPowerW.Or(0), snap.RealOutputPowerW.Or(0))
}

func (c *Controller) newResult(now time.Time, mode model.Mode, socWh float64) model.DispatchResult {
	return model.DispatchResult{
		ID:          uuid.NewString(),
		Timestamp:   now,
		Mode:        mode,
		SocWh:       socWh,
		PlanIndex:   -1,
		Maintenance: c.state.Maintenance(),
	}
}

func (c *Controller) fail(stage string, err error, now time.Time) {
	tickFailures.WithLabelValues(stage).Inc()
	monitoring.CaptureTickFailure(stage, err)
	if rec, ok := c.sink.(metrics.TickFailureRecorder); ok {
		_ = rec.RecordTickFailure(metrics.TickFailureEvent{Stage: stage, Err: err, Time: now})
	}
	if stage == StageOptimizer {
		c.logger.Warnf("%s: %v", stage, err)
		return
	}
	c.logger.Errorf("%s: %v", stage, err)
}

func (c *Controller) safely(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Errorf("panic while publishing fail-safe result: %v", r)
		}
	}()
	fn()
}

func joinErr(existing string, err error) string {
	if existing == "" {
		return err.Error()
	}
	return strings.Join([]string{existing, err.Error()}, "; ")
}
