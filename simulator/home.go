package simulator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/plan"
)

// Clock is a virtual clock advanced by the simulation.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock set to start.
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current virtual time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Home combines a battery, a load profile and a price plan. It serves as the
// telemetry source, the device actuator and the schedule source of the
// controller.
type Home struct {
	battery *Battery
	params    model.Battery
	profile *Profile
	plan    []model.PlanEntry
	clock   *Clock

	mu       sync.Mutex
	cmd      model.Command
	acMode   model.ACMode
	override *float64
	realIn   float64
	realOut  float64
	commands int
}

// NewHome builds the simulated home described by cfg.
func NewHome(cfg Config, params model.Battery, clock *Clock) *Home {
	p := NewProfile(cfg)
	return &Home{
		battery: NewBattery(params, cfg.InitialSocPercent),
		params:    params,
		profile: p,
		plan:    PricePlan(cfg.Start, cfg.Duration, p),
		clock:   clock,
	}
}

// Plan returns the generated price plan.
func (h *Home) Plan() []model.PlanEntry { return h.plan }

// SetOverride enables the manual override with the given signed power, or
// disables it when p is nil.
func (h *Home) SetOverride(p *float64) {
	h.mu.Lock()
	h.override = p
	h.mu.Unlock()
}

// Schedule returns the price plan.
func (h *Home) Schedule(ctx context.Context) ([]model.PlanEntry, error) {
	return plan.Static(h.plan).Schedule(ctx)
}

// Apply records the device command. It takes effect on the next Advance.
func (h *Home) Apply(_ context.Context, cmd model.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cmd = cmd
	if cmd.ACMode != model.ACModeUnchanged {
		h.acMode = cmd.ACMode
	}
	h.commands++
	return nil
}

// Commands returns how many commands were applied.
func (h *Home) Commands() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.commands
}

// Snapshot samples the simulated sensors.
func (h *Home) Snapshot(context.Context) (model.TickSnapshot, error) {
	now := h.clock.Now()
	pv := h.profile.PV(now)
	load := h.profile.Load(now)

	h.mu.Lock()
	defer h.mu.Unlock()
	snap := model.TickSnapshot{
		Time:                  now,
		SocWh:                 h.battery.SocWh(),
		OverflowPowerW:        model.Some(math.Max(pv+h.realOut-load-h.realIn, 0)),
		HouseholdConsumptionW: model.Some(load),
		PVProductionW:         model.Some(pv),
		OverrideEnabled:       model.Switch{On: h.override != nil, Valid: true},
		OverridePowerW:        model.Some(0),
		CurrentOutputLimitW:   h.cmd.OutputLimitW,
		CurrentInputLimitW:    h.cmd.InputLimitW,
		RealInputPowerW:       model.Some(h.realIn),
		RealOutputPowerW:      model.Some(h.realOut),
	}
	if h.override != nil {
		snap.OverridePowerW = model.Some(*h.override)
	}
	if e, err := plan.Current(h.plan, now); err == nil {
		snap.CurrentPrice = model.Some(float64(e.TibberTotal))
	}
	return snap, nil
}

// Advance integrates the battery over dt using the active command.
func (h *Home) Advance(dt time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	power := 0.0
	switch h.acMode {
	case model.ACModeCharge:
		power = h.cmd.InputLimitW
	case model.ACModeDischarge:
		power = -h.cmd.OutputLimitW
	}
	actual := h.battery.ApplyPower(power, dt)
	h.realIn = math.Max(actual, 0)
	h.realOut = math.Max(-actual, 0)
}

// RunRealTime advances clock and home every interval until ctx is done, so
// that the simulated home can back a live service.
func RunRealTime(ctx context.Context, h *Home, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			h.Advance(interval)
			h.clock.Advance(interval)
		}
	}
}
