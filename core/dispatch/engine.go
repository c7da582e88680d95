package dispatch

import (
	"math"

	"github.com/kilianp07/homebattery/core/hour"
	"github.com/kilianp07/homebattery/core/logger"
	"github.com/kilianp07/homebattery/core/maintenance"
	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/telemetry"
)

// DefaultMinRemainingFraction bounds the proportional scaling divisor to one
// minute of the hour.
const DefaultMinRemainingFraction = 1.0 / 60

// Input is everything a decision depends on.
type Input struct {
	Snapshot        model.TickSnapshot
	Planned         model.Planned
	Hour            hour.State
	PrevMaintenance bool
}

// Decision is the outcome of a single evaluation.
type Decision struct {
	SetpointW   float64
	Mode        model.Mode
	Maintenance bool
	// Err wraps telemetry.ErrTelemetryUnavailable when the selected branch
	// could not be evaluated. The setpoint is then zero.
	Err error
}

// Engine evaluates the dispatch rules in priority order.
type Engine struct {
	battery      model.Battery
	minRemaining float64
	logger       logger.Logger
}

// NewEngine returns an engine for the given battery. A non-positive
// minRemaining defaults to DefaultMinRemainingFraction.
func NewEngine(b model.Battery, minRemaining float64, log logger.Logger) *Engine {
	if minRemaining <= 0 || minRemaining > 1 {
		minRemaining = DefaultMinRemainingFraction
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{battery: b, minRemaining: minRemaining, logger: log}
}

// Battery returns the characteristics the engine was built with.
func (e *Engine) Battery() model.Battery { return e.battery }

// Decide updates the maintenance flag and selects the first matching branch.
// It has no side effects besides debug logging.
func (e *Engine) Decide(in Input) Decision {
	s := in.Snapshot
	b := e.battery
	maint := maintenance.Next(in.PrevMaintenance, s.SocWh, b)
	remaining := hour.RemainingFraction(s.Time, e.minRemaining)

	e.logger.Debugw("dispatch inputs", map[string]any{
		"soc_wh":             s.SocWh,
		"soc_start_hour_wh":  in.Hour.SocAtStartWh,
		"planned_charge":     in.Planned.ChargeW,
		"planned_discharge":  in.Planned.DischargeW,
		"maintenance":        maint,
		"remaining_fraction": remaining,
	})

	d := Decision{Maintenance: maint}

	if maintenance.Preempts(maint, in.Planned.ChargeW, b) {
		d.SetpointW = b.MaintenanceChargePowerW
		d.Mode = model.ModeMaintenanceCharging
		return d
	}

	if err := telemetry.Require(s, telemetry.FieldOverrideEnabled); err != nil {
		return failSafe(d, err)
	}
	if s.OverrideEnabled.On {
		if err := telemetry.Require(s, telemetry.FieldOverridePower); err != nil {
			return failSafe(d, err)
		}
		d.SetpointW = s.OverridePowerW.Value
		d.Mode = model.ModeOverride
		return d
	}

	if in.Planned.DischargeW > 0 {
		return e.plannedDischarge(d, in, remaining)
	}

	if s.SocWh >= b.MaxSocWh() {
		d.Mode = model.ModeMaxSoC
		return d
	}

	if in.Planned.ChargeW > 0 {
		return e.plannedCharge(d, in, remaining)
	}

	if err := telemetry.Require(s, telemetry.FieldOverflowPower); err != nil {
		return failSafe(d, err)
	}
	if s.OverflowPowerW.Value > 0 {
		d.SetpointW = s.OverflowPowerW.Value
		d.Mode = model.ModeOverflowCharge
		return d
	}
	d.Mode = model.ModeNoAction
	return d
}

func (e *Engine) plannedDischarge(d Decision, in Input, remaining float64) Decision {
	s := in.Snapshot
	if err := telemetry.Require(s, telemetry.FieldOverflowPower); err != nil {
		return failSafe(d, err)
	}
	alreadyDischarged := in.Hour.AlreadyDischarged(s.SocWh)
	remainingEnergy := math.Max(in.Planned.DischargeW-alreadyDischarged, 0)
	adjustedOverflow := s.OverflowPowerW.Value - s.CurrentOutputLimitW

	e.logger.Debugw("planned discharge", map[string]any{
		"current_output_limit": s.CurrentOutputLimitW,
		"already_discharged":   alreadyDischarged,
		"remaining_energy":     remainingEnergy,
		"adjusted_overflow":    adjustedOverflow,
	})

	if adjustedOverflow > 0 {
		d.SetpointW = adjustedOverflow
		d.Mode = model.ModeOverflowDuringDischarge
		return d
	}

	if err := telemetry.Require(s, telemetry.FieldHouseholdConsumption, telemetry.FieldPVProduction); err != nil {
		return failSafe(d, err)
	}
	target := remainingEnergy / remaining
	power := math.Min(s.HouseholdConsumptionW.Value, target) - s.PVProductionW.Value
	power = math.Max(math.Min(power, e.battery.MaxDischargeRateW), 0)

	e.logger.Debugw("planned discharge power", map[string]any{
		"target":                target,
		"household_consumption": s.HouseholdConsumptionW.Value,
		"pv_production":         s.PVProductionW.Value,
		"actual_discharge":      power,
	})

	if power > 0 {
		d.SetpointW = -power
	}
	d.Mode = model.ModePlannedDischarge
	return d
}

func (e *Engine) plannedCharge(d Decision, in Input, remaining float64) Decision {
	s := in.Snapshot
	b := e.battery
	if err := telemetry.Require(s, telemetry.FieldOverflowPower); err != nil {
		return failSafe(d, err)
	}
	alreadyCharged := in.Hour.AlreadyCharged(s.SocWh)
	minimal := math.Max(math.Min((in.Planned.ChargeW-alreadyCharged)/remaining, b.MaxChargeRateW), 0) *
		(2 - b.RoundTripEfficiency)
	adjustedOverflow := s.OverflowPowerW.Value + s.CurrentInputLimitW

	e.logger.Debugw("planned charge", map[string]any{
		"current_input_limit":  s.CurrentInputLimitW,
		"already_charged":      alreadyCharged,
		"minimal_charge_power": minimal,
		"adjusted_overflow":    adjustedOverflow,
	})

	d.SetpointW = minimal
	if adjustedOverflow > 0 {
		d.SetpointW = math.Max(minimal, adjustedOverflow)
	}
	d.Mode = model.ModePlannedCharge
	return d
}

func failSafe(d Decision, err error) Decision {
	d.SetpointW = 0
	d.Mode = model.ModeFailSafe
	d.Err = err
	return d
}
