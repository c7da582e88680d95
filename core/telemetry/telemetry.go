// Package telemetry defines the live sensor input of the control loop.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/homebattery/core/model"
)

// ErrTelemetryUnavailable is returned when a reading required by the active
// dispatch branch is missing or stale.
var ErrTelemetryUnavailable = errors.New("telemetry unavailable")

// Field names used in errors, logs and topic configuration.
const (
	FieldSoc                  = "soc"
	FieldOverflowPower        = "overflow_power"
	FieldHouseholdConsumption = "household_consumption"
	FieldPVProduction         = "pv_production"
	FieldOverrideEnabled      = "override_enabled"
	FieldOverridePower        = "override_power"
	FieldCurrentPrice         = "current_price"
	FieldOutputLimit          = "output_limit"
	FieldInputLimit           = "input_limit"
	FieldRealInputPower       = "real_input_power"
	FieldRealOutputPower      = "real_output_power"
)

// Source samples all readings for a tick at once. It returns an error
// wrapping ErrTelemetryUnavailable when the state of charge is unknown;
// other fields are reported as missing readings.
type Source interface {
	Snapshot(ctx context.Context) (model.TickSnapshot, error)
}

// Missing builds an ErrTelemetryUnavailable error naming the fields.
func Missing(fields ...string) error {
	return fmt.Errorf("%w: %s", ErrTelemetryUnavailable, strings.Join(fields, ", "))
}

// MissingFields returns the names of the readings that are unavailable in s
// among the requested ones.
func MissingFields(s model.TickSnapshot, fields ...string) []string {
	var out []string
	for _, f := range fields {
		ok := true
		switch f {
		case FieldOverflowPower:
			ok = s.OverflowPowerW.Valid
		case FieldHouseholdConsumption:
			ok = s.HouseholdConsumptionW.Valid
		case FieldPVProduction:
			ok = s.PVProductionW.Valid
		case FieldOverrideEnabled:
			ok = s.OverrideEnabled.Valid
		case FieldOverridePower:
			ok = s.OverridePowerW.Valid
		case FieldCurrentPrice:
			ok = s.CurrentPrice.Valid
		case FieldRealInputPower:
			ok = s.RealInputPowerW.Valid
		case FieldRealOutputPower:
			ok = s.RealOutputPowerW.Valid
		}
		if !ok {
			out = append(out, f)
		}
	}
	return out
}

// Require returns an error if any of the fields is missing in s.
func Require(s model.TickSnapshot, fields ...string) error {
	if m := MissingFields(s, fields...); len(m) > 0 {
		return Missing(m...)
	}
	return nil
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (model.TickSnapshot, error)

func (f SourceFunc) Snapshot(ctx context.Context) (model.TickSnapshot, error) { return f(ctx) }
