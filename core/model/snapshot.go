package model

import "time"

// Reading is a telemetry value that may be unavailable. A missing sensor must
// never be confused with a genuine zero.
type Reading struct {
	Value float64
	Valid bool
}

// Some returns a valid reading.
func Some(v float64) Reading { return Reading{Value: v, Valid: true} }

// Missing returns an unavailable reading.
func Missing() Reading { return Reading{} }

// Or returns the value or def when the reading is unavailable.
func (r Reading) Or(def float64) float64 {
	if !r.Valid {
		return def
	}
	return r.Value
}

// Switch is a boolean telemetry value that may be unavailable.
type Switch struct {
	On    bool
	Valid bool
}

// TickSnapshot is the immutable set of telemetry values sampled at the start
// of a control tick.
type TickSnapshot struct {
	Time                  time.Time
	SocWh                 float64
	OverflowPowerW        Reading
	HouseholdConsumptionW Reading
	PVProductionW         Reading
	OverrideEnabled       Switch
	OverridePowerW        Reading
	CurrentPrice          Reading
	CurrentOutputLimitW   float64
	CurrentInputLimitW    float64
	RealInputPowerW       Reading
	RealOutputPowerW      Reading
}
