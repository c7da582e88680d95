package model

import (
	"fmt"
	"math"
)

// Battery holds the static characteristics of the home battery. Energies are in
// Wh, powers in W and SoC thresholds are fractions of the capacity.
type Battery struct {
	CapacityWh              float64 `json:"capacity_wh"`
	MaxChargeRateW          float64 `json:"max_charge_rate_w"`
	MaxDischargeRateW       float64 `json:"max_discharge_rate_w"`
	RoundTripEfficiency     float64 `json:"round_trip_efficiency"`
	MinSoC                  float64 `json:"min_soc"`
	MaxSoC                  float64 `json:"max_soc"`
	MaintenanceSoC          float64 `json:"maintenance_soc"`
	MaintenanceChargePowerW float64 `json:"maintenance_charge_power_w"`
}

// DefaultBattery returns the characteristics of four 1900 Wh packs behind a
// 1200 W inverter.
func DefaultBattery() Battery {
	return Battery{
		CapacityWh:              4 * 1900,
		MaxChargeRateW:          1200,
		MaxDischargeRateW:       1200,
		RoundTripEfficiency:     0.94,
		MinSoC:                  0.05,
		MaxSoC:                  0.99,
		MaintenanceSoC:          0.10,
		MaintenanceChargePowerW: 300,
	}
}

// SetDefaults fills zero fields with the values of DefaultBattery.
func (b *Battery) SetDefaults() {
	d := DefaultBattery()
	if b.CapacityWh == 0 {
		b.CapacityWh = d.CapacityWh
	}
	if b.MaxChargeRateW == 0 {
		b.MaxChargeRateW = d.MaxChargeRateW
	}
	if b.MaxDischargeRateW == 0 {
		b.MaxDischargeRateW = d.MaxDischargeRateW
	}
	if b.RoundTripEfficiency == 0 {
		b.RoundTripEfficiency = d.RoundTripEfficiency
	}
	if b.MinSoC == 0 {
		b.MinSoC = d.MinSoC
	}
	if b.MaxSoC == 0 {
		b.MaxSoC = d.MaxSoC
	}
	if b.MaintenanceSoC == 0 {
		b.MaintenanceSoC = d.MaintenanceSoC
	}
	if b.MaintenanceChargePowerW == 0 {
		b.MaintenanceChargePowerW = d.MaintenanceChargePowerW
	}
}

// Validate checks that the characteristics are physically sound.
// The thresholds must satisfy 0 < min < maintenance < max <= 1.
func (b Battery) Validate() error {
	if b.CapacityWh <= 0 {
		return fmt.Errorf("battery capacity must be positive")
	}
	if b.MaxChargeRateW <= 0 || b.MaxDischargeRateW <= 0 {
		return fmt.Errorf("battery charge and discharge rates must be positive")
	}
	if b.RoundTripEfficiency <= 0 || b.RoundTripEfficiency > 1 {
		return fmt.Errorf("round trip efficiency must be in (0, 1], got %v", b.RoundTripEfficiency)
	}
	if !(0 < b.MinSoC && b.MinSoC < b.MaintenanceSoC && b.MaintenanceSoC < b.MaxSoC && b.MaxSoC <= 1) {
		return fmt.Errorf("soc thresholds must satisfy 0 < min (%v) < maintenance (%v) < max (%v) <= 1",
			b.MinSoC, b.MaintenanceSoC, b.MaxSoC)
	}
	if b.MaintenanceChargePowerW < 0 || b.MaintenanceChargePowerW > b.MaxChargeRateW {
		return fmt.Errorf("maintenance charge power must be within [0, %v]", b.MaxChargeRateW)
	}
	return nil
}

// SocFractionToWh converts a fraction of the capacity into Wh.
func (b Battery) SocFractionToWh(f float64) float64 {
	return b.CapacityWh * f
}

// MinSocWh is the deep discharge threshold that enables maintenance charging.
func (b Battery) MinSocWh() float64 { return b.SocFractionToWh(b.MinSoC) }

// MaintenanceSocWh is the threshold at which maintenance charging stops.
func (b Battery) MaintenanceSocWh() float64 { return b.SocFractionToWh(b.MaintenanceSoC) }

// MaxSocWh is the ceiling above which the battery is never charged.
func (b Battery) MaxSocWh() float64 { return b.SocFractionToWh(b.MaxSoC) }

// PercentToWh converts a device SoC reading in percent into Wh.
func (b Battery) PercentToWh(percent float64) float64 {
	return b.CapacityWh * percent / 100
}

// SocPercent returns the state of charge in percent, clamped to [0, 100].
func (b Battery) SocPercent(socWh float64) float64 {
	if b.CapacityWh <= 0 {
		return 0
	}
	return math.Max(0, math.Min(100, socWh/b.CapacityWh*100))
}
