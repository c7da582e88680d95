// Package maintenance implements the deep-discharge protection flag.
package maintenance

import "github.com/kilianp07/homebattery/core/model"

// Next returns the maintenance flag for the current state of charge. The flag
// is set below the minimum threshold, cleared at or above the maintenance
// threshold and keeps prev in between.
func Next(prev bool, socWh float64, b model.Battery) bool {
	switch {
	case socWh < b.MinSocWh():
		return true
	case socWh >= b.MaintenanceSocWh():
		return false
	default:
		return prev
	}
}

// Preempts reports whether maintenance charging takes priority over every
// other branch for the given planned charge.
func Preempts(active bool, plannedChargeW float64, b model.Battery) bool {
	return active && plannedChargeW < b.MaintenanceChargePowerW
}
