package simulator

import (
	"math"
	"sync"
	"time"

	"github.com/kilianp07/homebattery/core/model"
)

// Battery models a home battery with charge and discharge limits. Charging
// losses are applied on the way in.
type Battery struct {
	params  model.Battery
	mu    sync.Mutex
	socWh float64
}

// NewBattery returns a battery at the given state of charge in percent.
func NewBattery(params model.Battery, socPercent float64) *Battery {
	return &Battery{params: params, socWh: params.PercentToWh(socPercent)}
}

// SocWh returns the stored energy.
func (b *Battery) SocWh() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.socWh
}

// ApplyPower integrates powerW over dt and returns the power actually
// applied. Positive power charges, negative power discharges.
func (b *Battery) ApplyPower(powerW float64, dt time.Duration) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	hours := dt.Hours()
	if hours <= 0 || powerW == 0 {
		return 0
	}
	eff := b.params.RoundTripEfficiency
	if eff <= 0 {
		eff = 1
	}
	if powerW > 0 {
		p := math.Min(powerW, b.params.MaxChargeRateW)
		room := math.Max(b.params.CapacityWh-b.socWh, 0)
		if p*hours*eff > room {
			p = room / (hours * eff)
		}
		b.socWh += p * hours * eff
		return p
	}
	p := math.Min(-powerW, b.params.MaxDischargeRateW)
	if p*hours > b.socWh {
		p = b.socWh / hours
	}
	b.socWh -= p * hours
	return -p
}
