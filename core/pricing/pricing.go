// Package pricing attributes a cost or benefit rate to the power flowing
// through the battery.
package pricing

import (
	"math"

	"github.com/kilianp07/homebattery/core/model"
)

// SensorNoiseW is the constant output the battery reports while idle. It is
// subtracted from the measured output power before pricing.
const SensorNoiseW = 10.0

// Input is the real battery power sampled at the start of the tick.
type Input struct {
	RealInputPowerW  float64
	RealOutputPowerW float64
	OverflowPowerW   float64
	// Price is the current price per kWh.
	Price float64
}

// Tag returns the buy, sell and benefit rates in currency per second. When
// charging only the power beyond the free solar surplus is priced.
func Tag(in Input) model.Rates {
	switch {
	case in.RealInputPowerW > 0:
		overflow := math.Max(in.OverflowPowerW, 0)
		r := rate(math.Max(in.RealInputPowerW-overflow, 0), in.Price)
		return model.Rates{Buy: r, Benefit: -r}
	case in.RealOutputPowerW > 0:
		r := rate(math.Max(in.RealOutputPowerW-SensorNoiseW, 0), in.Price)
		return model.Rates{Sell: r, Benefit: r}
	default:
		return model.Rates{}
	}
}

func rate(taggedW, price float64) float64 {
	return (taggedW / 1000) * (price / 3600)
}
