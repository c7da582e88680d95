package simulator

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/optimizer"
	"github.com/kilianp07/homebattery/core/plan"
)

// PricePlan builds an hourly schedule covering [start, start+d). Prices
// follow a day-night pattern with morning and evening peaks; the adjusted
// price discounts hours with expected solar production.
func PricePlan(start time.Time, d time.Duration, p *Profile) []model.PlanEntry {
	first := start.Truncate(time.Hour)
	n := int(math.Ceil(start.Add(d).Sub(first).Hours()))
	entries := make([]model.PlanEntry, 0, n)
	for i := 0; i < n; i++ {
		t := first.Add(time.Duration(i) * time.Hour)
		h := float64(t.Hour()) + 0.5
		total := 0.22 + 0.08*bump(h, 8, 1.5) + 0.14*bump(h, 19, 2) - 0.04*bump(h, 3, 2)
		solar := 0.0
		if p != nil {
			solar = p.peakPVW * math.Max(math.Sin(math.Pi*(h-6)/14), 0) / 1000
			if h < 6 || h > 20 {
				solar = 0
			}
		}
		entries = append(entries, model.PlanEntry{
			Index:           i,
			Hour:            t.Hour(),
			Date:            t.Format(plan.DateLayout),
			TibberTotal:     model.Number(round4(total)),
			SolarProduction: model.Number(round4(solar)),
			AdjustedPrice:   model.Number(round4(total - 0.05*solar)),
		})
	}
	return entries
}

func round4(f float64) float64 {
	return math.Round(f*1e4) / 1e4
}

// ThresholdOptimizer is an optimizer.Client that charges at full rate in the
// cheapest quarter of the plan and discharges in the most expensive quarter.
type ThresholdOptimizer struct {
	entries []model.PlanEntry
	low     float64
	high    float64
}

// NewThresholdOptimizer computes the price quartiles of entries.
func NewThresholdOptimizer(entries []model.PlanEntry) *ThresholdOptimizer {
	prices := make([]float64, len(entries))
	for i, e := range entries {
		prices[i] = float64(e.AdjustedPrice)
	}
	sort.Float64s(prices)
	o := &ThresholdOptimizer{entries: entries}
	if len(prices) > 0 {
		o.low = prices[len(prices)/4]
		o.high = prices[(3*len(prices))/4]
	}
	return o
}

// Optimize returns the action for the requested hour in kW.
func (o *ThresholdOptimizer) Optimize(_ context.Context, req optimizer.Request) (optimizer.Response, error) {
	if req.CurrentTimeIndex < 0 || req.CurrentTimeIndex >= len(o.entries) {
		return optimizer.Response{}, optimizer.ErrOptimizerUnavailable
	}
	price := float64(o.entries[req.CurrentTimeIndex].AdjustedPrice)
	rate := req.BatteryParams.MaxRateKW
	action := 0.0
	switch {
	case price <= o.low && req.CurrentSocPercent < 95:
		action = rate
	case price >= o.high && req.CurrentSocPercent > req.BatteryParams.MinSocPercent:
		action = -rate
	}
	return optimizer.Response{SolverStatus: "threshold", ActionNextHour: &action}, nil
}
