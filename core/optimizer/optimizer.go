// Package optimizer defines the contract with the hour-ahead optimization
// service.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/homebattery/core/model"
)

// ErrOptimizerUnavailable wraps transport, timeout and decoding failures.
var ErrOptimizerUnavailable = errors.New("optimizer unavailable")

// BatteryParams describes the battery to the optimizer.
type BatteryParams struct {
	CapacityKWh         float64 `json:"capacity_kwh"`
	MaxRateKW           float64 `json:"max_rate_kw"`
	MinSocPercent       float64 `json:"min_soc_percent"`
	EfficiencyRoundtrip float64 `json:"efficiency_roundtrip"`
}

// Request is the body sent to the optimizer.
type Request struct {
	CurrentSocPercent float64       `json:"current_soc_percent"`
	CurrentTimeIndex  int           `json:"current_time_index"`
	BatteryParams     BatteryParams `json:"battery_params"`
}

// Response is the optimizer answer. ActionNextHour is a pointer so that an
// absent field can be told apart from an explicit zero.
type Response struct {
	SolverStatus          string   `json:"solver_status,omitempty"`
	ActionNextHour        *float64 `json:"action_next_hour"`
	EstimatedTotalSavings *float64 `json:"estimated_total_savings,omitempty"`
}

// Client performs a single optimization request.
type Client interface {
	Optimize(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

func (f ClientFunc) Optimize(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// NewRequest builds the request for the current state of charge and plan
// index. The minimum state of charge passed on is the maintenance threshold
// so that the optimizer never plans into the maintenance band.
func NewRequest(b model.Battery, socWh float64, index int) Request {
	return Request{
		CurrentSocPercent: b.SocPercent(socWh),
		CurrentTimeIndex:  index,
		BatteryParams: BatteryParams{
			CapacityKWh:         b.CapacityWh / 1000,
			MaxRateKW:           b.MaxChargeRateW / 1000,
			MinSocPercent:       b.MaintenanceSoC * 100,
			EfficiencyRoundtrip: b.RoundTripEfficiency,
		},
	}
}

// ToPlanned converts the action to planned charge and discharge in W.
func (r Response) ToPlanned() (model.Planned, error) {
	if r.ActionNextHour == nil {
		return model.Planned{}, fmt.Errorf("%w: missing action_next_hour", ErrOptimizerUnavailable)
	}
	a := *r.ActionNextHour
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return model.Planned{}, fmt.Errorf("%w: invalid action %v", ErrOptimizerUnavailable, a)
	}
	return model.Planned{
		ChargeW:    math.Max(a, 0) * 1000,
		DischargeW: -math.Min(a, 0) * 1000,
	}, nil
}

// Planner wraps a Client with a bounded timeout.
type Planner struct {
	client  Client
	battery model.Battery
	timeout time.Duration
}

// NewPlanner returns a planner. A non-positive timeout defaults to 5s.
func NewPlanner(c Client, b model.Battery, timeout time.Duration) *Planner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Planner{client: c, battery: b, timeout: timeout}
}

// Plan asks the optimizer for the active hour. On any failure it returns
// zero planned values together with an error wrapping
// ErrOptimizerUnavailable, so callers can log and continue.
func (p *Planner) Plan(ctx context.Context, socWh float64, index int) (model.Planned, error) {
	if p == nil || p.client == nil {
		return model.Planned{}, fmt.Errorf("%w: no client configured", ErrOptimizerUnavailable)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		resp Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := p.client.Optimize(ctx, NewRequest(p.battery, socWh, index))
		ch <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return model.Planned{}, fmt.Errorf("%w: %v", ErrOptimizerUnavailable, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, ErrOptimizerUnavailable) {
				return model.Planned{}, r.err
			}
			return model.Planned{}, fmt.Errorf("%w: %v", ErrOptimizerUnavailable, r.err)
		}
		planned, err := r.resp.ToPlanned()
		if err != nil {
			return model.Planned{}, err
		}
		return planned, nil
	}
}

// Fixed returns a client that always answers with the given action.
func Fixed(action float64) Client {
	return ClientFunc(func(context.Context, Request) (Response, error) {
		a := action
		return Response{SolverStatus: "fixed", ActionNextHour: &a}, nil
	})
}
