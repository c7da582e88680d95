package optimizer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/homebattery/core/model"
)

func TestNewRequest(t *testing.T) {
	b := model.DefaultBattery()
	req := NewRequest(b, 3800, 7)
	assert.InDelta(t, 50, req.CurrentSocPercent, 1e-9)
	assert.Equal(t, 7, req.CurrentTimeIndex)
	assert.InDelta(t, 7.6, req.BatteryParams.CapacityKWh, 1e-9)
	assert.InDelta(t, 1.2, req.BatteryParams.MaxRateKW, 1e-9)
	assert.InDelta(t, 10, req.BatteryParams.MinSocPercent, 1e-9)
	assert.InDelta(t, 0.94, req.BatteryParams.EfficiencyRoundtrip, 1e-9)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "current_soc_percent")
	assert.Contains(t, raw["battery_params"], "efficiency_roundtrip")
}

func TestToPlanned(t *testing.T) {
	var r Response
	require.NoError(t, json.Unmarshal([]byte(`{"solver_status":"optimal","action_next_hour":0.8}`), &r))
	p, err := r.ToPlanned()
	require.NoError(t, err)
	assert.InDelta(t, 800, p.ChargeW, 1e-9)
	assert.Zero(t, p.DischargeW)

	require.NoError(t, json.Unmarshal([]byte(`{"action_next_hour":-0.5}`), &r))
	p, err = r.ToPlanned()
	require.NoError(t, err)
	assert.Zero(t, p.ChargeW)
	assert.InDelta(t, 500, p.DischargeW, 1e-9)

	_, err = Response{}.ToPlanned()
	assert.ErrorIs(t, err, ErrOptimizerUnavailable)
}

func TestPlannerErrorYieldsZero(t *testing.T) {
	c := ClientFunc(func(context.Context, Request) (Response, error) {
		return Response{}, errors.New("connection refused")
	})
	p, err := NewPlanner(c, model.DefaultBattery(), time.Second).Plan(context.Background(), 1000, 0)
	assert.ErrorIs(t, err, ErrOptimizerUnavailable)
	assert.Equal(t, model.Planned{}, p)
}

func TestPlannerTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := ClientFunc(func(ctx context.Context, _ Request) (Response, error) {
		<-release
		return Response{}, nil
	})
	start := time.Now()
	p, err := NewPlanner(c, model.DefaultBattery(), 20*time.Millisecond).Plan(context.Background(), 1000, 0)
	assert.ErrorIs(t, err, ErrOptimizerUnavailable)
	assert.Equal(t, model.Planned{}, p)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPlannerFixed(t *testing.T) {
	p, err := NewPlanner(Fixed(-0.3), model.DefaultBattery(), 0).Plan(context.Background(), 1000, 2)
	require.NoError(t, err)
	assert.InDelta(t, 300, p.DischargeW, 1e-9)
}

func TestPlannerNil(t *testing.T) {
	var p *Planner
	_, err := p.Plan(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrOptimizerUnavailable)
}
