package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/plan"
	"github.com/kilianp07/homebattery/core/state"
)

func defaultTopics() Topics {
	var t Topics
	t.SetDefaults()
	return t
}

func TestActuator_Apply(t *testing.T) {
	tests := []struct {
		name string
		cmd  model.Command
		want map[string][]string
	}{
		{
			name: "charge",
			cmd:  model.CommandFor(300),
			want: map[string][]string{
				"homebattery/control/ac_mode":          {"1"},
				"homebattery/control/set_input_limit":  {"300"},
				"homebattery/control/set_output_limit": {"0"},
			},
		},
		{
			name: "discharge",
			cmd:  model.CommandFor(-452.5),
			want: map[string][]string{
				"homebattery/control/ac_mode":          {"2"},
				"homebattery/control/set_input_limit":  {"0"},
				"homebattery/control/set_output_limit": {"452.5"},
			},
		},
		{
			name: "idle leaves ac mode",
			cmd:  model.CommandFor(0),
			want: map[string][]string{
				"homebattery/control/ac_mode":          nil,
				"homebattery/control/set_input_limit":  {"0"},
				"homebattery/control/set_output_limit": {"0"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broker := NewMemoryBroker()
			a := NewActuator(broker, Topics{}, 1)
			require.NoError(t, a.Apply(context.Background(), tt.cmd))
			for topic, want := range tt.want {
				assert.Equal(t, want, broker.Published(topic), topic)
			}
			for _, m := range broker.Messages {
				assert.Equal(t, byte(1), m.QoS)
				assert.False(t, m.Retained)
			}
		})
	}
}

func TestActuator_StopsOnError(t *testing.T) {
	broker := NewMemoryBroker()
	broker.FailTopics["homebattery/control/ac_mode"] = true
	a := NewActuator(broker, Topics{}, 0)
	require.Error(t, a.Apply(context.Background(), model.CommandFor(100)))
	assert.Empty(t, broker.Messages)
}

func TestResultPublisher_Publish(t *testing.T) {
	broker := NewMemoryBroker()
	p := NewResultPublisher(broker, Topics{}, 0)
	res := model.DispatchResult{
		ID:        "5b0c1d2e",
		Timestamp: time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC),
		SetpointW: -450,
		Mode:      model.ModePlannedDischarge,
		Rates:     model.Rates{Sell: 0.0000583, Benefit: 0.0000583},
		PlanIndex: 1,
		Planned:   model.Planned{DischargeW: 500},
		Commanded: true,
	}
	require.NoError(t, p.Publish(context.Background(), res))

	topics := defaultTopics()
	last := func(topic string) string {
		v, ok := broker.Last(topic)
		require.True(t, ok, topic)
		return v
	}
	assert.Equal(t, "0", last(topics.BuyPrice))
	assert.Equal(t, "5.83e-05", last(topics.SellPrice))
	assert.Equal(t, "5.83e-05", last(topics.BenefitPrice))
	assert.Equal(t, "Planned discharge", last(topics.ChargeMode))
	assert.Equal(t, "-450", last(topics.Setpoint))

	var doc struct {
		ID      string        `json:"id"`
		Mode    string        `json:"mode"`
		Command model.Command `json:"command"`
	}
	require.NoError(t, json.Unmarshal([]byte(last(topics.Status)), &doc))
	assert.Equal(t, "5b0c1d2e", doc.ID)
	assert.Equal(t, "Planned discharge", doc.Mode)
	assert.Equal(t, model.ACModeDischarge, doc.Command.ACMode)
	assert.Equal(t, 450.0, doc.Command.OutputLimitW)

	var planDoc struct {
		Index   int           `json:"index"`
		Planned model.Planned `json:"planned"`
	}
	require.NoError(t, json.Unmarshal([]byte(last(topics.Plan)), &planDoc))
	assert.Equal(t, 1, planDoc.Index)
	assert.Equal(t, 500.0, planDoc.Planned.DischargeW)
}

func TestResultPublisher_AttemptsAllTopics(t *testing.T) {
	broker := NewMemoryBroker()
	topics := defaultTopics()
	broker.FailTopics[topics.BuyPrice] = true
	p := NewResultPublisher(broker, Topics{}, 0)
	err := p.Publish(context.Background(), model.DispatchResult{Mode: model.ModeSkipped})
	require.Error(t, err)
	_, ok := broker.Last(topics.Status)
	assert.True(t, ok, "status must still be published")
	_, ok = broker.Last(topics.Setpoint)
	assert.True(t, ok)
}

func TestStateStore_RoundTripAndRetained(t *testing.T) {
	broker := NewMemoryBroker()
	ctx := context.Background()
	first, err := NewStateStore(broker, Topics{}, 1, 0)
	require.NoError(t, err)

	_, err = first.Get(ctx, state.KeyMaintenanceMode)
	assert.ErrorIs(t, err, state.ErrNotFound)

	require.NoError(t, first.Set(ctx, state.KeyMaintenanceMode, "true"))
	v, err := first.Get(ctx, state.KeyMaintenanceMode)
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	// a second store sees the retained value
	second, err := NewStateStore(broker, Topics{}, 1, time.Millisecond)
	require.NoError(t, err)
	v, err = second.Get(ctx, state.KeyMaintenanceMode)
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	msgs := broker.Messages
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Retained)
	assert.Equal(t, "homebattery/state/maintenance_mode", msgs[0].Topic)
}

func TestStateStore_GetWaitsForSettle(t *testing.T) {
	broker := NewMemoryBroker()
	s, err := NewStateStore(broker, Topics{}, 0, 50*time.Millisecond)
	require.NoError(t, err)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = broker.Publish(context.Background(), "homebattery/state/current_charge_mode", 0, true, []byte("Override"))
	}()
	v, err := s.Get(context.Background(), state.KeyChargeMode)
	require.NoError(t, err)
	assert.Equal(t, "Override", v)
}

const scheduleJSON = `{"data":[
{"index":0,"hour":14,"date":"2025-03-01","tibberTotal":"0.3012","solarProduction":"120","adjustedPrice":"0.2800"},
{"index":1,"hour":15,"date":"2025-03-01","tibberTotal":"0.3300","solarProduction":"80","adjustedPrice":"0.3100"}
]}`

func TestScheduleSource(t *testing.T) {
	broker := NewMemoryBroker()
	topics := defaultTopics()
	src, err := NewScheduleSource(broker, Topics{}, 0)
	require.NoError(t, err)

	_, err = src.Schedule(context.Background())
	assert.ErrorIs(t, err, plan.ErrMalformedPriceSchedule)

	require.NoError(t, broker.Publish(context.Background(), topics.Schedule, 0, true, []byte(scheduleJSON)))
	entries, err := src.Schedule(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.Number(0.3012), entries[0].TibberTotal)

	require.NoError(t, broker.Publish(context.Background(), topics.Schedule, 0, true, []byte(`{"data":{}}`)))
	_, err = src.Schedule(context.Background())
	assert.True(t, errors.Is(err, plan.ErrMalformedPriceSchedule))
}

func TestTopicMatches(t *testing.T) {
	assert.True(t, TopicMatches("a/#", "a/b/c"))
	assert.True(t, TopicMatches("a/+/c", "a/b/c"))
	assert.False(t, TopicMatches("a/+", "a/b/c"))
	assert.False(t, TopicMatches("a/b", "a"))
	assert.True(t, TopicMatches("a/b", "a/b"))
}
