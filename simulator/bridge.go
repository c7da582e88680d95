package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/infra/logger"
	"github.com/kilianp07/homebattery/infra/mqtt"
)

// Bridge exposes a Home on MQTT: it publishes the simulated sensors on the
// telemetry topics and applies the commands received on the control topics.
// It lets the real service run against the simulated device.
type Bridge struct {
	home   *Home
	ps     mqtt.PubSub
	topics mqtt.Topics
	qos    byte
	log    logger.Logger

	mu  sync.Mutex
	cmd model.Command
}

// NewBridge subscribes to the control topics.
func NewBridge(h *Home, ps mqtt.PubSub, t mqtt.Topics, qos byte) (*Bridge, error) {
	t.SetDefaults()
	b := &Bridge{home: h, ps: ps, topics: t, qos: qos, log: logger.New("sim_bridge")}
	handlers := map[string]mqtt.Handler{
		t.ACMode:         b.onACMode,
		t.SetInputLimit:  b.onLimit(func(c *model.Command, w float64) { c.InputLimitW = w }),
		t.SetOutputLimit: b.onLimit(func(c *model.Command, w float64) { c.OutputLimitW = w }),
	}
	for topic, h := range handlers {
		if err := ps.Subscribe(topic, qos, h); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return b, nil
}

func (b *Bridge) onACMode(_ string, payload []byte) {
	v, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil || v < 0 || v > 2 {
		b.log.Warnf("invalid ac mode %q", payload)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cmd.ACMode = model.ACMode(v)
	b.apply()
}

func (b *Bridge) onLimit(set func(*model.Command, float64)) mqtt.Handler {
	return func(topic string, payload []byte) {
		w, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64)
		if err != nil || w < 0 {
			b.log.Warnf("invalid limit on %s: %q", topic, payload)
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		set(&b.cmd, w)
		b.apply()
	}
}

func (b *Bridge) apply() {
	cmd := b.cmd
	// ac mode is sticky on the device
	b.cmd.ACMode = model.ACModeUnchanged
	_ = b.home.Apply(context.Background(), cmd)
}

// PublishTelemetry publishes the current sensor values. The state of charge
// is published in percent, the way the device reports it.
func (b *Bridge) PublishTelemetry(ctx context.Context) error {
	snap, err := b.home.Snapshot(ctx)
	if err != nil {
		return err
	}
	values := map[string]string{
		b.topics.Soc:                  formatFloat(b.home.params.SocPercent(snap.SocWh)),
		b.topics.OverflowPower:        formatFloat(snap.OverflowPowerW.Or(0)),
		b.topics.HouseholdConsumption: formatFloat(snap.HouseholdConsumptionW.Or(0)),
		b.topics.PVProduction:         formatFloat(snap.PVProductionW.Or(0)),
		b.topics.OverrideEnabled:      onOff(snap.OverrideEnabled.On),
		b.topics.OverridePower:        formatFloat(snap.OverridePowerW.Or(0)),
		b.topics.OutputLimit:          formatFloat(snap.CurrentOutputLimitW),
		b.topics.InputLimit:           formatFloat(snap.CurrentInputLimitW),
		b.topics.RealInputPower:       formatFloat(snap.RealInputPowerW.Or(0)),
		b.topics.RealOutputPower:      formatFloat(snap.RealOutputPowerW.Or(0)),
	}
	if snap.CurrentPrice.Valid {
		values[b.topics.CurrentPrice] = formatFloat(snap.CurrentPrice.Value)
	}
	for topic, v := range values {
		if err := b.ps.Publish(ctx, topic, b.qos, false, []byte(v)); err != nil {
			return err
		}
	}
	return nil
}

// PublishPlan publishes the price plan as a retained schedule message.
func (b *Bridge) PublishPlan(ctx context.Context) error {
	data, err := json.Marshal(b.home.Plan())
	if err != nil {
		return err
	}
	return b.ps.Publish(ctx, b.topics.Schedule, b.qos, true, data)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
