package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/telemetry"
	"github.com/kilianp07/homebattery/infra/logger"
)

// DefaultMaxAge is the age after which a power reading is considered missing.
const DefaultMaxAge = 120 * time.Second

// TelemetryOptions tune a TelemetrySource.
type TelemetryOptions struct {
	// MaxAge applies to the state of charge and power readings. Switches,
	// limits and prices are kept until replaced.
	MaxAge     time.Duration
	QoS        byte
	Registerer prometheus.Registerer
	Clock      func() time.Time
}

type sample struct {
	value float64
	on    bool
	at    time.Time
}

// TelemetrySource caches the last value received on each telemetry topic and
// samples them all at once for a tick.
type TelemetrySource struct {
	battery model.Battery
	maxAge  time.Duration
	clock   func() time.Time
	log     logger.Logger

	mu     sync.RWMutex
	values map[string]sample

	received *prometheus.CounterVec
	invalid  *prometheus.CounterVec
	lastSeen prometheus.Gauge
}

// expiring lists the fields subject to MaxAge.
var expiring = map[string]bool{
	telemetry.FieldSoc:                  true,
	telemetry.FieldOverflowPower:        true,
	telemetry.FieldHouseholdConsumption: true,
	telemetry.FieldPVProduction:         true,
	telemetry.FieldRealInputPower:       true,
	telemetry.FieldRealOutputPower:      true,
}

// NewTelemetrySource subscribes to every telemetry topic in t.
func NewTelemetrySource(sub Subscriber, b model.Battery, t Topics, opts TelemetryOptions) (*TelemetrySource, error) {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}
	s := &TelemetrySource{
		battery: b,
		maxAge:  opts.MaxAge,
		clock:   opts.Clock,
		log:     logger.New("mqtt_telemetry"),
		values:  make(map[string]sample),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battery_telemetry_messages_total",
			Help: "Telemetry messages received per field",
		}, []string{"field"}),
		invalid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battery_telemetry_invalid_payloads_total",
			Help: "Telemetry payloads that could not be parsed",
		}, []string{"field"}),
		lastSeen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_telemetry_last_message_timestamp_seconds",
			Help: "Unix timestamp of the last telemetry message",
		}),
	}
	if err := s.register(opts.Registerer); err != nil {
		return nil, err
	}

	t.SetDefaults()
	for field, topic := range telemetryTopics(t) {
		field := field
		if err := sub.Subscribe(topic, opts.QoS, func(_ string, payload []byte) {
			s.onMessage(field, payload)
		}); err != nil {
			return nil, fmt.Errorf("subscribe %s: %w", field, err)
		}
	}
	return s, nil
}

func (s *TelemetrySource) register(reg prometheus.Registerer) error {
	if err := reg.Register(s.received); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		s.received = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(s.invalid); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		s.invalid = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(s.lastSeen); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		s.lastSeen = are.ExistingCollector.(prometheus.Gauge)
	}
	return nil
}

func telemetryTopics(t Topics) map[string]string {
	return map[string]string{
		telemetry.FieldSoc:                  t.Soc,
		telemetry.FieldOverflowPower:        t.OverflowPower,
		telemetry.FieldHouseholdConsumption: t.HouseholdConsumption,
		telemetry.FieldPVProduction:         t.PVProduction,
		telemetry.FieldOverrideEnabled:      t.OverrideEnabled,
		telemetry.FieldOverridePower:        t.OverridePower,
		telemetry.FieldCurrentPrice:         t.CurrentPrice,
		telemetry.FieldOutputLimit:          t.OutputLimit,
		telemetry.FieldInputLimit:           t.InputLimit,
		telemetry.FieldRealInputPower:       t.RealInputPower,
		telemetry.FieldRealOutputPower:      t.RealOutputPower,
	}
}

// onMessage caches the parsed value. A payload that does not parse, such as
// Home Assistant's "unavailable", clears the field so it reads as missing.
func (s *TelemetrySource) onMessage(field string, payload []byte) {
	now := s.clock()
	s.received.WithLabelValues(field).Inc()
	s.lastSeen.Set(float64(now.Unix()))
	smp, err := parseSample(field, payload, now)
	s.mu.Lock()
	if err != nil {
		delete(s.values, field)
	} else {
		s.values[field] = smp
	}
	s.mu.Unlock()
	if err != nil {
		s.invalid.WithLabelValues(field).Inc()
		s.log.Warnf("telemetry %s: %v", field, err)
	}
}

func parseSample(field string, payload []byte, now time.Time) (sample, error) {
	raw, err := unwrapPayload(payload)
	if err != nil {
		return sample{}, err
	}
	if field == telemetry.FieldOverrideEnabled {
		on, err := ParseSwitch(raw)
		if err != nil {
			return sample{}, err
		}
		return sample{on: on, at: now}, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return sample{}, fmt.Errorf("invalid number %q", raw)
	}
	return sample{value: v, at: now}, nil
}

// unwrapPayload accepts a bare value or a JSON object carrying it under
// "val", "value" or "state".
func unwrapPayload(payload []byte) (string, error) {
	raw := strings.TrimSpace(string(payload))
	if raw == "" {
		return "", fmt.Errorf("empty payload")
	}
	if !strings.HasPrefix(raw, "{") {
		return strings.Trim(raw, `"`), nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	for _, k := range []string{"val", "value", "state"} {
		if v, ok := obj[k]; ok {
			switch x := v.(type) {
			case string:
				return strings.TrimSpace(x), nil
			case float64:
				return strconv.FormatFloat(x, 'f', -1, 64), nil
			case bool:
				return strconv.FormatBool(x), nil
			}
			return "", fmt.Errorf("unsupported %s type %T", k, v)
		}
	}
	return "", fmt.Errorf("payload has no value")
}

// ParseSwitch parses on/off style boolean states.
func ParseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch state %q", s)
}

func (s *TelemetrySource) get(field string, now time.Time) (sample, bool) {
	smp, ok := s.values[field]
	if !ok {
		return sample{}, false
	}
	if expiring[field] && now.Sub(smp.at) > s.maxAge {
		return sample{}, false
	}
	return smp, true
}

func (s *TelemetrySource) reading(field string, now time.Time) model.Reading {
	if smp, ok := s.get(field, now); ok {
		return model.Some(smp.value)
	}
	return model.Missing()
}

// Snapshot samples the cached readings. The state of charge, reported by
// the device in percent, is required.
func (s *TelemetrySource) Snapshot(context.Context) (model.TickSnapshot, error) {
	now := s.clock()
	s.mu.RLock()
	defer s.mu.RUnlock()

	soc, ok := s.get(telemetry.FieldSoc, now)
	if !ok {
		return model.TickSnapshot{}, telemetry.Missing(telemetry.FieldSoc)
	}
	snap := model.TickSnapshot{
		Time:                  now,
		SocWh:                 s.battery.PercentToWh(soc.value),
		OverflowPowerW:        s.reading(telemetry.FieldOverflowPower, now),
		HouseholdConsumptionW: s.reading(telemetry.FieldHouseholdConsumption, now),
		PVProductionW:         s.reading(telemetry.FieldPVProduction, now),
		OverridePowerW:        s.reading(telemetry.FieldOverridePower, now),
		CurrentPrice:          s.reading(telemetry.FieldCurrentPrice, now),
		CurrentOutputLimitW:   s.reading(telemetry.FieldOutputLimit, now).Or(0),
		CurrentInputLimitW:    s.reading(telemetry.FieldInputLimit, now).Or(0),
		RealInputPowerW:       s.reading(telemetry.FieldRealInputPower, now),
		RealOutputPowerW:      s.reading(telemetry.FieldRealOutputPower, now),
	}
	if sw, ok := s.get(telemetry.FieldOverrideEnabled, now); ok {
		snap.OverrideEnabled = model.Switch{On: sw.on, Valid: true}
	}
	return snap, nil
}
