package mqtt

import (
	"crypto/tls"
	"fmt"
	"strings"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string `json:"broker"`
	ClientID   string `json:"client_id"`
	Username   string `json:"username"`
	Password   string `json:"password"`
	UseTLS     bool   `json:"use_tls"`
	ClientCert string `json:"client_cert"`
	ClientKey  string `json:"client_key"`
	CABundle   string `json:"ca_bundle"`
	AuthMethod string `json:"auth_method"`
	// QoS per message class: telemetry, command, output, state, schedule.
	QoS        map[string]byte `json:"qos"`
	LWTTopic   string          `json:"lwt_topic"`
	LWTPayload string          `json:"lwt_payload"`
	LWTQoS     byte            `json:"lwt_qos"`
	LWTRetain  bool            `json:"lwt_retain"`
	MaxRetries int             `json:"max_retries"`
	BackoffMS  int             `json:"backoff_ms"`
	Topics     Topics          `json:"topics"`
	TLSConfig  *tls.Config     `json:"-"`
}

// Message classes used to look up QoS levels.
const (
	ClassTelemetry = "telemetry"
	ClassCommand   = "command"
	ClassOutput    = "output"
	ClassState     = "state"
	ClassSchedule  = "schedule"
)

// QoSFor returns the configured QoS of a message class, 0 by default.
func (c Config) QoSFor(class string) byte {
	if q, ok := c.QoS[class]; ok {
		return q
	}
	return 0
}

// SetDefaults fills empty connection settings and topics.
func (c *Config) SetDefaults() {
	if c.ClientID == "" {
		c.ClientID = "homebattery"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS == 0 {
		c.BackoffMS = 100
	}
	if c.LWTTopic == "" {
		c.LWTTopic = c.Topics.withPrefix("status/online")
		c.LWTPayload = "offline"
		c.LWTRetain = true
	}
	c.Topics.SetDefaults()
}

// Validate checks that a broker is configured and QoS levels are valid.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("mqtt broker required")
	}
	for class, q := range c.QoS {
		if q > 2 {
			return fmt.Errorf("invalid qos %d for %s", q, class)
		}
	}
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		return fmt.Errorf("unknown auth_method %q", c.AuthMethod)
	}
	return nil
}

// Topics maps every input and output of the controller to an MQTT topic.
// Empty topics are derived from Prefix.
type Topics struct {
	Prefix string `json:"prefix"`

	Soc                  string `json:"soc"`
	OverflowPower        string `json:"overflow_power"`
	HouseholdConsumption string `json:"household_consumption"`
	PVProduction         string `json:"pv_production"`
	OverrideEnabled      string `json:"override_enabled"`
	OverridePower        string `json:"override_power"`
	CurrentPrice         string `json:"current_price"`
	OutputLimit          string `json:"output_limit"`
	InputLimit           string `json:"input_limit"`
	RealInputPower       string `json:"real_input_power"`
	RealOutputPower      string `json:"real_output_power"`

	ACMode         string `json:"ac_mode"`
	SetInputLimit  string `json:"set_input_limit"`
	SetOutputLimit string `json:"set_output_limit"`

	BuyPrice     string `json:"buy_price"`
	SellPrice    string `json:"sell_price"`
	BenefitPrice string `json:"benefit_price"`
	ChargeMode   string `json:"charge_mode"`
	Setpoint     string `json:"setpoint"`
	Status       string `json:"status"`
	Plan         string `json:"plan"`

	Schedule string `json:"schedule"`
	State    string `json:"state"`
}

// SetDefaults derives unset topics from Prefix ("homebattery").
func (t *Topics) SetDefaults() {
	if t.Prefix == "" {
		t.Prefix = "homebattery"
	}
	defaults := []struct {
		dst  *string
		path string
	}{
		{&t.Soc, "telemetry/soc"},
		{&t.OverflowPower, "telemetry/overflow_power"},
		{&t.HouseholdConsumption, "telemetry/household_consumption"},
		{&t.PVProduction, "telemetry/pv_production"},
		{&t.OverrideEnabled, "telemetry/override_enabled"},
		{&t.OverridePower, "telemetry/override_power"},
		{&t.CurrentPrice, "telemetry/current_price"},
		{&t.OutputLimit, "telemetry/output_limit"},
		{&t.InputLimit, "telemetry/input_limit"},
		{&t.RealInputPower, "telemetry/real_input_power"},
		{&t.RealOutputPower, "telemetry/real_output_power"},
		{&t.ACMode, "control/ac_mode"},
		{&t.SetInputLimit, "control/set_input_limit"},
		{&t.SetOutputLimit, "control/set_output_limit"},
		{&t.BuyPrice, "output/buy_price"},
		{&t.SellPrice, "output/sell_price"},
		{&t.BenefitPrice, "output/benefit_price"},
		{&t.ChargeMode, "output/charge_mode"},
		{&t.Setpoint, "output/setpoint"},
		{&t.Status, "output/status"},
		{&t.Plan, "output/plan"},
		{&t.Schedule, "plan/adjusted_prices"},
		{&t.State, "state"},
	}
	for _, d := range defaults {
		if *d.dst == "" {
			*d.dst = t.withPrefix(d.path)
		}
	}
}

func (t Topics) withPrefix(path string) string {
	prefix := t.Prefix
	if prefix == "" {
		prefix = "homebattery"
	}
	return strings.TrimSuffix(prefix, "/") + "/" + path
}

// StateKey returns the retained topic holding a controller state key.
func (t Topics) StateKey(key string) string {
	return strings.TrimSuffix(t.State, "/") + "/" + key
}
