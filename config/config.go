package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/homebattery/core/dispatch"
	"github.com/kilianp07/homebattery/core/metrics"
	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/infra/mqtt"
	"github.com/kilianp07/homebattery/infra/optimizer"
)

type Config struct {
	MQTT      mqtt.Config      `json:"mqtt"`
	Battery   model.Battery    `json:"battery"`
	Dispatch  dispatch.Config  `json:"dispatch"`
	Optimizer optimizer.Config `json:"optimizer"`
	Telemetry TelemetryConfig  `json:"telemetry"`
	Plan      PlanConfig       `json:"plan"`
	State     StateConfig      `json:"state"`
	Metrics   metrics.Config   `json:"metrics"`
	Logging   LoggingConfig    `json:"logging"`
	Sentry    SentryConfig     `json:"sentry"`
	API       APIConfig        `json:"api"`
}

// Load reads a YAML or JSON file and applies K_ prefixed environment
// overrides, e.g. K_MQTT__BROKER for mqtt.broker.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every section defaulted. It is used
// by the simulator, which needs no file.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Battery.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Optimizer.SetDefaults()
	c.Telemetry.SetDefaults()
	c.Plan.SetDefaults()
	c.State.SetDefaults()
	c.Logging.SetDefaults()
	c.API.SetDefaults()
}

// Validate checks every section. The MQTT section is only checked when a
// component uses MQTT.
func (c Config) Validate() error {
	var errs []error
	if c.UsesMQTT() {
		errs = append(errs, wrap("mqtt", c.MQTT.Validate()))
	}
	errs = append(errs,
		wrap("battery", c.Battery.Validate()),
		wrap("dispatch", c.Dispatch.Validate()),
		wrap("optimizer", c.Optimizer.Validate()),
		wrap("telemetry", c.Telemetry.Validate()),
		wrap("plan", c.Plan.Validate()),
		wrap("state", c.State.Validate()),
		wrap("logging", c.Logging.Validate()),
		wrap("api", c.API.Validate()),
	)
	return errors.Join(errs...)
}

// UsesMQTT reports whether any configured component needs the broker.
func (c Config) UsesMQTT() bool {
	return c.Telemetry.Source == SourceMQTT || c.Plan.Source == SourceMQTT || c.State.Backend == SourceMQTT
}

func wrap(section string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", section, err)
}
