package metrics

import "github.com/kilianp07/homebattery/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort enables the /metrics endpoint when set, e.g. "9100".
	PrometheusPort string `json:"prometheus_port"`
}
