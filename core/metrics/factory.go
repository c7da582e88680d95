package metrics

import (
	"fmt"

	"github.com/kilianp07/homebattery/core/factory"
)

var sinks = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink makes a sink type available to metrics.sinks.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinks.Register(name, f)
}

// SinkTypes lists the registered sink types.
func SinkTypes() []string { return sinks.Names() }

// NewMetricsSink builds the configured sinks. No entry yields a NopSink and
// several entries are combined into a MultiSink.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	all, err := sinks.CreateAll(cfgs)
	if err != nil {
		return nil, fmt.Errorf("metrics sink %w", err)
	}
	switch len(all) {
	case 0:
		return NopSink{}, nil
	case 1:
		return all[0], nil
	}
	return NewMultiSink(all...), nil
}
