package metrics

import (
	"github.com/kilianp07/homebattery/core/factory"
	coremetrics "github.com/kilianp07/homebattery/core/metrics"
)

func init() {
	_ = coremetrics.RegisterMetricsSink("nop", newNopSink)
	_ = coremetrics.RegisterMetricsSink("prometheus", newPromSink)
	_ = coremetrics.RegisterMetricsSink("influx", newInfluxSink)
}

func newNopSink(map[string]any) (coremetrics.MetricsSink, error) {
	return coremetrics.NopSink{}, nil
}

// newPromSink registers on the default registerer, which is what the
// metrics.prometheus_port server exposes.
func newPromSink(map[string]any) (coremetrics.MetricsSink, error) {
	return NewPromSink(nil)
}

// newInfluxSink falls back to a NopSink when the server is unreachable at
// startup.
func newInfluxSink(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c InfluxConfig
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return NewInfluxSinkWithFallback(c), nil
}
