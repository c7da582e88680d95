package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	tickLatency       prometheus.Histogram
	optimizerLatency  prometheus.Histogram
	ticksTotal        *prometheus.CounterVec
	tickFailures      *prometheus.CounterVec
	setpointGauge     prometheus.Gauge
	socGauge          prometheus.Gauge
	maintenanceGauge  prometheus.Gauge
	priceRateGauge    *prometheus.GaugeVec
	hourSnapshotGauge prometheus.Gauge
)

type collectors struct {
	tick, optimizer prometheus.Histogram
	ticks, failures *prometheus.CounterVec
	setpoint, soc   prometheus.Gauge
	maintenance     prometheus.Gauge
	rates           *prometheus.GaugeVec
	hourStart       prometheus.Gauge
}

// newCollectors creates new metric collectors.
func newCollectors() collectors {
	return collectors{
		tick: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "battery_tick_duration_seconds",
			Help:    "Wall time spent evaluating a control tick",
			Buckets: prometheus.DefBuckets,
		}),
		optimizer: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "battery_optimizer_latency_seconds",
			Help:    "Latency of optimizer requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battery_ticks_total",
			Help: "Number of control ticks per dispatch mode",
		}, []string{"mode"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battery_tick_failures_total",
			Help: "Number of tick stage failures",
		}, []string{"stage"}),
		setpoint: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_setpoint_watts",
			Help: "Last signed power setpoint, positive when charging",
		}),
		soc: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_soc_wh",
			Help: "Last observed state of charge",
		}),
		maintenance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_maintenance_mode",
			Help: "1 while maintenance charging mode is active",
		}),
		rates: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_price_rate",
			Help: "Cost attribution of the power flowing, in currency per second",
		}, []string{"kind"}),
		hourStart: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "battery_soc_at_start_of_hour_wh",
			Help: "State of charge captured at the start of the hour",
		}),
	}
}

func (c collectors) assign() {
	tickLatency = c.tick
	optimizerLatency = c.optimizer
	ticksTotal = c.ticks
	tickFailures = c.failures
	setpointGauge = c.setpoint
	socGauge = c.soc
	maintenanceGauge = c.maintenance
	priceRateGauge = c.rates
	hourSnapshotGauge = c.hourStart
}

func init() {
	newCollectors().assign()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(tickLatency, optimizerLatency, ticksTotal, tickFailures,
		setpointGauge, socGauge, maintenanceGauge, priceRateGauge, hourSnapshotGauge)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	newCollectors().assign()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
