// Package metrics defines the sinks that observe the dispatch loop. Every
// tick is recorded through MetricsSink.RecordTick; sinks may additionally
// implement OptimizerRecorder, HourSnapshotRecorder or TickFailureRecorder.
// Concrete sinks (Prometheus, InfluxDB) live in infra/metrics and register
// themselves with RegisterMetricsSink. NewMetricsSink returns a MultiSink
// automatically when multiple sinks are configured.
package metrics
