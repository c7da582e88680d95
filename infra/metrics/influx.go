package metrics

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/homebattery/core/metrics"
	"github.com/kilianp07/homebattery/infra/logger"
)

// InfluxSink writes tick outcomes to InfluxDB 2.x.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	timeout  time.Duration
	log      logger.Logger
}

// InfluxConfig is the conf block of an "influx" metrics sink.
type InfluxConfig struct {
	URL     string        `json:"url"`
	Token   string        `json:"token"`
	Org     string        `json:"org"`
	Bucket  string        `json:"bucket"`
	Timeout time.Duration `json:"timeout"`
}

// SetDefaults applies a 5s write timeout.
func (c *InfluxConfig) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

// Validate requires a URL and a bucket.
func (c InfluxConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("influx: url is required")
	}
	if c.Bucket == "" {
		return fmt.Errorf("influx: bucket is required")
	}
	return nil
}

// NewInfluxSink creates a sink for cfg. A URL ending in /api/v2/write is
// accepted and trimmed to the server root.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	cfg.SetDefaults()
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		timeout:  cfg.Timeout,
		log:      logger.New("influx_sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), sink.timeout)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

// RecordTick writes one battery_tick point. Missing readings are omitted.
func (s *InfluxSink) RecordTick(ev coremetrics.TickEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	r := ev.Result
	p := write.NewPointWithMeasurement("battery_tick").
		AddTag("mode", r.Mode.String()).
		AddTag("commanded", strconv.FormatBool(r.Commanded)).
		AddTag("maintenance", strconv.FormatBool(r.Maintenance)).
		AddField("setpoint_w", round3(r.SetpointW)).
		AddField("soc_wh", round3(r.SocWh)).
		AddField("planned_charge_w", round3(r.Planned.ChargeW)).
		AddField("planned_discharge_w", round3(r.Planned.DischargeW)).
		AddField("buy", r.Rates.Buy).
		AddField("sell", r.Rates.Sell).
		AddField("benefit", r.Rates.Benefit).
		AddField("plan_index", r.PlanIndex).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(r.Timestamp)
	snap := ev.Snapshot
	if snap.OverflowPowerW.Valid {
		p.AddField("overflow_w", round3(snap.OverflowPowerW.Value))
	}
	if snap.HouseholdConsumptionW.Valid {
		p.AddField("consumption_w", round3(snap.HouseholdConsumptionW.Value))
	}
	if snap.PVProductionW.Valid {
		p.AddField("pv_w", round3(snap.PVProductionW.Value))
	}
	if snap.RealInputPowerW.Valid {
		p.AddField("real_input_w", round3(snap.RealInputPowerW.Value))
	}
	if snap.RealOutputPowerW.Valid {
		p.AddField("real_output_w", round3(snap.RealOutputPowerW.Value))
	}
	if r.Error != "" {
		p.AddField("error", r.Error)
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordHourSnapshot writes the state of charge captured at the start of
// the hour.
func (s *InfluxSink) RecordHourSnapshot(ev coremetrics.HourSnapshotEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("battery_hour_snapshot").
		AddTag("lazy", strconv.FormatBool(ev.Lazy)).
		AddField("soc_wh", round3(ev.SocWh)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordOptimizerCall writes the latency and outcome of an optimizer call.
func (s *InfluxSink) RecordOptimizerCall(ev coremetrics.OptimizerCallEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("battery_optimizer_call").
		AddTag("success", strconv.FormatBool(ev.Err == nil)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		AddField("planned_charge_w", round3(ev.Planned.ChargeW)).
		AddField("planned_discharge_w", round3(ev.Planned.DischargeW)).
		SetTime(ev.Time)
	if ev.Err != nil {
		p.AddField("error", ev.Err.Error())
	}
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordModeChange writes a mode transition.
func (s *InfluxSink) RecordModeChange(ev coremetrics.ModeChangeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	p := write.NewPointWithMeasurement("battery_mode_change").
		AddTag("from", ev.From.String()).
		AddTag("to", ev.To.String()).
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
