// Package app wires the configured adapters around the dispatch controller.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/homebattery/api/ticks"
	"github.com/kilianp07/homebattery/config"
	"github.com/kilianp07/homebattery/core/dispatch"
	"github.com/kilianp07/homebattery/core/dispatch/logging"
	"github.com/kilianp07/homebattery/core/events"
	coremetrics "github.com/kilianp07/homebattery/core/metrics"
	"github.com/kilianp07/homebattery/core/model"
	coremon "github.com/kilianp07/homebattery/core/monitoring"
	coreopt "github.com/kilianp07/homebattery/core/optimizer"
	"github.com/kilianp07/homebattery/core/plan"
	"github.com/kilianp07/homebattery/core/state"
	"github.com/kilianp07/homebattery/core/telemetry"
	"github.com/kilianp07/homebattery/infra/logger"
	"github.com/kilianp07/homebattery/infra/metrics"
	"github.com/kilianp07/homebattery/infra/monitoring"
	"github.com/kilianp07/homebattery/infra/mqtt"
	"github.com/kilianp07/homebattery/infra/optimizer"
	"github.com/kilianp07/homebattery/infra/schedule"
	infrastate "github.com/kilianp07/homebattery/infra/state"
	"github.com/kilianp07/homebattery/internal/eventbus"
	"github.com/kilianp07/homebattery/simulator"
)

// Service owns the controller and every adapter around it.
type Service struct {
	Controller *dispatch.Controller
	TickLog    logging.TickStore

	cfg     *config.Config
	ps      mqtt.PubSub
	paho    *mqtt.PahoClient
	home    *simulator.Home
	sink    coremetrics.MetricsSink
	bus     *eventbus.Bus[events.Event]
	log     logger.Logger
	closers []func() error
}

// Option customizes a Service.
type Option func(*Service)

// WithPubSub replaces the MQTT connection, e.g. with a MemoryBroker.
func WithPubSub(ps mqtt.PubSub) Option {
	return func(s *Service) { s.ps = ps }
}

// New builds the service described by cfg. Nothing runs until Run or Once
// is called.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	logger.Configure(cfg.Logging.Level, cfg.Logging.Console)
	s := &Service{cfg: cfg, log: logger.New("service"), bus: eventbus.New[events.Event]()}
	for _, o := range opts {
		o(s)
	}
	if err := s.build(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) build() error {
	cfg := s.cfg
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	if cfg.UsesMQTT() && s.ps == nil {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("mqtt client: %w", err)
		}
		s.ps, s.paho = client, client
	}
	if cfg.Telemetry.Source == config.SourceSimulator || cfg.Plan.Source == config.SourceSimulator {
		simCfg := simulator.Config{Start: time.Now()}
		simCfg.SetDefaults()
		s.home = simulator.NewHome(simCfg, cfg.Battery, simulator.NewClock(simCfg.Start))
	}

	tel, err := s.telemetrySource()
	if err != nil {
		return err
	}
	sched, err := s.scheduleSource()
	if err != nil {
		return err
	}
	store, err := s.stateStore()
	if err != nil {
		return err
	}
	planner, err := s.planner()
	if err != nil {
		return err
	}
	s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	s.TickLog, err = logging.Open(cfg.Logging.Ticks)
	if err != nil {
		return fmt.Errorf("tick log: %w", err)
	}
	s.closers = append(s.closers, s.TickLog.Close)

	deps := dispatch.Deps{
		Telemetry: tel,
		Schedule:  sched,
		Planner:   planner,
		State:     store,
		Metrics:   s.sink,
		TickLog:   s.TickLog,
		Bus:       s.bus,
		Logger:    logger.New("dispatch"),
	}
	if s.home != nil && cfg.Telemetry.Source == config.SourceSimulator {
		deps.Actuator = s.home
	} else if s.ps != nil {
		deps.Actuator = mqtt.NewActuator(s.ps, cfg.MQTT.Topics, cfg.MQTT.QoSFor(mqtt.ClassCommand))
	}
	if s.ps != nil {
		deps.Publisher = mqtt.NewResultPublisher(s.ps, cfg.MQTT.Topics, cfg.MQTT.QoSFor(mqtt.ClassOutput))
	}
	s.Controller, err = dispatch.NewController(cfg.Dispatch, cfg.Battery, deps)
	if err != nil {
		return fmt.Errorf("controller: %w", err)
	}
	return nil
}

func (s *Service) telemetrySource() (telemetry.Source, error) {
	if s.cfg.Telemetry.Source == config.SourceSimulator {
		return s.home, nil
	}
	src, err := mqtt.NewTelemetrySource(s.ps, s.cfg.Battery, s.cfg.MQTT.Topics, mqtt.TelemetryOptions{
		MaxAge: s.cfg.Telemetry.MaxAge(),
		QoS:    s.cfg.MQTT.QoSFor(mqtt.ClassTelemetry),
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return src, nil
}

func (s *Service) scheduleSource() (plan.Source, error) {
	switch s.cfg.Plan.Source {
	case config.SourceSimulator:
		return s.home, nil
	case config.SourceFile:
		return plan.FileSource{Path: s.cfg.Plan.Path}, nil
	}
	src, err := mqtt.NewScheduleSource(s.ps, s.cfg.MQTT.Topics, s.cfg.MQTT.QoSFor(mqtt.ClassSchedule))
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	return src, nil
}

func (s *Service) stateStore() (state.Store, error) {
	switch s.cfg.State.Backend {
	case config.BackendMemory:
		return state.NewMemoryStore(), nil
	case config.BackendSQLite:
		st, err := infrastate.NewSQLiteStore(s.cfg.State.Path)
		if err != nil {
			return nil, fmt.Errorf("state store: %w", err)
		}
		s.closers = append(s.closers, st.Close)
		return st, nil
	}
	st, err := mqtt.NewStateStore(s.ps, s.cfg.MQTT.Topics, s.cfg.MQTT.QoSFor(mqtt.ClassState), s.cfg.State.Settle())
	if err != nil {
		return nil, fmt.Errorf("state store: %w", err)
	}
	return st, nil
}

// planner uses the optimizer service when configured. The simulated home
// falls back to a price-threshold optimizer; otherwise every hour is
// planned as zero.
func (s *Service) planner() (dispatch.Planner, error) {
	var client coreopt.Client
	switch {
	case s.cfg.Optimizer.URL != "":
		c, err := optimizer.NewHTTPClient(s.cfg.Optimizer)
		if err != nil {
			return nil, fmt.Errorf("optimizer: %w", err)
		}
		client = c
	case s.home != nil:
		client = simulator.NewThresholdOptimizer(s.home.Plan())
	default:
		s.log.Warnf("no optimizer configured, planned charge and discharge stay at zero")
		return nil, nil
	}
	return coreopt.NewPlanner(client, s.cfg.Battery, s.cfg.Optimizer.Timeout()), nil
}

// Prepare loads the persisted state and captures the hour snapshot when the
// persisted one does not cover the current hour.
func (s *Service) Prepare(ctx context.Context) {
	if err := s.Controller.LoadState(ctx); err != nil {
		s.log.Warnf("continuing with partial state: %v", err)
	}
	if s.cfg.Dispatch.ForceSnapshotOnStart || !s.Controller.State().Hour().Covers(s.Controller.Now()) {
		if err := s.Controller.SnapshotHour(ctx); err != nil {
			s.log.Warnf("startup hour snapshot: %v", err)
		}
	}
}

// Once runs a single tick.
func (s *Service) Once(ctx context.Context) model.DispatchResult {
	s.Prepare(ctx)
	return s.Controller.Tick(ctx)
}

// Run starts the scheduler, the metrics endpoint and the API, and blocks
// until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.Prepare(ctx)
	loc, err := s.cfg.Dispatch.Location()
	if err != nil {
		return err
	}
	sched, err := schedule.New(schedule.Config{
		TickSpec:     s.cfg.Dispatch.TickCron(),
		SnapshotSpec: s.cfg.Dispatch.HourlyCron,
		Location:     loc,
	}, s.Controller, logger.New("scheduler"))
	if err != nil {
		return err
	}

	collected := metrics.StartEventCollector(ctx, s.bus, s.sink)
	if s.home != nil {
		go simulator.RunRealTime(ctx, s.home, time.Second)
	}
	if port := s.cfg.Metrics.PrometheusPort; port != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, port); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if s.cfg.API.Enabled() {
		go func() {
			if err := s.serveAPI(ctx); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}
	err = sched.Run(ctx)
	<-collected
	return err
}

func (s *Service) serveAPI(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.API.Address,
		Handler:           ticks.NewRouter(s.Controller, s.TickLog, s.cfg.API.Token, s.cfg.API.MaxTicks),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Infof("api listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the resources held by the service.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if s.paho != nil {
		s.paho.Disconnect()
	}
	s.bus.Close()
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
