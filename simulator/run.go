package simulator

import (
	"context"
	"time"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/infra/logger"
)

// Runner is implemented by the dispatch controller.
type Runner interface {
	Tick(ctx context.Context) model.DispatchResult
	SnapshotHour(ctx context.Context) error
}

// Summary aggregates the results of a simulation.
type Summary struct {
	Ticks        int                    `json:"ticks"`
	Modes        map[string]int         `json:"modes"`
	ChargedWh    float64                `json:"charged_wh"`
	DischargedWh float64                `json:"discharged_wh"`
	Cost         float64                `json:"cost"`
	Revenue      float64                `json:"revenue"`
	FinalSocWh   float64                `json:"final_soc_wh"`
	Results      []model.DispatchResult `json:"-"`
}

// Simulation drives a Runner through the simulated home.
type Simulation struct {
	cfg    Config
	home   *Home
	clock  *Clock
	runner Runner
	log    logger.Logger
}

// New returns a simulation. The runner must read time from clock and use
// home as its telemetry, actuator and schedule.
func New(cfg Config, home *Home, clock *Clock, r Runner) *Simulation {
	return &Simulation{cfg: cfg, home: home, clock: clock, runner: r, log: logger.New("simulator")}
}

// Run ticks the runner every step until the configured duration elapsed.
// The hour snapshot is taken at start and at the top of every hour.
func (s *Simulation) Run(ctx context.Context) (Summary, error) {
	sum := Summary{Modes: map[string]int{}}
	end := s.clock.Now().Add(s.cfg.Duration)
	if err := s.runner.SnapshotHour(ctx); err != nil {
		s.log.Warnf("initial hour snapshot: %v", err)
	}
	for first := true; s.clock.Now().Before(end); first = false {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		now := s.clock.Now()
		if !first && now.Truncate(time.Hour).Equal(now) {
			if err := s.runner.SnapshotHour(ctx); err != nil {
				s.log.Warnf("hour snapshot: %v", err)
			}
		}
		res := s.runner.Tick(ctx)
		sum.add(res, s.cfg.Step)

		s.home.Advance(s.cfg.Step)
		snap, _ := s.home.Snapshot(ctx)
		sum.ChargedWh += snap.RealInputPowerW.Or(0) * s.cfg.Step.Hours()
		sum.DischargedWh += snap.RealOutputPowerW.Or(0) * s.cfg.Step.Hours()
		s.clock.Advance(s.cfg.Step)
	}
	sum.FinalSocWh = s.home.battery.SocWh()
	s.log.Infof("simulation done: %d ticks, charged %.0fWh, discharged %.0fWh, cost %.4f, revenue %.4f",
		sum.Ticks, sum.ChargedWh, sum.DischargedWh, sum.Cost, sum.Revenue)
	return sum, nil
}

func (s *Summary) add(res model.DispatchResult, step time.Duration) {
	s.Ticks++
	s.Modes[res.Mode.String()]++
	s.Cost += res.Rates.Buy * step.Seconds()
	s.Revenue += res.Rates.Sell * step.Seconds()
	s.Results = append(s.Results, res)
}
