// Package schedule triggers the dispatch tick and the hour snapshot on
// cron-style schedules.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/infra/logger"
)

// Runner is implemented by the dispatch controller.
type Runner interface {
	Tick(ctx context.Context) model.DispatchResult
	SnapshotHour(ctx context.Context) error
}

// Config holds both cron specs. Specs include a leading seconds field.
type Config struct {
	TickSpec     string
	SnapshotSpec string
	Location     *time.Location
}

// Scheduler runs Runner jobs. A job still running when its next trigger
// fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    logger.Logger
	ctx    context.Context
}

// New registers the tick and hour snapshot jobs without starting them.
func New(cfg Config, r Runner, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.New("scheduler")
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: r,
		log:    log,
		ctx:    context.Background(),
	}
	// Jobs due at the same instant run concurrently in no fixed order. A tick
	// that beats the snapshot at the top of the hour captures it lazily.
	if _, err := s.cron.AddFunc(cfg.SnapshotSpec, s.snapshot); err != nil {
		return nil, fmt.Errorf("snapshot spec %q: %w", cfg.SnapshotSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.TickSpec, s.tick); err != nil {
		return nil, fmt.Errorf("tick spec %q: %w", cfg.TickSpec, err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	res := s.runner.Tick(s.ctx)
	s.log.Debugf("tick %s: mode=%s setpoint=%.0fW", res.ID, res.Mode, res.SetpointW)
}

func (s *Scheduler) snapshot() {
	if err := s.runner.SnapshotHour(s.ctx); err != nil {
		s.log.Errorf("hour snapshot: %v", err)
	}
}

// Run starts the jobs and blocks until ctx is done. Running jobs are
// allowed to finish before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = ctx
	s.cron.Start()
	s.log.Infof("scheduler started with %d jobs", len(s.cron.Entries()))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Infof("scheduler stopped")
	return nil
}

// Next returns the next activation of every job.
func (s *Scheduler) Next() []time.Time {
	var out []time.Time
	for _, e := range s.cron.Entries() {
		out = append(out, e.Next)
	}
	return out
}

type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, kv(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorf("%s: %v %s", msg, err, formatKV(keysAndValues))
}

func kv(keysAndValues []interface{}) map[string]any {
	out := make(map[string]any, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		out[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return out
}

func formatKV(keysAndValues []interface{}) string {
	parts := make([]string, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%v", keysAndValues[i], keysAndValues[i+1]))
	}
	return strings.Join(parts, " ")
}
