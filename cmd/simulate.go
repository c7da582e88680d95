package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/homebattery/config"
	"github.com/kilianp07/homebattery/core/dispatch"
	"github.com/kilianp07/homebattery/core/dispatch/logging"
	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/optimizer"
	"github.com/kilianp07/homebattery/core/state"
	"github.com/kilianp07/homebattery/infra/logger"
	"github.com/kilianp07/homebattery/pkg/export"
	"github.com/kilianp07/homebattery/simulator"
)

var (
	simCfg       simulator.Config
	simStart     string
	simChart     string
	simPlanChart string
	simUseConfig bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the controller against a simulated home on a virtual clock",
	RunE:  simulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simStart, "start", "", "RFC3339 start of the simulation (default: today 00:00)")
	f.DurationVar(&simCfg.Duration, "duration", 24*time.Hour, "simulated duration")
	f.DurationVar(&simCfg.Step, "step", 15*time.Second, "tick period")
	f.Float64Var(&simCfg.InitialSocPercent, "soc", 50, "initial state of charge in percent")
	f.Float64Var(&simCfg.PeakPVW, "peak-pv", 1800, "peak PV production in W")
	f.Float64Var(&simCfg.BaseLoadW, "base-load", 250, "household base load in W")
	f.Float64Var(&simCfg.EveningLoadW, "evening-load", 900, "household evening peak in W")
	f.Float64Var(&simCfg.Noise, "noise", 0.1, "relative noise on PV and load")
	f.Int64Var(&simCfg.Seed, "seed", 1, "random seed")
	f.StringVar(&simChart, "chart", "", "write an html chart of the run to this file")
	f.StringVar(&simPlanChart, "plan-chart", "", "write an html chart of the price plan to this file")
	f.BoolVar(&simUseConfig, "use-config", false, "take battery and dispatch settings from the config file")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	cfg := config.Default()
	if simUseConfig {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	logger.Configure(cfg.Logging.Level, cfg.Logging.Console)
	if simStart != "" {
		t, err := time.Parse(time.RFC3339, simStart)
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		simCfg.Start = t
	}
	simCfg.SetDefaults()
	if err := simCfg.Validate(); err != nil {
		return err
	}

	clock := simulator.NewClock(simCfg.Start)
	home := simulator.NewHome(simCfg, cfg.Battery, clock)
	ticks := logging.NewMemoryStore(int(simCfg.Duration/simCfg.Step) + 1)
	dcfg := cfg.Dispatch
	dcfg.Timezone = simCfg.Start.Location().String()
	ctrl, err := dispatch.NewController(dcfg, cfg.Battery, dispatch.Deps{
		Telemetry: home,
		Schedule:  home,
		Planner:   optimizer.NewPlanner(simulator.NewThresholdOptimizer(home.Plan()), cfg.Battery, time.Second),
		Actuator:  home,
		State:     state.NewMemoryStore(),
		TickLog:   ticks,
		Logger:    logger.New("dispatch"),
		Clock:     clock.Now,
	})
	if err != nil {
		return err
	}

	sum, err := simulator.New(simCfg, home, clock, ctrl).Run(ctx)
	if err != nil {
		return err
	}
	if simChart != "" {
		recs, err := ticks.Query(ctx, logging.TickQuery{})
		if err != nil {
			return err
		}
		if err := writeFile(simChart, func(f *os.File) error { return export.TickChartHTML(f, recs, cfg.Battery) }); err != nil {
			return err
		}
	}
	if simPlanChart != "" {
		if err := writeFile(simPlanChart, func(f *os.File) error { return export.PlanChartHTML(f, home.Plan()) }); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		simulator.Summary
		FinalSocPercent float64       `json:"final_soc_percent"`
		Battery         model.Battery `json:"battery"`
	}{sum, cfg.Battery.SocPercent(sum.FinalSocWh), cfg.Battery})
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
