package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/homebattery/config"
	"github.com/kilianp07/homebattery/core/dispatch/logging"
	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/pkg/export"
)

var (
	historyStart  string
	historyEnd    string
	historyMode   string
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Query the tick log and export it as json, csv or an html chart",
	RunE:  history,
}

func init() {
	historyCmd.Flags().StringVar(&historyStart, "start", "", "RFC3339 start time")
	historyCmd.Flags().StringVar(&historyEnd, "end", "", "RFC3339 end time")
	historyCmd.Flags().StringVar(&historyMode, "mode", "", "only ticks with this mode label")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "keep the most recent records")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "json", "output format: json, csv or html")
	rootCmd.AddCommand(historyCmd)
}

func historyQuery() (logging.TickQuery, error) {
	q := logging.TickQuery{Limit: historyLimit}
	var err error
	if historyStart != "" {
		if q.Start, err = time.Parse(time.RFC3339, historyStart); err != nil {
			return q, fmt.Errorf("start: %w", err)
		}
	}
	if historyEnd != "" {
		if q.End, err = time.Parse(time.RFC3339, historyEnd); err != nil {
			return q, fmt.Errorf("end: %w", err)
		}
	}
	if historyMode != "" {
		m, err := model.ParseMode(historyMode)
		if err != nil {
			return q, err
		}
		q.Mode = &m
	}
	return q, nil
}

func history(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Logging.Ticks.Backend == "memory" {
		return fmt.Errorf("tick log backend %q keeps no history", cfg.Logging.Ticks.Backend)
	}
	q, err := historyQuery()
	if err != nil {
		return err
	}
	store, err := logging.Open(cfg.Logging.Ticks)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	records, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch historyFormat {
	case "json":
		return export.WriteJSON(out, records)
	case "csv":
		return export.WriteCSV(out, records)
	case "html":
		return export.TickChartHTML(out, records, cfg.Battery)
	}
	return fmt.Errorf("unknown format %q", historyFormat)
}
