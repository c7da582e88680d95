package export

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/homebattery/core/dispatch/logging"
	"github.com/kilianp07/homebattery/core/model"
)

// TickChartHTML renders the setpoint and state of charge of the records as
// an HTML line chart.
func TickChartHTML(w io.Writer, records []logging.TickRecord, b model.Battery) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Battery dispatch", Subtitle: "setpoint (W) and state of charge (%)"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "W / %"}),
	)

	xAxis := make([]string, 0, len(records))
	setpoints := make([]opts.LineData, 0, len(records))
	socs := make([]opts.LineData, 0, len(records))
	for _, r := range records {
		xAxis = append(xAxis, r.Timestamp.Format("2006-01-02 15:04:05"))
		setpoints = append(setpoints, opts.LineData{Value: r.Result.SetpointW})
		socs = append(socs, opts.LineData{Value: round1(b.SocPercent(r.Result.SocWh))})
	}
	line.SetXAxis(xAxis).
		AddSeries("Setpoint", setpoints).
		AddSeries("SoC", socs)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render tick chart: %w", err)
	}
	return nil
}

// PlanChartHTML renders the adjusted and raw prices of the schedule with the
// planned charge and discharge of each hour.
func PlanChartHTML(w io.Writer, entries []model.PlanEntry) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Price plan"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Date & Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price"}),
	)

	xAxis := make([]string, 0, len(entries))
	adjusted := make([]opts.LineData, 0, len(entries))
	total := make([]opts.LineData, 0, len(entries))
	planned := make([]opts.LineData, 0, len(entries))
	for _, e := range entries {
		xAxis = append(xAxis, fmt.Sprintf("%s %02d:00", e.Date, e.Hour))
		adjusted = append(adjusted, opts.LineData{Value: float64(e.AdjustedPrice)})
		total = append(total, opts.LineData{Value: float64(e.TibberTotal)})
		planned = append(planned, opts.LineData{Value: e.PlannedCharge - e.PlannedDischarge})
	}
	line.SetXAxis(xAxis).
		AddSeries("Adjusted price", adjusted).
		AddSeries("Total price", total).
		AddSeries("Planned (W)", planned)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render plan chart: %w", err)
	}
	return nil
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
