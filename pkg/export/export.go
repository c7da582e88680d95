// Package export writes the tick log and the price plan as JSON, CSV or
// HTML charts.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/homebattery/core/dispatch/logging"
)

// WriteJSON writes the tick records to w as a JSON array.
func WriteJSON(w io.Writer, records []logging.TickRecord) error {
	if records == nil {
		records = []logging.TickRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

var csvHeader = []string{
	"timestamp", "id", "mode", "setpoint_w", "soc_wh", "planned_charge_w", "planned_discharge_w",
	"plan_index", "maintenance", "commanded", "buy", "sell", "benefit",
	"overflow_w", "consumption_w", "pv_w", "real_input_w", "real_output_w", "price", "error",
}

// WriteCSV writes one row per tick. Missing readings are left empty.
func WriteCSV(w io.Writer, records []logging.TickRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		res := r.Result
		rec := []string{
			r.Timestamp.Format(time.RFC3339),
			res.ID,
			res.Mode.String(),
			formatFloat(res.SetpointW),
			formatFloat(res.SocWh),
			formatFloat(res.Planned.ChargeW),
			formatFloat(res.Planned.DischargeW),
			strconv.Itoa(res.PlanIndex),
			strconv.FormatBool(res.Maintenance),
			strconv.FormatBool(res.Commanded),
			formatFloat(res.Rates.Buy),
			formatFloat(res.Rates.Sell),
			formatFloat(res.Rates.Benefit),
			formatOptional(r.OverflowPowerW),
			formatOptional(r.HouseholdConsumptionW),
			formatOptional(r.PVProductionW),
			formatOptional(r.RealInputPowerW),
			formatOptional(r.RealOutputPowerW),
			formatOptional(r.Price),
			res.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatOptional(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
