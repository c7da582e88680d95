package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/homebattery/core/dispatch/logging"
	"github.com/kilianp07/homebattery/core/model"
)

func sampleRecords() []logging.TickRecord {
	ts := time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC)
	snap := model.TickSnapshot{
		OverflowPowerW:  model.Some(150),
		RealInputPowerW: model.Some(412.5),
	}
	return []logging.TickRecord{
		logging.NewTickRecord(model.DispatchResult{
			ID: "t1", Timestamp: ts, Mode: model.ModePlannedCharge, SetpointW: 412.5, SocWh: 3800,
			Planned: model.Planned{ChargeW: 500}, PlanIndex: 3, Commanded: true,
			Rates: model.Rates{Buy: 0.0000125},
		}, snap),
		logging.NewTickRecord(model.DispatchResult{
			ID: "t2", Timestamp: ts.Add(15 * time.Second), Mode: model.ModeFailSafe, SocWh: 3810,
			PlanIndex: -1, Error: "missing soc",
		}, model.TickSnapshot{}),
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRecords()))
	var out []logging.TickRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, model.ModeFailSafe, out[1].Result.Mode)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRecords()))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])

	col := func(name string) int {
		for i, h := range csvHeader {
			if h == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}
	assert.Equal(t, "Planned charge", rows[1][col("mode")])
	assert.Equal(t, "412.5", rows[1][col("setpoint_w")])
	assert.Equal(t, "150", rows[1][col("overflow_w")])
	assert.Equal(t, "", rows[1][col("pv_w")])
	assert.Equal(t, "0.0000125", rows[1][col("buy")])
	assert.Equal(t, "missing soc", rows[2][col("error")])
}

func TestTickChartHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, TickChartHTML(&buf, sampleRecords(), model.DefaultBattery()))
	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"))
	assert.Contains(t, html, "Battery dispatch")
	assert.Contains(t, html, "2025-03-01 14:00:15")
}

func TestPlanChartHTML(t *testing.T) {
	entries := []model.PlanEntry{
		{Index: 0, Hour: 14, Date: "2025-03-01", TibberTotal: 0.31, AdjustedPrice: 0.29, PlannedCharge: 600},
		{Index: 1, Hour: 15, Date: "2025-03-01", TibberTotal: 0.35, AdjustedPrice: 0.33, PlannedDischarge: 400},
	}
	var buf bytes.Buffer
	require.NoError(t, PlanChartHTML(&buf, entries))
	assert.Contains(t, buf.String(), "2025-03-01 15:00")
	assert.Contains(t, buf.String(), "Price plan")
}
