package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Number decodes JSON values that may be encoded either as numbers or as
// numeric strings. The price table producer formats prices with a fixed
// number of decimals and therefore emits strings.
type Number float64

// UnmarshalJSON accepts 1.5, "1.5" and "" (zero).
func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
		if s == "" {
			*n = 0
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q: %w", s, err)
	}
	*n = Number(f)
	return nil
}

// PlanEntry is one hour of the adjusted price schedule. Entries with Hour 0
// carry the date of the day they start, i.e. the day following the evening
// hours listed before them.
type PlanEntry struct {
	Index           int    `json:"index"`
	Hour            int    `json:"hour"`
	Date            string `json:"date"`
	TibberTotal     Number `json:"tibberTotal"`
	SolarProduction Number `json:"solarProduction"`
	AdjustedPrice   Number `json:"adjustedPrice"`
	// PlannedCharge and PlannedDischarge are filled from the optimizer
	// response; at most one of them is non-zero.
	PlannedCharge    float64 `json:"plannedCharge,omitempty"`
	PlannedDischarge float64 `json:"plannedDischarge,omitempty"`
}

// Planned is the optimizer recommendation for the active hour in W.
type Planned struct {
	ChargeW    float64 `json:"charge_w"`
	DischargeW float64 `json:"discharge_w"`
}

// Apply copies the planned values into the entry.
func (p Planned) Apply(e PlanEntry) PlanEntry {
	e.PlannedCharge = p.ChargeW
	e.PlannedDischarge = p.DischargeW
	return e
}
