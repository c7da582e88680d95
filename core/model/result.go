package model

import (
	"fmt"
	"time"
)

// Mode identifies the dispatch branch that produced a setpoint.
type Mode int

const (
	ModeNoAction Mode = iota
	ModeMaintenanceCharging
	ModeOverride
	ModeOverflowDuringDischarge
	ModePlannedDischarge
	ModeMaxSoC
	ModePlannedCharge
	ModeOverflowCharge
	// ModeFailSafe is used when a required telemetry value is missing.
	ModeFailSafe
	// ModeSkipped is used when no plan entry is available for the tick.
	ModeSkipped
)

var modeLabels = map[Mode]string{
	ModeNoAction:                "No action",
	ModeMaintenanceCharging:     "Maintenance charging",
	ModeOverride:                "Override",
	ModeOverflowDuringDischarge: "Overflow during planned discharge",
	ModePlannedDischarge:        "Planned discharge",
	ModeMaxSoC:                  "Max SOC",
	ModePlannedCharge:           "Planned charge",
	ModeOverflowCharge:          "Overflow charge",
	ModeFailSafe:                "Fail safe",
	ModeSkipped:                 "Skipped",
}

// String returns the human readable mode label.
func (m Mode) String() string {
	if l, ok := modeLabels[m]; ok {
		return l
	}
	return "unknown"
}

// ParseMode returns the mode with the given label.
func ParseMode(s string) (Mode, error) {
	for m, l := range modeLabels {
		if l == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Rates is the cost/benefit attribution of the power flowing this tick, in
// currency per second.
type Rates struct {
	Buy     float64 `json:"buy"`
	Sell    float64 `json:"sell"`
	Benefit float64 `json:"benefit"`
}

// DispatchResult is produced once per tick and published.
type DispatchResult struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	// SetpointW is positive when charging and negative when discharging.
	SetpointW   float64 `json:"setpoint_w"`
	Mode        Mode    `json:"mode"`
	Rates       Rates   `json:"rates"`
	SocWh       float64 `json:"soc_wh"`
	Planned     Planned `json:"planned"`
	PlanIndex   int     `json:"plan_index"`
	Maintenance bool    `json:"maintenance"`
	// Commanded is false when no device command was issued this tick.
	Commanded bool   `json:"commanded"`
	Error     string `json:"error,omitempty"`
}
