package model

// ACMode is the inverter operating mode.
type ACMode int

const (
	ACModeUnchanged ACMode = 0
	ACModeCharge    ACMode = 1
	ACModeDischarge ACMode = 2
)

// Command is the decomposition of a signed setpoint into the separate limits
// understood by the inverter.
type Command struct {
	ACMode       ACMode  `json:"ac_mode"`
	InputLimitW  float64 `json:"input_limit_w"`
	OutputLimitW float64 `json:"output_limit_w"`
}

// CommandFor converts a signed setpoint into a device command. An idle
// setpoint zeroes both limits and leaves the AC mode untouched.
func CommandFor(setpointW float64) Command {
	switch {
	case setpointW > 0:
		return Command{ACMode: ACModeCharge, InputLimitW: setpointW}
	case setpointW < 0:
		return Command{ACMode: ACModeDischarge, OutputLimitW: -setpointW}
	default:
		return Command{ACMode: ACModeUnchanged}
	}
}
