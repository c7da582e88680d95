package mqtt

import (
	"context"
	"strconv"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/infra/logger"
)

// Actuator writes device commands to the inverter control topics.
type Actuator struct {
	pub    Publisher
	topics Topics
	qos    byte
	log    logger.Logger
}

// NewActuator creates an Actuator publishing with the given QoS.
func NewActuator(pub Publisher, t Topics, qos byte) *Actuator {
	t.SetDefaults()
	return &Actuator{pub: pub, topics: t, qos: qos, log: logger.New("mqtt_actuator")}
}

// Apply publishes the AC mode followed by both limits. An idle command only
// zeroes the limits.
func (a *Actuator) Apply(ctx context.Context, cmd model.Command) error {
	if cmd.ACMode != model.ACModeUnchanged {
		if err := a.pub.Publish(ctx, a.topics.ACMode, a.qos, false, []byte(strconv.Itoa(int(cmd.ACMode)))); err != nil {
			return err
		}
	}
	if err := a.pub.Publish(ctx, a.topics.SetInputLimit, a.qos, false, formatWatts(cmd.InputLimitW)); err != nil {
		return err
	}
	if err := a.pub.Publish(ctx, a.topics.SetOutputLimit, a.qos, false, formatWatts(cmd.OutputLimitW)); err != nil {
		return err
	}
	a.log.Debugf("applied ac mode %d input %.0fW output %.0fW", cmd.ACMode, cmd.InputLimitW, cmd.OutputLimitW)
	return nil
}

func formatWatts(w float64) []byte {
	return []byte(strconv.FormatFloat(w, 'f', -1, 64))
}
