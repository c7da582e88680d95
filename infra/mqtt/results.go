package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/kilianp07/homebattery/core/model"
)

// ResultPublisher publishes the outcome of each tick: the price attribution,
// the charge mode, the setpoint and a JSON status document.
type ResultPublisher struct {
	pub    Publisher
	topics Topics
	qos    byte
}

// NewResultPublisher creates a ResultPublisher.
func NewResultPublisher(pub Publisher, t Topics, qos byte) *ResultPublisher {
	t.SetDefaults()
	return &ResultPublisher{pub: pub, topics: t, qos: qos}
}

type status struct {
	model.DispatchResult
	Command model.Command `json:"command"`
}

// Publish sends every output. All topics are attempted; errors are joined.
func (p *ResultPublisher) Publish(ctx context.Context, res model.DispatchResult) error {
	cmd := model.Command{}
	if res.Commanded {
		cmd = model.CommandFor(res.SetpointW)
	}
	doc, err := json.Marshal(status{DispatchResult: res, Command: cmd})
	if err != nil {
		return err
	}
	planDoc, err := json.Marshal(struct {
		Index   int           `json:"index"`
		Planned model.Planned `json:"planned"`
	}{res.PlanIndex, res.Planned})
	if err != nil {
		return err
	}
	outputs := []struct {
		topic    string
		retained bool
		payload  []byte
	}{
		{p.topics.BuyPrice, false, formatRate(res.Rates.Buy)},
		{p.topics.SellPrice, false, formatRate(res.Rates.Sell)},
		{p.topics.BenefitPrice, false, formatRate(res.Rates.Benefit)},
		{p.topics.ChargeMode, true, []byte(res.Mode.String())},
		{p.topics.Setpoint, false, formatWatts(res.SetpointW)},
		{p.topics.Plan, true, planDoc},
		{p.topics.Status, true, doc},
	}
	var errs []error
	for _, o := range outputs {
		if err := p.pub.Publish(ctx, o.topic, p.qos, o.retained, o.payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func formatRate(r float64) []byte {
	return []byte(strconv.FormatFloat(r, 'g', -1, 64))
}
