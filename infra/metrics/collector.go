package metrics

import (
	"context"

	"github.com/kilianp07/homebattery/core/events"
	coremetrics "github.com/kilianp07/homebattery/core/metrics"
	"github.com/kilianp07/homebattery/infra/logger"
	"github.com/kilianp07/homebattery/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records mode changes
// on sinks implementing ModeChangeRecorder. It stops when the context is
// canceled. The returned channel is closed once the collector exited.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.Event], sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	rec, ok := sink.(coremetrics.ModeChangeRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	log := logger.New("event-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				e, isChange := ev.(events.ModeChangeEvent)
				if !isChange {
					continue
				}
				if err := rec.RecordModeChange(coremetrics.ModeChangeEvent{From: e.From, To: e.To, Time: e.Time}); err != nil {
					log.Warnf("record mode change: %v", err)
				}
			}
		}
	}()
	return done
}
