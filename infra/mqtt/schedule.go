package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/plan"
)

// ScheduleSource keeps the last price schedule published on the retained
// schedule topic.
type ScheduleSource struct {
	mu      sync.RWMutex
	payload []byte
	entries []model.PlanEntry
	err     error
}

// NewScheduleSource subscribes to the schedule topic.
func NewScheduleSource(sub Subscriber, t Topics, qos byte) (*ScheduleSource, error) {
	t.SetDefaults()
	s := &ScheduleSource{}
	if err := sub.Subscribe(t.Schedule, qos, func(_ string, payload []byte) {
		s.update(payload)
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ScheduleSource) update(payload []byte) {
	entries, err := plan.Decode(payload)
	s.mu.Lock()
	s.payload = append([]byte(nil), payload...)
	s.entries, s.err = entries, err
	s.mu.Unlock()
}

// Schedule returns the decoded schedule. A malformed payload is reported
// until a valid one replaces it.
func (s *ScheduleSource) Schedule(context.Context) ([]model.PlanEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.payload == nil {
		return nil, fmt.Errorf("%w: no schedule received", plan.ErrMalformedPriceSchedule)
	}
	if s.err != nil {
		return nil, s.err
	}
	out := make([]model.PlanEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}
