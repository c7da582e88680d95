package logging

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/homebattery/core/model"
)

// TickRecord captures one tick: the published result and the inputs it was
// derived from.
type TickRecord struct {
	Timestamp             time.Time            `json:"timestamp"`
	Result                model.DispatchResult `json:"result"`
	OverflowPowerW        *float64             `json:"overflow_power_w,omitempty"`
	HouseholdConsumptionW *float64             `json:"household_consumption_w,omitempty"`
	PVProductionW         *float64             `json:"pv_production_w,omitempty"`
	RealInputPowerW       *float64             `json:"real_input_power_w,omitempty"`
	RealOutputPowerW      *float64             `json:"real_output_power_w,omitempty"`
	Price                 *float64             `json:"price,omitempty"`
}

// NewTickRecord builds a record from a result and the snapshot it used.
func NewTickRecord(res model.DispatchResult, s model.TickSnapshot) TickRecord {
	return TickRecord{
		Timestamp:             res.Timestamp,
		Result:                res,
		OverflowPowerW:        ptr(s.OverflowPowerW),
		HouseholdConsumptionW: ptr(s.HouseholdConsumptionW),
		PVProductionW:         ptr(s.PVProductionW),
		RealInputPowerW:       ptr(s.RealInputPowerW),
		RealOutputPowerW:      ptr(s.RealOutputPowerW),
		Price:                 ptr(s.CurrentPrice),
	}
}

func ptr(r model.Reading) *float64 {
	if !r.Valid {
		return nil
	}
	v := r.Value
	return &v
}

// TickQuery defines filters for retrieving records. Zero values match all.
type TickQuery struct {
	Start time.Time
	End   time.Time
	Mode  *model.Mode
	// Limit keeps the most recent records when positive.
	Limit int
}

// Match reports whether r satisfies the time and mode filters.
func (q TickQuery) Match(r TickRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Mode != nil && r.Result.Mode != *q.Mode {
		return false
	}
	return true
}

// finish orders records by time and applies the limit.
func (q TickQuery) finish(res []TickRecord) []TickRecord {
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[len(res)-q.Limit:]
	}
	return res
}

// TickStore persists TickRecords and supports querying.
type TickStore interface {
	Append(ctx context.Context, rec TickRecord) error
	Query(ctx context.Context, q TickQuery) ([]TickRecord, error)
	Close() error
}

// MemoryStore keeps the most recent records in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []TickRecord
	max     int
}

// NewMemoryStore returns a store retaining at most max records (unbounded
// when max <= 0).
func NewMemoryStore(max int) *MemoryStore {
	return &MemoryStore{max: max}
}

func (s *MemoryStore) Append(_ context.Context, rec TickRecord) error {
	s.mu.Lock()
	s.records = append(s.records, rec)
	if s.max > 0 && len(s.records) > s.max {
		s.records = append([]TickRecord(nil), s.records[len(s.records)-s.max:]...)
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Query(_ context.Context, q TickQuery) ([]TickRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []TickRecord
	for _, r := range s.records {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return q.finish(res), nil
}

func (s *MemoryStore) Close() error { return nil }
