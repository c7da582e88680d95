// Package plan resolves the adjusted hourly price schedule to the entry that
// is active for a wall-clock instant.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kilianp07/homebattery/core/model"
)

var (
	// ErrPlanIndexNotFound is returned when the current hour is not part of
	// the schedule. The tick must be skipped.
	ErrPlanIndexNotFound = errors.New("current index not found in schedule")
	// ErrMalformedPriceSchedule is returned for empty or undecodable schedules.
	ErrMalformedPriceSchedule = errors.New("malformed price schedule")
)

// DateLayout is the calendar date format used by schedule entries.
const DateLayout = "2006-01-02"

// Source provides the latest adjusted price schedule.
type Source interface {
	Schedule(ctx context.Context) ([]model.PlanEntry, error)
}

// Decode parses a schedule payload. Both the wrapped form {"data": [...]}
// and a bare array are accepted.
func Decode(payload []byte) ([]model.PlanEntry, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPriceSchedule)
	}
	var entries []model.PlanEntry
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPriceSchedule, err)
		}
	} else {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(trimmed), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPriceSchedule, err)
		}
		if len(wrapped.Data) == 0 || !strings.HasPrefix(strings.TrimSpace(string(wrapped.Data)), "[") {
			return nil, fmt.Errorf("%w: data is not an array", ErrMalformedPriceSchedule)
		}
		if err := json.Unmarshal(wrapped.Data, &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPriceSchedule, err)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrMalformedPriceSchedule)
	}
	return entries, nil
}

// ResolveCurrentIndex returns the position of the first entry matching the
// hour and calendar date of now, evaluated in now's location.
func ResolveCurrentIndex(entries []model.PlanEntry, now time.Time) (int, error) {
	if len(entries) == 0 {
		return -1, fmt.Errorf("%w: empty schedule", ErrMalformedPriceSchedule)
	}
	hour := now.Hour()
	date := now.Format(DateLayout)
	for i, e := range entries {
		if e.Hour == hour && e.Date == date {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: hour %d on %s", ErrPlanIndexNotFound, hour, date)
}

// Current returns the entry active at now.
func Current(entries []model.PlanEntry, now time.Time) (model.PlanEntry, error) {
	i, err := ResolveCurrentIndex(entries, now)
	if err != nil {
		return model.PlanEntry{}, err
	}
	return entries[i], nil
}

// Static is a Source returning a fixed schedule.
type Static []model.PlanEntry

func (s Static) Schedule(context.Context) ([]model.PlanEntry, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: no entries", ErrMalformedPriceSchedule)
	}
	return s, nil
}

// FileSource reads the schedule from a JSON file on every call, so that an
// external job can replace the file between ticks.
type FileSource struct {
	Path string
}

func (f FileSource) Schedule(context.Context) ([]model.PlanEntry, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPriceSchedule, err)
	}
	return Decode(data)
}
