package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/kilianp07/homebattery/core/hour"
	"github.com/kilianp07/homebattery/core/model"
	"github.com/kilianp07/homebattery/core/state"
)

// ControllerState is the mutable state shared by the hourly trigger and the
// control tick.
type ControllerState struct {
	mu          sync.RWMutex
	hour        hour.State
	maintenance bool
	mode        model.Mode
	hasMode     bool
	last        *model.DispatchResult
}

func (s *ControllerState) Hour() hour.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hour
}

func (s *ControllerState) SetHour(h hour.State) {
	s.mu.Lock()
	s.hour = h
	s.mu.Unlock()
}

func (s *ControllerState) Maintenance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maintenance
}

func (s *ControllerState) SetMaintenance(v bool) {
	s.mu.Lock()
	s.maintenance = v
	s.mu.Unlock()
}

// Mode returns the mode of the last tick, if any.
func (s *ControllerState) Mode() (model.Mode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode, s.hasMode
}

// Last returns the last published result.
func (s *ControllerState) Last() (model.DispatchResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return model.DispatchResult{}, false
	}
	return *s.last, true
}

// record stores res and returns the previous mode.
func (s *ControllerState) record(res model.DispatchResult) (prev model.Mode, had bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had = s.mode, s.hasMode
	s.mode, s.hasMode = res.Mode, true
	s.last = &res
	return prev, had
}

// Load reads the persisted values. Missing keys leave the defaults in place.
func (s *ControllerState) Load(ctx context.Context, store state.Store) error {
	var errs []error
	get := func(key string) (string, bool) {
		v, err := store.Get(ctx, key)
		if errors.Is(err, state.ErrNotFound) {
			return "", false
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", key, err))
			return "", false
		}
		return v, true
	}

	var h hour.State
	if v, ok := get(state.KeySocAtStartOfHour); ok {
		soc, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", state.KeySocAtStartOfHour, err))
		} else {
			h.SocAtStartWh = soc
			if ts, ok := get(state.KeyHourCapturedAt); ok {
				if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
					h.CapturedAt = t
				} else {
					errs = append(errs, fmt.Errorf("parse %s: %w", state.KeyHourCapturedAt, err))
				}
			}
		}
	}
	var maint bool
	if v, ok := get(state.KeyMaintenanceMode); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", state.KeyMaintenanceMode, err))
		}
		maint = b
	}
	mode, hasMode := model.ModeNoAction, false
	if v, ok := get(state.KeyChargeMode); ok {
		if m, err := model.ParseMode(v); err == nil {
			mode, hasMode = m, true
		}
	}

	s.mu.Lock()
	s.hour = h
	s.maintenance = maint
	s.mode, s.hasMode = mode, hasMode
	s.mu.Unlock()
	return errors.Join(errs...)
}

func saveHour(ctx context.Context, store state.Store, h hour.State) error {
	if err := store.Set(ctx, state.KeySocAtStartOfHour, strconv.FormatFloat(h.SocAtStartWh, 'f', -1, 64)); err != nil {
		return err
	}
	return store.Set(ctx, state.KeyHourCapturedAt, h.CapturedAt.Format(time.RFC3339Nano))
}

func saveTick(ctx context.Context, store state.Store, maintenance bool, mode model.Mode) error {
	if err := store.Set(ctx, state.KeyMaintenanceMode, strconv.FormatBool(maintenance)); err != nil {
		return err
	}
	return store.Set(ctx, state.KeyChargeMode, mode.String())
}
