// Package ticks exposes the tick history and the controller status over HTTP.
package ticks

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/homebattery/core/dispatch"
	"github.com/kilianp07/homebattery/core/dispatch/logging"
	"github.com/kilianp07/homebattery/core/model"
)

// Controller is the read-only view of the dispatch controller used by the
// status endpoint.
type Controller interface {
	State() *dispatch.ControllerState
	Battery() model.Battery
	Now() time.Time
}

// Status is the body of GET /api/status.
type Status struct {
	Time              time.Time             `json:"time"`
	Mode              *model.Mode           `json:"mode,omitempty"`
	Maintenance       bool                  `json:"maintenance"`
	SocAtStartOfHourW float64               `json:"soc_at_start_of_hour_wh"`
	HourCapturedAt    *time.Time            `json:"hour_captured_at,omitempty"`
	SocPercent        *float64              `json:"soc_percent,omitempty"`
	Last              *model.DispatchResult `json:"last,omitempty"`
}

var errInvalidLimit = errors.New("limit must be a positive integer")

// NewRouter mounts the status and tick endpoints. Requests must carry
// "Authorization: Bearer <token>" when token is non-empty.
func NewRouter(ctrl Controller, store logging.TickStore, token string, maxTicks int) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/status", NewStatusHandler(ctrl))
	mux.Handle("/api/ticks", NewTicksHandler(store, maxTicks))
	return RequireToken(token, mux)
}

// RequireToken rejects requests without the bearer token.
func RequireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewStatusHandler returns the handler of GET /api/status.
func NewStatusHandler(ctrl Controller) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		st := ctrl.State()
		h := st.Hour()
		out := Status{
			Time:              ctrl.Now(),
			Maintenance:       st.Maintenance(),
			SocAtStartOfHourW: h.SocAtStartWh,
		}
		if m, ok := st.Mode(); ok {
			out.Mode = &m
		}
		if !h.CapturedAt.IsZero() {
			at := h.CapturedAt
			out.HourCapturedAt = &at
		}
		if last, ok := st.Last(); ok {
			out.Last = &last
			pct := ctrl.Battery().SocPercent(last.SocWh)
			out.SocPercent = &pct
		}
		writeJSON(w, out)
	})
}

// NewTicksHandler returns the handler of GET /api/ticks. It accepts RFC3339
// start and end bounds, a mode label and a limit capped at maxTicks.
func NewTicksHandler(store logging.TickStore, maxTicks int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		q, err := parseQuery(r, maxTicks)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []logging.TickRecord{}
		}
		writeJSON(w, records)
	})
}

func parseQuery(r *http.Request, maxTicks int) (logging.TickQuery, error) {
	v := r.URL.Query()
	q := logging.TickQuery{Limit: maxTicks}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.End = t
	}
	if s := v.Get("mode"); s != "" {
		m, err := model.ParseMode(s)
		if err != nil {
			return q, err
		}
		q.Mode = &m
	}
	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return q, errInvalidLimit
		}
		if maxTicks <= 0 || n < maxTicks {
			q.Limit = n
		}
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
