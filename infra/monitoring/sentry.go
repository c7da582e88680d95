package monitoring

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/homebattery/config"
	coremon "github.com/kilianp07/homebattery/core/monitoring"
)

// SentryMonitor reports controller failures to Sentry through a dedicated hub.
type SentryMonitor struct {
	hub *sentry.Hub
}

// NewSentryMonitor returns a NopMonitor when no DSN is configured.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		TracesSampleRate: cfg.TracesSampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	scope := sentry.NewScope()
	scope.SetTag("service", "homebattery")
	return &SentryMonitor{hub: sentry.NewHub(client, scope)}, nil
}

// CaptureException sends err with tags. Failed tick stages are reported as
// warnings since the next tick retries.
func (m *SentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	m.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		if stage, ok := tags["stage"]; ok {
			scope.SetLevel(sentry.LevelWarning)
			scope.SetFingerprint([]string{"tick", stage})
		}
		m.hub.CaptureException(err)
	})
}

// Flush waits for queued events.
func (m *SentryMonitor) Flush(timeout time.Duration) { m.hub.Flush(timeout) }
