// Package monitoring forwards controller failures to an error tracker.
package monitoring

import (
	"sync"
	"time"
)

// Monitor reports errors with a set of tags.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Flush(timeout time.Duration)
}

// NopMonitor discards everything.
type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init installs m as the process monitor and returns the previous one. A nil
// m keeps the current monitor.
func Init(m Monitor) Monitor {
	mu.Lock()
	defer mu.Unlock()
	prev := current
	if m != nil {
		current = m
	}
	return prev
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException reports err. Nil errors are ignored.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// CaptureTickFailure reports a failed stage of a dispatch tick.
func CaptureTickFailure(stage string, err error) {
	CaptureException(err, map[string]string{"component": "dispatch", "stage": stage})
}

// CapturePublishFailure reports a message that could not be delivered.
func CapturePublishFailure(topic string, err error) {
	CaptureException(err, map[string]string{"component": "mqtt", "topic": topic})
}

// Flush waits up to d for buffered reports to be sent.
func Flush(d time.Duration) {
	get().Flush(d)
}
