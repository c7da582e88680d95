package mqtt

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kilianp07/homebattery/core/state"
)

// DefaultSettle is how long Get waits for retained state after subscribing.
const DefaultSettle = 2 * time.Second

// StateStore persists controller state as retained messages below the state
// topic. Reads are served from the retained values received on subscribe.
type StateStore struct {
	pub    Publisher
	topics Topics
	qos    byte

	mu     sync.RWMutex
	values map[string]string
	ready  chan struct{}
}

// NewStateStore subscribes to the state topic tree. Get blocks for at most
// settle on keys not yet received, giving the broker time to replay
// retained messages.
func NewStateStore(ps PubSub, t Topics, qos byte, settle time.Duration) (*StateStore, error) {
	t.SetDefaults()
	s := &StateStore{
		pub:    ps,
		topics: t,
		qos:    qos,
		values: make(map[string]string),
		ready:  make(chan struct{}),
	}
	prefix := strings.TrimSuffix(t.State, "/") + "/"
	if err := ps.Subscribe(prefix+"#", qos, func(topic string, payload []byte) {
		key := strings.TrimPrefix(topic, prefix)
		s.mu.Lock()
		s.values[key] = string(payload)
		s.mu.Unlock()
	}); err != nil {
		return nil, err
	}
	if settle <= 0 {
		close(s.ready)
	} else {
		time.AfterFunc(settle, func() { close(s.ready) })
	}
	return s, nil
}

func (s *StateStore) lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Get returns the retained value of key or state.ErrNotFound.
func (s *StateStore) Get(ctx context.Context, key string) (string, error) {
	if v, ok := s.lookup(key); ok {
		return v, nil
	}
	select {
	case <-s.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if v, ok := s.lookup(key); ok {
		return v, nil
	}
	return "", state.ErrNotFound
}

// Set publishes value as a retained message.
func (s *StateStore) Set(ctx context.Context, key, value string) error {
	if err := s.pub.Publish(ctx, s.topics.StateKey(key), s.qos, true, []byte(value)); err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
	return nil
}
