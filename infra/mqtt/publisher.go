package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Message is a payload published on a MemoryBroker.
type Message struct {
	Topic    string
	Payload  string
	QoS      byte
	Retained bool
}

// MemoryBroker is an in-process PubSub used in tests and by the simulator.
// Handlers run synchronously on Publish. Retained messages are replayed to
// new subscribers; topic filters support the + and # wildcards.
type MemoryBroker struct {
	mu       sync.Mutex
	subs     map[string][]Handler
	retained map[string][]byte
	Messages []Message
	// FailTopics makes Publish fail for the listed topics.
	FailTopics map[string]bool
}

// NewMemoryBroker creates an empty broker.
func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		subs:       make(map[string][]Handler),
		retained:   make(map[string][]byte),
		FailTopics: make(map[string]bool),
	}
}

// Publish records the message and delivers it to matching subscribers.
func (m *MemoryBroker) Publish(_ context.Context, topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	if m.FailTopics[topic] {
		m.mu.Unlock()
		return fmt.Errorf("publish %s failed", topic)
	}
	m.Messages = append(m.Messages, Message{Topic: topic, Payload: string(payload), QoS: qos, Retained: retained})
	if retained {
		m.retained[topic] = append([]byte(nil), payload...)
	}
	var handlers []Handler
	for filter, hs := range m.subs {
		if TopicMatches(filter, topic) {
			handlers = append(handlers, hs...)
		}
	}
	m.mu.Unlock()
	for _, h := range handlers {
		h(topic, payload)
	}
	return nil
}

// Subscribe registers h and replays matching retained messages.
func (m *MemoryBroker) Subscribe(filter string, _ byte, h Handler) error {
	m.mu.Lock()
	m.subs[filter] = append(m.subs[filter], h)
	replay := make(map[string][]byte)
	for topic, p := range m.retained {
		if TopicMatches(filter, topic) {
			replay[topic] = p
		}
	}
	m.mu.Unlock()
	for topic, p := range replay {
		h(topic, p)
	}
	return nil
}

// Last returns the last payload published on topic.
func (m *MemoryBroker) Last(topic string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.Messages) - 1; i >= 0; i-- {
		if m.Messages[i].Topic == topic {
			return m.Messages[i].Payload, true
		}
	}
	return "", false
}

// Published returns the messages published on topic in order.
func (m *MemoryBroker) Published(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.Messages {
		if msg.Topic == topic {
			out = append(out, msg.Payload)
		}
	}
	return out
}

// TopicMatches reports whether topic matches an MQTT subscription filter.
func TopicMatches(filter, topic string) bool {
	if filter == topic {
		return true
	}
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		if f == "#" {
			return true
		}
		if i >= len(ts) {
			return false
		}
		if f != "+" && f != ts[i] {
			return false
		}
	}
	return len(fs) == len(ts)
}
