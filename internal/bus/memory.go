// internal/bus/memory.go
//
// In-memory Bus for tests: synchronous delivery, retained-message replay on
// subscribe, and a record of everything published so tests can assert on
// outbound traffic.

package bus

import (
	"sync"
)

const memoryBuffer = 1024

// Memory is a process-local Bus.
type Memory struct {
	mu        sync.Mutex
	patterns  []string
	retained  map[string]Message
	published []Message
	incoming  chan Message
	closed    bool
}

// NewMemory builds an empty in-memory bus.
func NewMemory() *Memory {
	return &Memory{
		retained: make(map[string]Message),
		incoming: make(chan Message, memoryBuffer),
	}
}

// Publish records the message and delivers it to the inbound stream if any
// subscribed pattern matches.
func (m *Memory) Publish(topic string, payload []byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...), Retained: retained}
	m.published = append(m.published, msg)
	if retained {
		m.retained[topic] = msg
	}
	if m.closed {
		return nil
	}
	for _, p := range m.patterns {
		if TopicMatches(p, topic) {
			m.incoming <- msg
			break
		}
	}
	return nil
}

// Subscribe registers a pattern and replays matching retained messages.
func (m *Memory) Subscribe(pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patterns = append(m.patterns, pattern)
	for topic, msg := range m.retained {
		if TopicMatches(pattern, topic) {
			m.incoming <- msg
		}
	}
	return nil
}

// Messages is the inbound stream.
func (m *Memory) Messages() <-chan Message { return m.incoming }

// Close stops delivery.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.incoming)
	}
	return nil
}

// Published returns a copy of every message published so far.
func (m *Memory) Published() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.published...)
}

// PublishedTo returns the payloads published to one exact topic, in order.
func (m *Memory) PublishedTo(topic string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, msg := range m.published {
		if msg.Topic == topic {
			out = append(out, string(msg.Payload))
		}
	}
	return out
}

// LastPublished returns the most recent payload on a topic, or "" if none.
func (m *Memory) LastPublished(topic string) string {
	all := m.PublishedTo(topic)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

// Reset clears the published record (not subscriptions or retained state).
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}
