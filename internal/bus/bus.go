// internal/bus/bus.go
//
// Publish/subscribe abstraction for the blockwords engine.
// The engine treats the message bus as an abstract primitive: publish with
// an optional retained flag, subscribe to topic patterns, and drain one
// ordered stream of inbound messages. The production implementation is MQTT
// (mqtt.go); tests use the in-memory bus (memory.go).

package bus

import "strings"

// Message is one inbound bus message.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Bus is the publish/subscribe primitive.
type Bus interface {
	// Publish sends a payload to a topic. Retained messages are replayed
	// to late subscribers by the broker.
	Publish(topic string, payload []byte, retained bool) error

	// Subscribe registers interest in a topic pattern ('+' single level,
	// '#' multi level). Matching messages appear on Messages.
	Subscribe(pattern string) error

	// Messages is the single ordered stream of inbound messages. One
	// consumer drains it; handlers run to completion between receives.
	Messages() <-chan Message

	// Close tears the connection down.
	Close() error
}

// TopicMatches reports whether an MQTT-style pattern matches a topic.
// '+' matches exactly one level, '#' matches the rest of the topic.
func TopicMatches(pattern, topic string) bool {
	pp := strings.Split(pattern, "/")
	tt := strings.Split(topic, "/")
	for i, p := range pp {
		if p == "#" {
			return true
		}
		if i >= len(tt) {
			return false
		}
		if p != "+" && p != tt[i] {
			return false
		}
	}
	return len(pp) == len(tt)
}
