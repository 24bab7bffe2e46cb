// internal/bus/mqtt.go
//
// MQTT-backed Bus implementation (eclipse paho client).
// Inbound messages from all subscriptions funnel into one channel, in
// arrival order, so the engine's single consumer sees a totally ordered
// stream. Paho invokes handlers on its own goroutine; the channel handoff
// is the boundary between transport concurrency and the engine's
// single-threaded event processing.

package bus

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

const inboundBuffer = 256

// MQTT is the production Bus.
type MQTT struct {
	client   mqtt.Client
	incoming chan Message
}

// ConnectMQTT dials the broker and waits for the connection.
func ConnectMQTT(brokerURL, clientID string) (*MQTT, error) {
	b := &MQTT{incoming: make(chan Message, inboundBuffer)}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetConnectTimeout(10 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt connection lost")
	}
	opts.OnConnect = func(_ mqtt.Client) {
		log.Info().Str("broker", brokerURL).Msg("mqtt connected")
	}

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timeout", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", brokerURL, err)
	}
	return b, nil
}

// Publish sends and waits for broker acknowledgement.
func (b *MQTT) Publish(topic string, payload []byte, retained bool) error {
	token := b.client.Publish(topic, 1, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe routes a pattern's messages onto the shared inbound channel.
// If the channel is full the message is dropped with a warning rather than
// blocking the paho router.
func (b *MQTT) Subscribe(pattern string) error {
	token := b.client.Subscribe(pattern, 1, func(_ mqtt.Client, m mqtt.Message) {
		select {
		case b.incoming <- Message{Topic: m.Topic(), Payload: m.Payload(), Retained: m.Retained()}:
		default:
			log.Warn().Str("topic", m.Topic()).Msg("inbound queue full, dropping message")
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", pattern, err)
	}
	return nil
}

// Messages is the single ordered inbound stream.
func (b *MQTT) Messages() <-chan Message { return b.incoming }

// Close disconnects from the broker.
func (b *MQTT) Close() error {
	b.client.Disconnect(250)
	close(b.incoming)
	return nil
}
