package datalog

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stevensll/ee90/pkg/control"
)

// Publisher sends raw payloads to a broker.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close() error
}

// RecordPayload is the telemetry message for one tick.
type RecordPayload struct {
	Tick        int     `json:"tick"`
	Time        float64 `json:"time"`        // Seconds since run start
	Temperature float64 `json:"temperature"` // K
	Setpoint    float64 `json:"setpoint"`    // K
	DAC         int     `json:"dac"`
	Control     float64 `json:"control"`
	Error       float64 `json:"error"`
	Integral    float64 `json:"integral"`
}

// EventPayload is a run lifecycle message.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"` // START, COMPLETE, ABORT
	Reason    string `json:"reason,omitempty"`
}

// FormatRecord creates the JSON payload for a record.
func FormatRecord(rec control.Record) ([]byte, error) {
	return json.Marshal(RecordPayload{
		Tick:        rec.Tick,
		Time:        rec.Elapsed.Seconds(),
		Temperature: rec.Temperature,
		Setpoint:    rec.Setpoint,
		DAC:         rec.Code,
		Control:     rec.Control,
		Error:       rec.Error,
		Integral:    rec.Integral,
	})
}

// FormatEvent creates the JSON payload for a lifecycle event.
func FormatEvent(t time.Time, event, reason string) ([]byte, error) {
	return json.Marshal(EventPayload{
		Timestamp: t.UTC().Format(time.RFC3339),
		Event:     event,
		Reason:    reason,
	})
}

// MQTT publishes records to <topic>/records and lifecycle events to
// <topic>/events.
type MQTT struct {
	pub   Publisher
	topic string
}

// NewMQTT wraps pub.
func NewMQTT(pub Publisher, topic string) *MQTT {
	return &MQTT{pub: pub, topic: topic}
}

// Write publishes rec at QoS 0.
func (m *MQTT) Write(rec control.Record) error {
	payload, err := FormatRecord(rec)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return m.pub.Publish(m.topic+"/records", 0, false, payload)
}

// Event publishes a lifecycle event at QoS 1, retained so late subscribers
// see the run state.
func (m *MQTT) Event(t time.Time, event, reason string) error {
	payload, err := FormatEvent(t, event, reason)
	if err != nil {
		return fmt.Errorf("format event payload: %w", err)
	}
	return m.pub.Publish(m.topic+"/events", 1, true, payload)
}

// Close disconnects the publisher.
func (m *MQTT) Close() error {
	return m.pub.Close()
}

// PahoPublisher publishes to an actual MQTT broker.
type PahoPublisher struct {
	client paho.Client
}

// DialMQTT connects to broker.
func DialMQTT(broker, clientID string) (*PahoPublisher, error) {
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return &PahoPublisher{client: client}, nil
}

// Publish sends payload and waits for the broker.
func (p *PahoPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *PahoPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
