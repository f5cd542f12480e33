package datalog

import "github.com/stevensll/ee90/pkg/control"

// FakeSink records written records for test assertions.
type FakeSink struct {
	// Records contains every record written.
	Records []control.Record

	// WriteError, if set, will be returned by Write.
	WriteError error

	// Closed tracks if Close was called.
	Closed bool
}

// Write records rec.
func (f *FakeSink) Write(rec control.Record) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Records = append(f.Records, rec)
	return nil
}

// Close marks the sink as closed.
func (f *FakeSink) Close() error {
	f.Closed = true
	return nil
}

// Message is one payload seen by FakePublisher.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakePublisher records published payloads.
type FakePublisher struct {
	Messages     []Message
	PublishError error
	Closed       bool
}

// Publish records the payload.
func (f *FakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Messages = append(f.Messages, Message{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
