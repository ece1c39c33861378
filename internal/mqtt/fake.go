package mqtt

import (
	"github.com/sweeney/thermo-sensor/internal/logic"
	"github.com/sweeney/thermo-sensor/internal/max31855"
)

// PublishedReading is a reading recorded by FakePublisher.
type PublishedReading struct {
	Name    string
	Reading max31855.Reading
	Payload []byte
}

// FakePublisher records published readings and events for test assertions.
type FakePublisher struct {
	// Readings contains all readings that were published.
	Readings []PublishedReading

	// Events contains all fault events that were published.
	Events []logic.Event

	// Payloads contains the JSON payloads of fault events.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishReadingError, if set, will be returned by PublishReading.
	PublishReadingError error

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishReading records the reading.
func (f *FakePublisher) PublishReading(name string, r max31855.Reading) error {
	if f.PublishReadingError != nil {
		return f.PublishReadingError
	}

	payload, err := FormatReadingPayload(name, r)
	if err != nil {
		return err
	}
	f.Readings = append(f.Readings, PublishedReading{Name: name, Reading: r, Payload: payload})
	return nil
}

// Publish records the fault event.
func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	f.Events = append(f.Events, event)

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Payloads = append(f.Payloads, payload)

	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded readings and events.
func (f *FakePublisher) Reset() {
	f.Readings = nil
	f.Events = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishReadingError = nil
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
