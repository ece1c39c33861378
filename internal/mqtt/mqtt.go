// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sweeney/thermo-sensor/internal/logic"
	"github.com/sweeney/thermo-sensor/internal/max31855"
)

// TopicPrefix is the root of all thermocouple topics.
const TopicPrefix = "sensors/thermocouple"

// Topic is the MQTT topic for fault events.
const Topic = TopicPrefix + "/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = TopicPrefix + "/system"

// ReadingTopic returns the topic a channel's readings are published on.
func ReadingTopic(channel int) string {
	return fmt.Sprintf("%s/%d/reading", TopicPrefix, channel)
}

// Publisher publishes readings and events to MQTT.
type Publisher interface {
	// PublishReading sends a decoded reading for a named channel.
	PublishReading(name string, r max31855.Reading) error

	// Publish sends a fault event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// ReadingPayload represents the MQTT message payload for a reading.
type ReadingPayload struct {
	Reading ReadingInner `json:"reading"`
}

// ReadingInner contains the reading details.
type ReadingInner struct {
	Timestamp   string  `json:"timestamp"`
	Channel     int     `json:"channel"`
	Name        string  `json:"name,omitempty"`
	HotJunction float64 `json:"hot_junction_c"`
	Reference   float64 `json:"reference_c"`
	Fault       string  `json:"fault"`
	Raw         string  `json:"raw"`
}

// FormatReadingPayload creates the JSON payload for a reading.
func FormatReadingPayload(name string, r max31855.Reading) ([]byte, error) {
	payload := ReadingPayload{
		Reading: ReadingInner{
			Timestamp:   r.Time.UTC().Format(time.RFC3339),
			Channel:     r.Channel,
			Name:        name,
			HotJunction: r.HotJunction,
			Reference:   r.Reference,
			Fault:       r.Fault.String(),
			Raw:         r.Raw.String(),
		},
	}
	return json.Marshal(payload)
}

// Payload represents the MQTT message payload for a fault event.
type Payload struct {
	Thermocouple EventPayload `json:"thermocouple"`
}

// EventPayload contains the fault event details.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Channel   int    `json:"channel"`
	State     string `json:"state"`
	Previous  string `json:"previous"`
}

// FormatPayload creates the JSON payload for a fault event.
func FormatPayload(event logic.Event) ([]byte, error) {
	payload := Payload{
		Thermocouple: EventPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Channel:   event.Channel,
			State:     string(event.State),
			Previous:  string(event.Previous),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
