// Package logic contains pure business logic for thermocouple fault tracking.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State is the debounced fault state of a thermocouple channel: StateOK or
// the datasheet name of the fault ("SCV", "SCG", "OC").
type State string

const (
	StateOK State = "OK"
)

// EventType represents a fault state transition.
type EventType string

const (
	// EventFault is emitted when a channel enters a fault state, or moves
	// from one fault to another.
	EventFault EventType = "FAULT"
	// EventClear is emitted when a faulted channel returns to OK.
	EventClear EventType = "CLEAR"
)

// Event represents a fault transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Channel   int
	State     State
	Previous  State
}

// ChannelState tracks debounce state for a single thermocouple channel.
type ChannelState struct {
	// Current stable (debounced) state
	Stable State
	// Pending state during debounce
	Pending State
	// Time when pending state was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Input represents one decoded reading's fault state.
type Input struct {
	Channel int
	State   State
	Time    time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Faults int
	Clears int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
