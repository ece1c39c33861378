package logic

import (
	"sort"
	"time"
)

// Detector tracks per-channel fault state and detects debounced transitions.
type Detector struct {
	debounceDuration time.Duration
	channels         map[int]*ChannelState
	baselined        bool
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewDetector creates a new transition detector for the given channels with
// the given debounce duration. The startTime is used for calculating uptime
// in heartbeat events.
func NewDetector(channels []int, debounceDuration time.Duration, startTime time.Time) *Detector {
	d := &Detector{
		debounceDuration: debounceDuration,
		channels:         make(map[int]*ChannelState, len(channels)),
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
	for _, ch := range channels {
		d.channels[ch] = &ChannelState{}
	}
	return d
}

// Process takes a new reading and returns any events that should be emitted.
// Events are only returned after every channel has a baseline, and only on
// state transitions. Readings for channels not given to NewDetector start
// tracking that channel.
func (d *Detector) Process(input Input) []Event {
	ch, ok := d.channels[input.Channel]
	if !ok {
		ch = &ChannelState{}
		d.channels[input.Channel] = ch
		d.baselined = false
	}

	prev := ch.Stable
	transition := d.processChannel(ch, input.State, input.Time)

	// Check if we've established baseline
	if !d.baselined {
		d.baselined = d.allBaselined()
		return nil // No events until baseline established
	}

	if transition == nil {
		return nil
	}

	event := Event{
		Timestamp: input.Time,
		Type:      *transition,
		Channel:   input.Channel,
		State:     ch.Stable,
		Previous:  prev,
	}
	switch event.Type {
	case EventFault:
		d.eventCounts.Faults++
	case EventClear:
		d.eventCounts.Clears++
	}
	return []Event{event}
}

func (d *Detector) allBaselined() bool {
	if len(d.channels) == 0 {
		return false
	}
	for _, ch := range d.channels {
		if !ch.Baselined {
			return false
		}
	}
	return true
}

// processChannel handles debounce logic for a single channel.
// Returns the event type if a transition occurred, nil otherwise.
func (d *Detector) processChannel(ch *ChannelState, newState State, now time.Time) *EventType {
	// First time seeing this channel
	if !ch.Baselined {
		if ch.Pending == "" || ch.Pending != newState {
			// Start observing, or restart after a change during baseline
			ch.Pending = newState
			ch.PendingSince = now
			return nil
		}

		// Check if debounce period has passed
		if now.Sub(ch.PendingSince) >= d.debounceDuration {
			ch.Stable = newState
			ch.Baselined = true
			ch.Pending = ""
		}
		return nil
	}

	// Already baselined - detect transitions
	if newState == ch.Stable {
		// No change from stable state, clear any pending
		ch.Pending = ""
		return nil
	}

	// State differs from stable
	if ch.Pending != newState {
		// New pending state
		ch.Pending = newState
		ch.PendingSince = now
		return nil
	}

	// Same pending state, check debounce
	if now.Sub(ch.PendingSince) >= d.debounceDuration {
		ch.Stable = newState
		ch.Pending = ""
		return eventTypeForTransition(newState)
	}

	return nil
}

func eventTypeForTransition(to State) *EventType {
	event := EventFault
	if to == StateOK {
		event = EventClear
	}
	return &event
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.baselined
}

// Channels returns the tracked channels in ascending order.
func (d *Detector) Channels() []int {
	out := make([]int, 0, len(d.channels))
	for ch := range d.channels {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}

// CurrentState returns the stable state of every tracked channel. Channels
// without a baseline have an empty state.
func (d *Detector) CurrentState() map[int]State {
	out := make(map[int]State, len(d.channels))
	for n, ch := range d.channels {
		out[n] = ch.Stable
	}
	return out
}

// EventCountsSnapshot returns the event counts since startup.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
