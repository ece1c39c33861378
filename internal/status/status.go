// Package status provides a thread-safe status tracker for the thermo-sensor daemon.
// It is read by the HTTP handlers and by the MQTT heartbeat.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/gammazero/deque"

	"github.com/sweeney/thermo-sensor/internal/logic"
	"github.com/sweeney/thermo-sensor/internal/max31855"
)

// HistorySize is the number of readings kept per channel.
const HistorySize = 60

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// ChannelConfig names a polled channel.
type ChannelConfig struct {
	Channel int
	Name    string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	DebounceMs  int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
	Backend     string
	Channels    []ChannelConfig
}

// HistoryPoint is one past reading of a channel.
type HistoryPoint struct {
	Time        time.Time
	HotJunction float64
	Fault       max31855.FaultCode
}

// ChannelStatus is the tracked state of one channel.
type ChannelStatus struct {
	Channel    int
	Name       string
	Last       max31855.Reading
	HasReading bool
	State      logic.State // debounced fault state, empty before baseline
	Reads      int
	Errors     int
	LastError  string
	History    []HistoryPoint // oldest first
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Channels      []ChannelStatus // ascending channel order
	Baselined     bool
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Channel returns the status of channel n.
func (s Snapshot) Channel(n int) (ChannelStatus, bool) {
	for _, c := range s.Channels {
		if c.Channel == n {
			return c, true
		}
	}
	return ChannelStatus{}, false
}

type channelEntry struct {
	status  ChannelStatus
	history deque.Deque[HistoryPoint]
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu       sync.RWMutex
	snap     Snapshot
	channels map[int]*channelEntry
}

// NewTracker creates a Tracker with the given start time and config. Every
// channel in cfg.Channels is listed in snapshots, read or not.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	t := &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		channels: make(map[int]*channelEntry, len(cfg.Channels)),
	}
	for _, c := range cfg.Channels {
		t.channels[c.Channel] = &channelEntry{status: ChannelStatus{Channel: c.Channel, Name: c.Name}}
	}
	return t
}

func (t *Tracker) entry(channel int) *channelEntry {
	e, ok := t.channels[channel]
	if !ok {
		e = &channelEntry{status: ChannelStatus{Channel: channel}}
		t.channels[channel] = e
	}
	return e
}

// RecordReading stores r as the latest reading of its channel.
func (t *Tracker) RecordReading(r max31855.Reading) {
	t.mu.Lock()
	e := t.entry(r.Channel)
	e.status.Last = r
	e.status.HasReading = true
	e.status.Reads++
	e.history.PushBack(HistoryPoint{Time: r.Time, HotJunction: r.HotJunction, Fault: r.Fault})
	for e.history.Len() > HistorySize {
		e.history.PopFront()
	}
	t.mu.Unlock()
}

// RecordError counts a failed read of channel.
func (t *Tracker) RecordError(channel int, err error) {
	t.mu.Lock()
	e := t.entry(channel)
	e.status.Errors++
	e.status.LastError = err.Error()
	t.mu.Unlock()
}

// Update sets debounced channel states, baseline status, and event counts.
// Called from runLoop after every poll cycle.
func (t *Tracker) Update(states map[int]logic.State, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	for n, s := range states {
		t.entry(n).status.State = s
	}
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Channels = make([]ChannelStatus, 0, len(t.channels))
	for _, e := range t.channels {
		cs := e.status
		cs.History = make([]HistoryPoint, e.history.Len())
		for i := range cs.History {
			cs.History[i] = e.history.At(i)
		}
		s.Channels = append(s.Channels, cs)
	}
	t.mu.RUnlock()

	sort.Slice(s.Channels, func(i, j int) bool { return s.Channels[i].Channel < s.Channels[j].Channel })
	s.Now = time.Now()
	return s
}
