package mqtt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/thermo-sensor/internal/logic"
	"github.com/sweeney/thermo-sensor/internal/max31855"
)

// fakeToken is an already-completed paho token.
type fakeToken struct {
	err      error
	timedOut bool
}

func (t *fakeToken) Wait() bool                     { return !t.timedOut }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timedOut }
func (t *fakeToken) Error() error                   { return t.err }

func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// fakeClient records publishes. Methods the publisher does not use are
// left to the nil embedded Client and panic if called.
type fakeClient struct {
	paho.Client
	open        bool
	sent        []bufferedMsg
	publishErr  error
	timeout     bool
	disconnects []uint
}

func (c *fakeClient) IsConnectionOpen() bool { return c.open }

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.sent = append(c.sent, bufferedMsg{topic: topic, payload: payload.([]byte), qos: qos, retained: retained})
	return &fakeToken{err: c.publishErr, timedOut: c.timeout}
}

func (c *fakeClient) Disconnect(quiesce uint) {
	c.disconnects = append(c.disconnects, quiesce)
	c.open = false
}

var reconnectTime = time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)

func newTestPublisher(open bool, capacity int) (*RealPublisher, *fakeClient) {
	c := &fakeClient{open: open}
	return &RealPublisher{
		client: c,
		buf:    newRingBuffer(capacity),
		now:    func() time.Time { return reconnectTime },
	}, c
}

func topics(msgs []bufferedMsg) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.topic
	}
	return out
}

func TestOfflineMessagesAreBuffered(t *testing.T) {
	p, c := newTestPublisher(false, bufferCapacity)

	for ch := 0; ch < 3; ch++ {
		if err := p.PublishReading("", max31855.Reading{Channel: ch, HotJunction: 400}); err != nil {
			t.Fatalf("PublishReading: %v", err)
		}
	}
	if err := p.Publish(logic.Event{Type: logic.EventFault, Channel: 1, State: "OC", Previous: logic.StateOK}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.PublishSystem(SystemEvent{Event: "HEARTBEAT", RawPayload: []byte(`{}`), Retained: true}); err != nil {
		t.Fatalf("PublishSystem: %v", err)
	}

	if len(c.sent) != 0 {
		t.Errorf("sent while offline: %v", topics(c.sent))
	}
	if p.buf.len() != 5 {
		t.Errorf("buffered: got %d, want 5", p.buf.len())
	}
}

func TestConnectReplaysInOrderWithQoSAndRetain(t *testing.T) {
	p, c := newTestPublisher(false, bufferCapacity)

	reading := max31855.Reading{Channel: 2, HotJunction: 812.25, Reference: 24.0625}
	p.PublishReading("kiln", reading)
	p.Publish(logic.Event{Type: logic.EventFault, Channel: 2, State: "OC", Previous: logic.StateOK})
	p.PublishSystem(SystemEvent{Event: "STARTUP", RawPayload: []byte(`{"status":{}}`), Retained: true})

	c.open = true
	p.onConnect(c)

	want := []struct {
		topic    string
		qos      byte
		retained bool
	}{
		{ReadingTopic(2), 0, true},
		{Topic, 1, false},
		{TopicSystem, 1, true},
	}
	if len(c.sent) != len(want) {
		t.Fatalf("replayed %v, want %d messages", topics(c.sent), len(want))
	}
	for i, w := range want {
		m := c.sent[i]
		if m.topic != w.topic || m.qos != w.qos || m.retained != w.retained {
			t.Errorf("message %d: got %s qos=%d retained=%v, want %s qos=%d retained=%v",
				i, m.topic, m.qos, m.retained, w.topic, w.qos, w.retained)
		}
	}

	wantPayload, _ := FormatReadingPayload("kiln", reading)
	if !bytes.Equal(c.sent[0].payload, wantPayload) {
		t.Errorf("reading payload changed in the buffer: %s", c.sent[0].payload)
	}
	if p.buf.len() != 0 {
		t.Errorf("buffer not drained: %d left", p.buf.len())
	}
}

func TestFirstConnectDoesNotAnnounceReconnect(t *testing.T) {
	p, c := newTestPublisher(true, bufferCapacity)

	p.onConnect(c)

	if len(c.sent) != 0 {
		t.Errorf("first connect with an empty buffer sent %v", topics(c.sent))
	}
}

func TestReconnectPublishesReconnectedAfterReplay(t *testing.T) {
	p, c := newTestPublisher(true, bufferCapacity)
	p.onConnect(c)

	c.open = false
	p.PublishReading("", max31855.Reading{Channel: 4})
	c.open = true
	p.onConnect(c)

	if got := topics(c.sent); len(got) != 2 || got[0] != ReadingTopic(4) || got[1] != TopicSystem {
		t.Fatalf("sent %v, want reading then system", got)
	}
	m := c.sent[1]
	if m.qos != 1 || !m.retained {
		t.Errorf("RECONNECTED qos=%d retained=%v, want qos 1 retained", m.qos, m.retained)
	}
	want := `{"system":{"timestamp":"2026-03-01T08:30:00Z","event":"RECONNECTED"}}`
	if string(m.payload) != want {
		t.Errorf("payload:\n got %s\nwant %s", m.payload, want)
	}
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	p, c := newTestPublisher(false, bufferCapacity)

	extra := 5
	for i := 0; i < bufferCapacity+extra; i++ {
		p.Publish(logic.Event{Type: logic.EventFault, Channel: i, State: "OC"})
	}
	if p.buf.len() != bufferCapacity {
		t.Fatalf("buffered: got %d, want %d", p.buf.len(), bufferCapacity)
	}
	if p.buf.dropped != extra {
		t.Errorf("dropped: got %d, want %d", p.buf.dropped, extra)
	}

	c.open = true
	p.onConnect(c)

	if len(c.sent) != bufferCapacity {
		t.Fatalf("replayed %d, want %d", len(c.sent), bufferCapacity)
	}
	first := fmt.Sprintf(`"channel":%d,`, extra)
	if !strings.Contains(string(c.sent[0].payload), first) {
		t.Errorf("oldest surviving message should be channel %d: %s", extra, c.sent[0].payload)
	}
	last := fmt.Sprintf(`"channel":%d,`, bufferCapacity+extra-1)
	if !strings.Contains(string(c.sent[len(c.sent)-1].payload), last) {
		t.Errorf("newest message should be channel %d: %s", bufferCapacity+extra-1, c.sent[len(c.sent)-1].payload)
	}
	if p.buf.dropped != 0 {
		t.Errorf("dropped not reset by drain: %d", p.buf.dropped)
	}
}

func TestBufferWrapsAcrossDrains(t *testing.T) {
	rb := newRingBuffer(3)
	for _, topic := range []string{"a", "b", "c", "d"} {
		rb.push(bufferedMsg{topic: topic})
	}
	if got := topics(rb.drainAll()); strings.Join(got, "") != "bcd" {
		t.Errorf("first drain: got %v, want [b c d]", got)
	}
	if rb.drainAll() != nil {
		t.Error("empty buffer should drain to nil")
	}

	rb.push(bufferedMsg{topic: "e"})
	rb.push(bufferedMsg{topic: "f"})
	if got := topics(rb.drainAll()); strings.Join(got, "") != "ef" {
		t.Errorf("second drain: got %v, want [e f]", got)
	}
}

func TestOnlinePublishIsSentImmediately(t *testing.T) {
	p, c := newTestPublisher(true, bufferCapacity)

	if err := p.PublishReading("", max31855.Reading{Channel: 7}); err != nil {
		t.Fatalf("PublishReading: %v", err)
	}
	if len(c.sent) != 1 || c.sent[0].topic != ReadingTopic(7) {
		t.Errorf("sent %v", topics(c.sent))
	}
	if p.buf.len() != 0 {
		t.Errorf("online publish was buffered")
	}
}

func TestPublishErrors(t *testing.T) {
	p, c := newTestPublisher(true, bufferCapacity)

	c.publishErr = errors.New("not authorized")
	err := p.Publish(logic.Event{Type: logic.EventClear})
	if err == nil || !errors.Is(err, c.publishErr) || !strings.Contains(err.Error(), Topic) {
		t.Errorf("got %v, want wrapped broker error naming %s", err, Topic)
	}

	c.publishErr = nil
	c.timeout = true
	if err := p.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("got %v, want timeout error", err)
	}
}

func TestConnectionStateAndClose(t *testing.T) {
	p, c := newTestPublisher(true, bufferCapacity)
	if !p.IsConnected() {
		t.Error("expected IsConnected=true")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(c.disconnects) != 1 || c.disconnects[0] != 1000 {
		t.Errorf("disconnects: %v", c.disconnects)
	}
	if p.IsConnected() {
		t.Error("expected IsConnected=false after Close")
	}
}
