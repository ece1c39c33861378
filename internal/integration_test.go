package internal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sweeney/thermo-sensor/internal/gpio"
	"github.com/sweeney/thermo-sensor/internal/logic"
	"github.com/sweeney/thermo-sensor/internal/max31855"
	"github.com/sweeney/thermo-sensor/internal/mqtt"
)

// encode builds the frame a MAX31855 would send for the given values.
func encode(hot, ref float64, detail uint32) max31855.Frame {
	f := (uint32(int32(hot*4)) & 0x3fff) << 18
	f |= (uint32(int32(ref*16)) & 0xfff) << 4
	if detail != 0 {
		f |= 0x10000 | detail&0x7
	}
	return max31855.Frame(f)
}

// levels returns the data-line script that clocks out frames in order. The
// fake port repeats only the final bit once the script is exhausted, so
// every frame a test reads must be listed.
func levels(frames ...max31855.Frame) []gpio.Level {
	var out []gpio.Level
	for _, f := range frames {
		for shift := 31; shift >= 0; shift-- {
			out = append(out, gpio.Level(uint32(f)>>shift&1))
		}
	}
	return out
}

type harness struct {
	port      *gpio.FakePort
	session   *max31855.Session
	detector  *logic.Detector
	publisher *mqtt.FakePublisher
	channels  []int
	now       time.Time
	step      time.Duration
}

func newHarness(t *testing.T, channels []int, frames []max31855.Frame) *harness {
	t.Helper()
	pins := max31855.DefaultPins()
	port := gpio.NewFakePort(map[gpio.Line][]gpio.Level{pins.Data: levels(frames...)})
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	session, err := max31855.New(port, pins, max31855.WithSleep(func(time.Duration) {}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &harness{
		port:      port,
		session:   session,
		detector:  logic.NewDetector(channels, 250*time.Millisecond, start),
		publisher: mqtt.NewFakePublisher(),
		channels:  channels,
		now:       start,
		step:      100 * time.Millisecond,
	}
}

// cycle reads every channel once, the way the daemon does on each tick.
func (h *harness) cycle(t *testing.T) {
	t.Helper()
	h.now = h.now.Add(h.step)
	for _, ch := range h.channels {
		r, err := h.session.Sample(ch)
		if err != nil {
			t.Fatalf("sample channel %d: %v", ch, err)
		}
		if err := h.publisher.PublishReading("", r); err != nil {
			t.Fatalf("publish reading: %v", err)
		}
		state := logic.StateOK
		if r.Fault != max31855.NoFault {
			state = logic.State(r.Fault.String())
		}
		for _, e := range h.detector.Process(logic.Input{Channel: ch, State: state, Time: h.now}) {
			if err := h.publisher.Publish(e); err != nil {
				t.Fatalf("publish event: %v", err)
			}
		}
	}
}

func TestIntegrationFullFlow(t *testing.T) {
	good0 := encode(812.25, 24.0625, 0)
	good2 := encode(-12.5, 24.0625, 0)
	open2 := encode(0, 24.0625, 1)

	// Cycles alternate channel 0 then channel 2.
	var frames []max31855.Frame
	for i := 0; i < 4; i++ {
		frames = append(frames, good0, good2)
	}
	for i := 0; i < 4; i++ {
		frames = append(frames, good0, open2)
	}
	h := newHarness(t, []int{0, 2}, frames)

	for i := 0; i < 8; i++ {
		h.cycle(t)
	}

	if len(h.publisher.Readings) != 16 {
		t.Fatalf("expected 16 readings, got %d", len(h.publisher.Readings))
	}
	first := h.publisher.Readings[0].Reading
	if first.Channel != 0 || first.HotJunction != 812.25 || first.Reference != 24.0625 {
		t.Errorf("first reading: %+v", first)
	}
	second := h.publisher.Readings[1].Reading
	if second.Channel != 2 || second.HotJunction != -12.5 {
		t.Errorf("second reading: %+v", second)
	}

	if len(h.publisher.Events) != 1 {
		t.Fatalf("expected 1 event, got %d: %+v", len(h.publisher.Events), h.publisher.Events)
	}
	e := h.publisher.Events[0]
	if e.Type != logic.EventFault || e.Channel != 2 || e.State != "OC" || e.Previous != logic.StateOK {
		t.Errorf("unexpected event: %+v", e)
	}

	var payload mqtt.Payload
	if err := json.Unmarshal(h.publisher.Payloads[0], &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Thermocouple.Event != "FAULT" || payload.Thermocouple.Channel != 2 || payload.Thermocouple.State != "OC" {
		t.Errorf("unexpected payload: %+v", payload.Thermocouple)
	}
}

func TestIntegrationMuxFollowsChannel(t *testing.T) {
	h := newHarness(t, []int{5}, []max31855.Frame{encode(100, 20, 0)})
	h.cycle(t)

	pins := max31855.DefaultPins()
	want := map[gpio.Line]gpio.Level{pins.Sel0: gpio.High, pins.Sel1: gpio.Low, pins.Sel2: gpio.High}
	for line, level := range want {
		if got := h.port.Level(line); got != level {
			t.Errorf("line %d: got %v, want %v", line, got, level)
		}
	}
	if got := h.port.Level(pins.ChipSelect); got != gpio.High {
		t.Errorf("chip-select should idle high, got %v", got)
	}
	if got := h.port.Level(pins.Clock); got != gpio.Low {
		t.Errorf("clock should idle low, got %v", got)
	}
}

func TestIntegrationNoEventsAtStartup(t *testing.T) {
	// A channel that is already faulted at startup sets the baseline; it is
	// not reported as a transition.
	frames := make([]max31855.Frame, 6)
	for i := range frames {
		frames[i] = encode(0, 21, 2)
	}
	h := newHarness(t, []int{0}, frames)
	for i := 0; i < len(frames); i++ {
		h.cycle(t)
	}

	if len(h.publisher.Events) != 0 {
		t.Errorf("expected 0 events, got %d", len(h.publisher.Events))
	}
	if got := h.detector.CurrentState()[0]; got != "SCG" {
		t.Errorf("baseline state: got %q, want SCG", got)
	}
}

func TestIntegrationHardwareErrorThenShutdown(t *testing.T) {
	h := newHarness(t, []int{0}, []max31855.Frame{encode(50, 20, 0)})

	h.port.ReadError = errors.New("line busy")
	if _, err := h.session.Sample(0); err == nil {
		t.Fatal("expected read error")
	}
	if got := h.port.Level(max31855.DefaultPins().ChipSelect); got != gpio.High {
		t.Errorf("chip-select after failed read: got %v, want High", got)
	}

	h.port.ReadError = nil
	r, err := h.session.Sample(0)
	if err != nil {
		t.Fatalf("sample after recovery: %v", err)
	}
	if r.HotJunction != 50 {
		t.Errorf("HotJunction: got %v, want 50", r.HotJunction)
	}

	if err := h.session.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !h.port.Released {
		t.Error("expected port to be released")
	}
	if _, err := h.session.Sample(0); !errors.Is(err, gpio.ErrHardware) {
		t.Errorf("sample after shutdown: got %v, want ErrHardware", err)
	}
}
