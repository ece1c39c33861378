// Package max31855 drives an octo MAX31855 thermocouple board: up to eight
// thermocouples behind a 3-bit analog multiplexer, read through one
// MAX31855 over a bit-banged, read-only SPI link.
//
// A read cycle selects a thermocouple on the multiplexer, waits for the
// multiplexer to settle, then clocks a 32-bit frame out of the MAX31855
// with chip-select held low. The last frame is kept by the Session and
// decoded on demand.
//
// The MAX31855 measures the thermocouple temperature to a resolution of
// 0.25°C and its internal temperature to 0.0625°C.
//
// Datasheet: https://datasheets.maximintegrated.com/en/ds/MAX31855.pdf
package max31855

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/thermo-sensor/internal/gpio"
)

// SettleDelay is the wait after changing the multiplexer select lines
// before the selected thermocouple's signal is valid.
const SettleDelay = 125 * time.Millisecond

// FrameBits is the number of clock pulses in one transfer.
const FrameBits = 32

// Channels is the number of thermocouples addressable by the multiplexer.
const Channels = 8

// Session owns the lines of one board and the most recent frame read from
// it. A Session is not safe for concurrent use; calls must be serialized
// by the caller.
type Session struct {
	port    gpio.Port
	pins    Pins
	frame   Frame
	channel int
	readAt  time.Time
	sleep   func(time.Duration)
	now     func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithSleep replaces time.Sleep for the settling delay.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Session) { s.sleep = sleep }
}

// WithClock replaces time.Now for the capture timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New claims the lines in pins on port and drives them to their idle
// levels: clock and select lines low, chip-select high, data as input.
// If initialization fails the port is released.
func New(port gpio.Port, pins Pins, opts ...Option) (*Session, error) {
	if err := pins.Validate(); err != nil {
		return nil, fmt.Errorf("max31855: %w", err)
	}
	s := &Session{
		port:  port,
		pins:  pins,
		sleep: time.Sleep,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if err := s.init(); err != nil {
		if rerr := port.ReleaseAll(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release after failed init: %w", rerr))
		}
		return nil, s.wrap(err)
	}
	return s, nil
}

func (s *Session) init() error {
	for _, l := range []gpio.Line{s.pins.Clock, s.pins.Sel0, s.pins.Sel1, s.pins.Sel2} {
		if err := s.port.ConfigureOutput(l); err != nil {
			return err
		}
		if err := s.port.Write(l, gpio.Low); err != nil {
			return err
		}
	}
	if err := s.port.ConfigureOutput(s.pins.ChipSelect); err != nil {
		return err
	}
	if err := s.port.Write(s.pins.ChipSelect, gpio.High); err != nil {
		return err
	}
	return s.port.ConfigureInput(s.pins.Data)
}

// Pins returns the line assignment.
func (s *Session) Pins() Pins {
	return s.pins
}

// Read selects channel on the multiplexer, waits SettleDelay and captures
// a new frame. Only the low 3 bits of channel are used. Faults reported by
// the thermocouple are not errors; inspect Fault after reading.
func (s *Session) Read(channel int) error {
	if err := s.selectChannel(channel); err != nil {
		return s.wrap(err)
	}
	f, err := s.captureFrame()
	if err != nil {
		return s.wrap(err)
	}
	s.frame = f
	s.channel = channel & 0x7
	s.readAt = s.now()
	return nil
}

// Sample reads channel and returns the decoded result.
func (s *Session) Sample(channel int) (Reading, error) {
	if err := s.Read(channel); err != nil {
		return Reading{}, err
	}
	return s.Reading(), nil
}

// Reading decodes the most recent frame. Time is when that frame was
// captured, zero before the first Read.
func (s *Session) Reading() Reading {
	return Reading{
		Channel:     s.channel,
		HotJunction: s.frame.HotJunction(),
		Reference:   s.frame.Reference(),
		Fault:       s.frame.Fault(),
		Raw:         s.frame,
		Time:        s.readAt,
	}
}

// selectChannel writes the channel bits to the multiplexer, T2 first, and
// blocks for SettleDelay.
func (s *Session) selectChannel(channel int) error {
	sel := []struct {
		line gpio.Line
		bit  int
	}{
		{s.pins.Sel2, 2},
		{s.pins.Sel1, 1},
		{s.pins.Sel0, 0},
	}
	for _, b := range sel {
		if err := s.port.Write(b.line, gpio.Level(channel>>b.bit&1)); err != nil {
			return fmt.Errorf("select channel %d: %w", channel, err)
		}
	}
	s.sleep(SettleDelay)
	return nil
}

// captureFrame clocks FrameBits bits out of the device, MSB first. Each bit
// is sampled while the clock is high.
func (s *Session) captureFrame() (Frame, error) {
	if err := s.port.Write(s.pins.ChipSelect, gpio.Low); err != nil {
		return 0, fmt.Errorf("assert chip-select: %w", err)
	}
	var data uint32
	for shift := FrameBits - 1; shift >= 0; shift-- {
		if err := s.port.Write(s.pins.Clock, gpio.High); err != nil {
			return 0, s.abort(err)
		}
		b, err := s.port.Read(s.pins.Data)
		if err != nil {
			return 0, s.abort(err)
		}
		data |= uint32(b&1) << shift
		if err := s.port.Write(s.pins.Clock, gpio.Low); err != nil {
			return 0, s.abort(err)
		}
	}
	if err := s.port.Write(s.pins.ChipSelect, gpio.High); err != nil {
		return 0, fmt.Errorf("release chip-select: %w", err)
	}
	return Frame(data), nil
}

// abort tries to leave the bus idle after a failed transfer. Failures to
// restore the idle levels are joined to err.
func (s *Session) abort(err error) error {
	errs := []error{err}
	if werr := s.port.Write(s.pins.Clock, gpio.Low); werr != nil {
		errs = append(errs, fmt.Errorf("idle clock: %w", werr))
	}
	if werr := s.port.Write(s.pins.ChipSelect, gpio.High); werr != nil {
		errs = append(errs, fmt.Errorf("release chip-select: %w", werr))
	}
	return fmt.Errorf("capture frame: %w", errors.Join(errs...))
}

// RawFrame returns the most recent frame, or zero before the first Read.
func (s *Session) RawFrame() Frame {
	return s.frame
}

// HotJunction returns the thermocouple temperature of the most recent
// frame in °C.
func (s *Session) HotJunction() float64 {
	return s.frame.HotJunction()
}

// Reference returns the reference junction temperature of the most recent
// frame in °C.
func (s *Session) Reference() float64 {
	return s.frame.Reference()
}

// Fault returns the fault code of the most recent frame.
func (s *Session) Fault() FaultCode {
	return s.frame.Fault()
}

// Shutdown releases every line of the port. The Session cannot read
// afterwards.
func (s *Session) Shutdown() error {
	if err := s.port.ReleaseAll(); err != nil {
		return s.wrap(err)
	}
	return nil
}

func (s *Session) wrap(err error) error {
	return fmt.Errorf("max31855: %w", err)
}
