//go:build linux

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio/v4"
)

// RpioPort drives Raspberry Pi lines through memory-mapped /dev/gpiomem.
// Toggling is much faster than the character device, which shortens the
// 32-clock transfer.
type RpioPort struct {
	table lineTable
}

// NewRpioPort maps the GPIO registers. Only one RpioPort should be open
// per process; ReleaseAll unmaps them.
func NewRpioPort() (*RpioPort, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}
	return &RpioPort{table: newBoundedLineTable(rpioLines)}, nil
}

// ConfigureOutput sets line as an output driven low.
func (p *RpioPort) ConfigureOutput(line Line) error {
	if err := p.table.claim(line, dirOutput); err != nil {
		return err
	}
	pin := rpio.Pin(line)
	pin.Output()
	pin.Low()
	return nil
}

// ConfigureInput sets line as an input with pulls off.
func (p *RpioPort) ConfigureInput(line Line) error {
	if err := p.table.claim(line, dirInput); err != nil {
		return err
	}
	pin := rpio.Pin(line)
	pin.Input()
	pin.PullOff()
	return nil
}

// Write drives an output line.
func (p *RpioPort) Write(line Line, level Level) error {
	if err := p.table.checkWrite(line, level); err != nil {
		return err
	}
	rpio.Pin(line).Write(rpio.State(level))
	return nil
}

// Read samples a line.
func (p *RpioPort) Read(line Line) (Level, error) {
	if err := p.table.checkRead(line); err != nil {
		return Low, err
	}
	if rpio.Pin(line).Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

// ReleaseAll returns claimed lines to inputs and unmaps the registers.
func (p *RpioPort) ReleaseAll() error {
	if p.table.released {
		return nil
	}
	for line := range p.table.dirs {
		rpio.Pin(line).Input()
	}
	p.table.release()
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpiomem: %w: %w", ErrHardware, err)
	}
	return nil
}
