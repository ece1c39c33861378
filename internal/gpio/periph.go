package gpio

import (
	"fmt"
	"strconv"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// PeriphPort drives lines through periph.io's host drivers. Lines are
// looked up by number in the gpioreg registry.
type PeriphPort struct {
	table lineTable
	pins  map[Line]pgpio.PinIO
}

// NewPeriphPort initializes the periph.io host drivers.
func NewPeriphPort() (*PeriphPort, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph: %w", err)
	}
	return &PeriphPort{
		table: newLineTable(),
		pins:  make(map[Line]pgpio.PinIO),
	}, nil
}

func (p *PeriphPort) pin(line Line) (pgpio.PinIO, error) {
	if pin, ok := p.pins[line]; ok {
		return pin, nil
	}
	pin := gpioreg.ByName(strconv.Itoa(int(line)))
	if pin == nil {
		return nil, fmt.Errorf("line %d: no such pin: %w", line, ErrHardware)
	}
	p.pins[line] = pin
	return pin, nil
}

// ConfigureOutput sets line as an output driven low.
func (p *PeriphPort) ConfigureOutput(line Line) error {
	if p.table.released {
		return p.table.claim(line, dirOutput)
	}
	pin, err := p.pin(line)
	if err != nil {
		return err
	}
	if err := pin.Out(pgpio.Low); err != nil {
		return fmt.Errorf("configure line %d: %w: %w", line, ErrHardware, err)
	}
	return p.table.claim(line, dirOutput)
}

// ConfigureInput sets line as a floating input.
func (p *PeriphPort) ConfigureInput(line Line) error {
	if p.table.released {
		return p.table.claim(line, dirInput)
	}
	pin, err := p.pin(line)
	if err != nil {
		return err
	}
	if err := pin.In(pgpio.Float, pgpio.NoEdge); err != nil {
		return fmt.Errorf("configure line %d: %w: %w", line, ErrHardware, err)
	}
	return p.table.claim(line, dirInput)
}

// Write drives an output line.
func (p *PeriphPort) Write(line Line, level Level) error {
	if err := p.table.checkWrite(line, level); err != nil {
		return err
	}
	if err := p.pins[line].Out(level == High); err != nil {
		return fmt.Errorf("write line %d: %w: %w", line, ErrHardware, err)
	}
	return nil
}

// Read samples a line.
func (p *PeriphPort) Read(line Line) (Level, error) {
	if err := p.table.checkRead(line); err != nil {
		return Low, err
	}
	if p.pins[line].Read() == pgpio.High {
		return High, nil
	}
	return Low, nil
}

// ReleaseAll returns claimed lines to floating inputs.
func (p *PeriphPort) ReleaseAll() error {
	if p.table.released {
		return nil
	}
	var errs []error
	for line := range p.table.dirs {
		if err := p.pins[line].In(pgpio.Float, pgpio.NoEdge); err != nil {
			errs = append(errs, fmt.Errorf("release line %d: %w", line, err))
		}
	}
	p.table.release()
	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}
