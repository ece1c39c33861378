//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// consumer labels requested lines in the kernel (see gpioinfo).
const consumer = "thermo-sensor"

// CdevPort drives lines through the Linux GPIO character device.
type CdevPort struct {
	chip  *gpiocdev.Chip
	lines map[Line]*gpiocdev.Line
	table lineTable
}

// NewCdevPort opens the named GPIO chip, e.g. "gpiochip0".
func NewCdevPort(chip string) (*CdevPort, error) {
	c, err := gpiocdev.NewChip(chip, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &CdevPort{
		chip:  c,
		lines: make(map[Line]*gpiocdev.Line),
		table: newLineTable(),
	}, nil
}

// ConfigureOutput requests line as an output, initially low.
func (p *CdevPort) ConfigureOutput(line Line) error {
	if err := p.table.claim(line, dirOutput); err != nil {
		return err
	}
	if l, ok := p.lines[line]; ok {
		return p.reconfigure(line, l.Reconfigure(gpiocdev.AsOutput(0)))
	}
	return p.request(line, gpiocdev.AsOutput(0))
}

// ConfigureInput requests line as an input with bias disabled.
func (p *CdevPort) ConfigureInput(line Line) error {
	if err := p.table.claim(line, dirInput); err != nil {
		return err
	}
	if l, ok := p.lines[line]; ok {
		return p.reconfigure(line, l.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled))
	}
	return p.request(line, gpiocdev.AsInput, gpiocdev.WithBiasDisabled)
}

func (p *CdevPort) request(line Line, opts ...gpiocdev.LineReqOption) error {
	l, err := p.chip.RequestLine(int(line), opts...)
	if err != nil {
		delete(p.table.dirs, line)
		return fmt.Errorf("request line %d: %w: %w", line, ErrHardware, err)
	}
	p.lines[line] = l
	return nil
}

func (p *CdevPort) reconfigure(line Line, err error) error {
	if err != nil {
		return fmt.Errorf("reconfigure line %d: %w: %w", line, ErrHardware, err)
	}
	return nil
}

// Write drives an output line.
func (p *CdevPort) Write(line Line, level Level) error {
	if err := p.table.checkWrite(line, level); err != nil {
		return err
	}
	if err := p.lines[line].SetValue(int(level)); err != nil {
		return fmt.Errorf("write line %d: %w: %w", line, ErrHardware, err)
	}
	return nil
}

// Read samples a line.
func (p *CdevPort) Read(line Line) (Level, error) {
	if err := p.table.checkRead(line); err != nil {
		return Low, err
	}
	v, err := p.lines[line].Value()
	if err != nil {
		return Low, fmt.Errorf("read line %d: %w: %w", line, ErrHardware, err)
	}
	if v != 0 {
		return High, nil
	}
	return Low, nil
}

// ReleaseAll reconfigures every requested line as an input before closing
// it, then closes the chip. Floating inputs leave the board as it was at
// boot.
func (p *CdevPort) ReleaseAll() error {
	if p.table.released {
		return nil
	}
	var errs []error
	for n, l := range p.lines {
		if err := l.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure line %d: %w", n, err))
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close line %d: %w", n, err))
		}
	}
	p.lines = make(map[Line]*gpiocdev.Line)
	p.table.release()
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("release errors: %v", errs)
	}
	return nil
}
