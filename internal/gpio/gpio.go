// Package gpio provides digital line access with hardware abstraction.
// Real implementations drive the Linux GPIO character device, /dev/gpiomem
// (go-rpio) or periph.io. The fake implementation allows testing without
// hardware.
package gpio

import (
	"errors"
	"fmt"
)

// Line identifies a physical GPIO line (BCM numbering / chip offset).
type Line int

// Level is a logic level, 0 or 1.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

// ErrHardware marks misuse of the port: an unconfigured line, a write to
// an input, or any access after ReleaseAll.
var ErrHardware = errors.New("hardware interface error")

// Port drives a fixed set of named lines.
type Port interface {
	// ConfigureOutput claims line as an output.
	ConfigureOutput(line Line) error

	// ConfigureInput claims line as an input.
	ConfigureInput(line Line) error

	// Write drives an output line to level.
	Write(line Line, level Level) error

	// Read samples the current level of a line.
	Read(line Line) (Level, error)

	// ReleaseAll returns every claimed line to a safe state and releases it.
	// The port is unusable afterwards.
	ReleaseAll() error
}

// Backend names accepted by Open.
const (
	BackendCdev   = "cdev"
	BackendRpio   = "rpio"
	BackendPeriph = "periph"
)

// DefaultChip is the GPIO character device used by the cdev backend.
const DefaultChip = "gpiochip0"

// Open returns a Port for the named backend.
func Open(backend, chip string) (Port, error) {
	var (
		p   Port
		err error
	)
	switch backend {
	case "", BackendCdev:
		if chip == "" {
			chip = DefaultChip
		}
		p, err = NewCdevPort(chip)
	case BackendRpio:
		p, err = NewRpioPort()
	case BackendPeriph:
		p, err = NewPeriphPort()
	default:
		return nil, fmt.Errorf("gpio: unknown backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}
