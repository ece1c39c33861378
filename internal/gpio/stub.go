//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// CdevPort is not available on non-Linux platforms.
type CdevPort struct{ unsupportedPort }

// NewCdevPort returns an error on non-Linux platforms.
func NewCdevPort(chip string) (*CdevPort, error) {
	return nil, errUnsupported
}

// RpioPort is not available on non-Linux platforms.
type RpioPort struct{ unsupportedPort }

// NewRpioPort returns an error on non-Linux platforms.
func NewRpioPort() (*RpioPort, error) {
	return nil, errUnsupported
}

type unsupportedPort struct{}

func (unsupportedPort) ConfigureOutput(Line) error { return errUnsupported }
func (unsupportedPort) ConfigureInput(Line) error  { return errUnsupported }
func (unsupportedPort) Write(Line, Level) error    { return errUnsupported }
func (unsupportedPort) Read(Line) (Level, error)   { return Low, errUnsupported }
func (unsupportedPort) ReleaseAll() error          { return nil }
