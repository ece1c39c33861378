package max31855

import (
	"fmt"

	"github.com/sweeney/thermo-sensor/internal/gpio"
)

// Pins assigns the six lines of an octo MAX31855 board.
type Pins struct {
	Clock      gpio.Line // SCK
	ChipSelect gpio.Line // CS, active low
	Data       gpio.Line // SO
	Sel0       gpio.Line // T0, multiplexer select bit 0
	Sel1       gpio.Line // T1
	Sel2       gpio.Line // T2
}

// DefaultPins is the wiring used on the SPI0 header pins of a Raspberry
// Pi, with the multiplexer on BCM 17, 27 and 22.
func DefaultPins() Pins {
	return Pins{
		Clock:      11,
		ChipSelect: 8,
		Data:       9,
		Sel0:       17,
		Sel1:       27,
		Sel2:       22,
	}
}

// Validate checks that no line is assigned to two roles.
func (p Pins) Validate() error {
	roles := []struct {
		name string
		line gpio.Line
	}{
		{"clock", p.Clock},
		{"chip-select", p.ChipSelect},
		{"data", p.Data},
		{"sel0", p.Sel0},
		{"sel1", p.Sel1},
		{"sel2", p.Sel2},
	}
	seen := make(map[gpio.Line]string, len(roles))
	for _, r := range roles {
		if r.line < 0 {
			return fmt.Errorf("%s: invalid line %d", r.name, r.line)
		}
		if other, ok := seen[r.line]; ok {
			return fmt.Errorf("%s and %s both use line %d", other, r.name, r.line)
		}
		seen[r.line] = r.name
	}
	return nil
}
