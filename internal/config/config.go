// Package config loads the board wiring and channel list from YAML.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/thermo-sensor/internal/gpio"
	"github.com/sweeney/thermo-sensor/internal/max31855"
)

// Channel is one polled thermocouple input.
type Channel struct {
	Number int    `yaml:"channel"`
	Name   string `yaml:"name"`
}

// PinConfig is the YAML form of max31855.Pins, in BCM line numbers.
type PinConfig struct {
	Clock      int `yaml:"clock"`
	ChipSelect int `yaml:"chip_select"`
	Data       int `yaml:"data"`
	Sel0       int `yaml:"sel0"`
	Sel1       int `yaml:"sel1"`
	Sel2       int `yaml:"sel2"`
}

// Config describes how the board is wired and which channels to read.
type Config struct {
	Backend  string    `yaml:"backend"`
	Chip     string    `yaml:"chip"`
	Pins     PinConfig `yaml:"pins"`
	Channels []Channel `yaml:"channels"`
}

// Default returns the standard wiring with all eight channels enabled.
func Default() Config {
	p := max31855.DefaultPins()
	cfg := Config{
		Backend: gpio.BackendCdev,
		Chip:    gpio.DefaultChip,
		Pins: PinConfig{
			Clock:      int(p.Clock),
			ChipSelect: int(p.ChipSelect),
			Data:       int(p.Data),
			Sel0:       int(p.Sel0),
			Sel1:       int(p.Sel1),
			Sel2:       int(p.Sel2),
		},
	}
	for n := 0; n < max31855.Channels; n++ {
		cfg.Channels = append(cfg.Channels, Channel{Number: n})
	}
	return cfg
}

// Load reads the YAML file at path over the defaults. An empty path
// returns the defaults unchanged. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML from data over the defaults and validates it.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks the channel list and the pin assignment.
func (c Config) Validate() error {
	if len(c.Channels) == 0 {
		return errors.New("no channels configured")
	}
	seen := make(map[int]bool, len(c.Channels))
	for _, ch := range c.Channels {
		if ch.Number < 0 || ch.Number >= max31855.Channels {
			return fmt.Errorf("channel %d out of range [0,%d]", ch.Number, max31855.Channels-1)
		}
		if seen[ch.Number] {
			return fmt.Errorf("channel %d listed twice", ch.Number)
		}
		seen[ch.Number] = true
	}
	return c.MAXPins().Validate()
}

// MAXPins converts the pin section to driver pins.
func (c Config) MAXPins() max31855.Pins {
	return max31855.Pins{
		Clock:      gpio.Line(c.Pins.Clock),
		ChipSelect: gpio.Line(c.Pins.ChipSelect),
		Data:       gpio.Line(c.Pins.Data),
		Sel0:       gpio.Line(c.Pins.Sel0),
		Sel1:       gpio.Line(c.Pins.Sel1),
		Sel2:       gpio.Line(c.Pins.Sel2),
	}
}

// ChannelNumbers returns the configured channel indices in file order.
func (c Config) ChannelNumbers() []int {
	out := make([]int, len(c.Channels))
	for i, ch := range c.Channels {
		out[i] = ch.Number
	}
	return out
}

// Name returns the configured name of channel n, or "".
func (c Config) Name(n int) string {
	for _, ch := range c.Channels {
		if ch.Number == n {
			return ch.Name
		}
	}
	return ""
}
