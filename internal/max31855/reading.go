package max31855

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// Reading is a decoded frame from one channel.
type Reading struct {
	Channel     int
	HotJunction float64 // °C
	Reference   float64 // °C
	Fault       FaultCode
	Raw         Frame
	Time        time.Time
}

// OK reports whether the thermocouple temperature is usable.
func (r Reading) OK() bool {
	return r.Fault == NoFault
}

// Env returns the thermocouple temperature as a periph.io environment
// measurement.
func (r Reading) Env() physic.Env {
	return physic.Env{
		Temperature: physic.Temperature(r.HotJunction*1000)*physic.MilliCelsius + physic.ZeroCelsius,
	}
}

// ReferenceTemperature returns the reference junction temperature as a
// physic.Temperature.
func (r Reading) ReferenceTemperature() physic.Temperature {
	return physic.Temperature(r.Reference*10000)*physic.MilliCelsius/10 + physic.ZeroCelsius
}
