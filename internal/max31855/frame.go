package max31855

import "fmt"

// Frame is one 32-bit transfer from the MAX31855, MSB first.
//
//	31..18  thermocouple (hot junction) temperature, 14-bit signed, 0.25°C
//	17      reserved
//	16      fault flag
//	15..4   internal (reference junction) temperature, 12-bit signed, 0.0625°C
//	3       reserved
//	2       SCV: thermocouple shorted to VCC
//	1       SCG: thermocouple shorted to GND
//	0       OC: thermocouple open circuit
type Frame uint32

const (
	faultFlag = 0x00010000
	faultSCV  = 0x4
	faultSCG  = 0x2
	faultOC   = 0x1
)

// HotJunction returns the cold-junction-compensated thermocouple
// temperature in °C.
func (f Frame) HotJunction() float64 {
	v := int32(f >> 18)
	if v >= 0x2000 {
		v = -((v ^ 0x3fff) + 1)
	}
	return float64(v) / 4
}

// Reference returns the chip's internal (reference junction) temperature
// in °C.
func (f Frame) Reference() float64 {
	v := int32((f & 0xfff0) >> 4)
	if v&0x800 != 0 {
		v = -((v ^ 0xfff) + 1)
	}
	return float64(v) / 16
}

// Fault classifies the frame's fault bits. SCV takes priority over SCG,
// which takes priority over OC. A frame with the fault flag set but no
// detail bit decodes as NoFault.
func (f Frame) Fault() FaultCode {
	if f&faultFlag == 0 {
		return NoFault
	}
	switch {
	case f&faultSCV != 0:
		return ShortToVCC
	case f&faultSCG != 0:
		return ShortToGND
	case f&faultOC != 0:
		return OpenCircuit
	}
	return NoFault
}

func (f Frame) String() string {
	return fmt.Sprintf("0x%08x", uint32(f))
}

// FaultCode is the fault reported by a frame.
type FaultCode int

const (
	NoFault     FaultCode = iota
	ShortToVCC            // SCV
	ShortToGND            // SCG
	OpenCircuit           // OC
)

// String returns the datasheet abbreviation.
func (c FaultCode) String() string {
	switch c {
	case NoFault:
		return "NONE"
	case ShortToVCC:
		return "SCV"
	case ShortToGND:
		return "SCG"
	case OpenCircuit:
		return "OC"
	}
	return fmt.Sprintf("FaultCode(%d)", int(c))
}

// Description returns a human readable explanation of the fault.
func (c FaultCode) Description() string {
	switch c {
	case NoFault:
		return "no fault"
	case ShortToVCC:
		return "thermocouple shorted to VCC"
	case ShortToGND:
		return "thermocouple shorted to GND"
	case OpenCircuit:
		return "thermocouple not connected"
	}
	return "unknown fault"
}
