// Package sample defines the voltage pair read from the thermistor divider
// each control tick and the helpers that turn raw ADC counts into it.
package sample

import "time"

// Pair is one reading of the thermistor divider.
type Pair struct {
	Timestamp  time.Time
	Excitation float64 // Divider excitation voltage (V)
	Sense      float64 // Voltage across the thermistor (V)
}

// Sampler reads the divider once per call. Implementations block until a
// reading is available or fail with an error wrapping fault.ErrSensor.
type Sampler interface {
	ReadPair() (Pair, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func() (Pair, error)

// ReadPair calls f.
func (f SamplerFunc) ReadPair() (Pair, error) { return f() }

// ADCToVoltage converts an ADC reading of the given resolution to voltage.
func ADCToVoltage(counts uint16, bits int, vref float64) float64 {
	full := float64(uint32(1)<<uint(bits) - 1)
	return (float64(counts) / full) * vref
}

// VoltageDivider calculates the input voltage from the measured output voltage.
// Formula: V_in = V_out * ((R1 + R2) / R2)
// A zero R1 means the input is measured directly.
func VoltageDivider(vout float64, r1, r2 float64) float64 {
	if r1 == 0 || r2 == 0 {
		return vout
	}
	return vout * ((r1 + r2) / r2)
}
