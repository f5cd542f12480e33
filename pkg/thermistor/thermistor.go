// Package thermistor converts divider voltages into NTC thermistor
// temperatures using the Beta equation.
package thermistor

import (
	"fmt"
	"math"

	"github.com/stevensll/ee90/pkg/fault"
)

// ZeroCelsius is 0 °C expressed in Kelvin.
const ZeroCelsius = 273.15

// Params holds the per-deployment thermistor constants.
// The thermistor sits on the low side of a divider with RB on the high side,
// so the sensed voltage is taken across the thermistor.
type Params struct {
	RB   float64 // Series resistor (Ohm)
	RT0  float64 // Thermistor resistance at T0C (Ohm)
	T0C  float64 // Reference temperature (°C)
	Beta float64 // B constant
}

// New validates the constants and returns Params.
func New(rb, rt0, t0c, beta float64) (Params, error) {
	p := Params{RB: rb, RT0: rt0, T0C: t0c, Beta: beta}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks the invariants RB > 0, RT0 > 0 and Beta > 0.
func (p Params) Validate() error {
	switch {
	case !(p.RB > 0) || math.IsInf(p.RB, 0):
		return fmt.Errorf("%w: series resistance must be positive, got %v", fault.ErrConfig, p.RB)
	case !(p.RT0 > 0) || math.IsInf(p.RT0, 0):
		return fmt.Errorf("%w: reference resistance must be positive, got %v", fault.ErrConfig, p.RT0)
	case !(p.Beta > 0) || math.IsInf(p.Beta, 0):
		return fmt.Errorf("%w: beta must be positive, got %v", fault.ErrConfig, p.Beta)
	case math.IsNaN(p.T0C) || math.IsInf(p.T0C, 0):
		return fmt.Errorf("%w: reference temperature must be finite", fault.ErrConfig)
	}
	return nil
}

// Resistance recovers the thermistor resistance from the divider voltages.
func (p Params) Resistance(vExcitation, vSense float64) (float64, error) {
	if !finite(vExcitation) || !finite(vSense) {
		return 0, fmt.Errorf("%w: non-finite voltage (excitation=%v, sense=%v)", fault.ErrSensor, vExcitation, vSense)
	}
	if vExcitation == vSense {
		return 0, fmt.Errorf("%w: excitation equals sense voltage (%v V)", fault.ErrSensor, vSense)
	}
	rt := p.RB * vSense / (vExcitation - vSense)
	if !(rt > 0) {
		return 0, fmt.Errorf("%w: thermistor resistance %v Ohm is not positive (excitation=%v, sense=%v)",
			fault.ErrSensor, rt, vExcitation, vSense)
	}
	return rt, nil
}

// Temperature returns the thermistor temperature in Kelvin.
func (p Params) Temperature(vExcitation, vSense float64) (float64, error) {
	rt, err := p.Resistance(vExcitation, vSense)
	if err != nil {
		return 0, err
	}
	t0 := p.T0C + ZeroCelsius
	return 1.0 / (1.0/t0 + math.Log(rt/p.RT0)/p.Beta), nil
}

// SenseVoltage is the inverse of Temperature: the voltage expected across
// the thermistor at tempK for the given excitation.
func (p Params) SenseVoltage(vExcitation, tempK float64) float64 {
	t0 := p.T0C + ZeroCelsius
	rt := p.RT0 * math.Exp(p.Beta*(1.0/tempK-1.0/t0))
	return vExcitation * rt / (p.RB + rt)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
