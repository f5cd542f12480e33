// Package pid implements the bounded PID control law used by the thermal
// controller and the mapping of its output onto actuator codes.
package pid

import (
	"fmt"
	"math"

	"github.com/stevensll/ee90/pkg/fault"
)

// Gains is the immutable per-run controller configuration.
type Gains struct {
	Kp            float64
	Ki            float64
	Kd            float64
	Deadband      float64 // |error| below this is treated as exactly zero
	IntegralBound float64 // Symmetric clamp applied to the integral state
}

// NewGains validates and returns Gains.
func NewGains(kp, ki, kd, deadband, integralBound float64) (Gains, error) {
	g := Gains{Kp: kp, Ki: ki, Kd: kd, Deadband: deadband, IntegralBound: integralBound}
	if err := g.Validate(); err != nil {
		return Gains{}, err
	}
	return g, nil
}

// Validate checks that the gains are finite, the deadband is non-negative
// and the integral bound is positive.
func (g Gains) Validate() error {
	gains := []struct {
		name string
		v    float64
	}{{"kp", g.Kp}, {"ki", g.Ki}, {"kd", g.Kd}}
	for _, k := range gains {
		if math.IsNaN(k.v) || math.IsInf(k.v, 0) {
			return fmt.Errorf("%w: gain %s must be finite, got %v", fault.ErrConfig, k.name, k.v)
		}
	}
	if !(g.Deadband >= 0) || math.IsInf(g.Deadband, 0) {
		return fmt.Errorf("%w: deadband must be non-negative, got %v", fault.ErrConfig, g.Deadband)
	}
	if !(g.IntegralBound > 0) {
		return fmt.Errorf("%w: integral bound must be positive, got %v", fault.ErrConfig, g.IntegralBound)
	}
	return nil
}

// State is the controller memory carried from one tick to the next.
// The zero value is the state at the start of a run.
type State struct {
	PreviousError float64 // Error of the previous tick, after the deadband
	Integral      float64 // Accumulated error*seconds, clamped
}

// Step computes one tick of the control law.
//
// The integral is clamped only after it has been used for this tick's
// output, so control reflects the unclamped value while the returned state
// carries the clamped one.
func Step(setpoint, pv, dt float64, g Gains, s State) (float64, State, error) {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return 0, s, fmt.Errorf("%w: tick interval must be positive, got %v s", fault.ErrTiming, dt)
	}

	e := setpoint - pv
	if math.Abs(e) < g.Deadband {
		e = 0
	}

	integral := s.Integral + e*dt
	derivative := (e - s.PreviousError) / dt
	control := g.Kp*e + g.Ki*integral + g.Kd*derivative

	return control, State{
		PreviousError: e,
		Integral:      clamp(integral, g.IntegralBound),
	}, nil
}

// clamp bounds val to ±bound.
func clamp(val, bound float64) float64 {
	if val > bound {
		return bound
	}
	if val < -bound {
		return -bound
	}
	return val
}
