package control

import (
	"github.com/stevensll/ee90/pkg/pid"
)

// Output is what a Law decided for one tick.
type Output struct {
	Code     int     // Actuator code to apply
	Control  float64 // Control signal before code mapping (V)
	Error    float64 // Error after the deadband
	Integral float64 // Integral state after the tick
}

// Law turns a process reading into an actuator code.
type Law interface {
	Apply(setpoint, pv, dt float64, tick, ticks int) (Output, error)
}

// PID drives the actuator with the bounded PID control law. A PID value
// owns its controller state and must be used for a single run only.
type PID struct {
	gains   pid.Gains
	mapping pid.Mapping
	state   pid.State
}

var _ Law = (*PID)(nil)

// NewPID returns a PID law starting from the zero state.
func NewPID(gains pid.Gains, mapping pid.Mapping) *PID {
	return &PID{gains: gains, mapping: mapping}
}

// Apply runs one controller step and maps the result to a code.
func (l *PID) Apply(setpoint, pv, dt float64, _, _ int) (Output, error) {
	control, next, err := pid.Step(setpoint, pv, dt, l.gains, l.state)
	if err != nil {
		return Output{}, err
	}
	l.state = next
	return Output{
		Code:     l.mapping.Code(control),
		Control:  control,
		Error:    next.PreviousError,
		Integral: next.Integral,
	}, nil
}

// State returns the controller state after the last successful step.
func (l *PID) State() pid.State {
	return l.state
}

// OnOff is the open-loop heater characterisation: the drive transistor
// conducts while the DAC output is low, so code 0 heats for the first half
// of the run and full scale cools for the rest.
type OnOff struct {
	Mapping pid.Mapping
}

var _ Law = OnOff{}

// Apply ignores the reading and returns the phase code.
func (l OnOff) Apply(_, _, _ float64, tick, ticks int) (Output, error) {
	if tick <= ticks/2 {
		return Output{Code: 0}, nil
	}
	return Output{Code: l.Mapping.MaxCode(), Control: l.Mapping.VoltageLimit}, nil
}
