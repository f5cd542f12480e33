// Package fault defines the error kinds shared by the controller packages.
// Callers match them with errors.Is; the producing package wraps them with
// the details of what went wrong.
package fault

import "errors"

var (
	// ErrSensor reports an unusable process reading (divider singularity,
	// non-positive thermistor resistance, failed ADC read).
	ErrSensor = errors.New("sensor fault")
	// ErrActuator reports a rejected or failed actuator write.
	ErrActuator = errors.New("actuator fault")
	// ErrTiming reports a non-positive tick interval.
	ErrTiming = errors.New("timing fault")
	// ErrConfig reports invalid parameters detected at construction.
	ErrConfig = errors.New("config error")
)
