package control

import (
	"fmt"
	"time"

	"github.com/stevensll/ee90/pkg/fault"
)

// Setpoint yields the target process value for tick i of an n tick run.
type Setpoint interface {
	At(tick, ticks int) float64
}

// Constant holds one setpoint for the whole run.
type Constant float64

// At returns c.
func (c Constant) At(int, int) float64 { return float64(c) }

// Staged holds First for the first half of the run and Second afterwards.
// The midpoint tick (i == n/2) still belongs to the first plateau.
type Staged struct {
	First  float64
	Second float64
}

// At returns the plateau for tick.
func (s Staged) At(tick, ticks int) float64 {
	if float64(tick) <= float64(ticks)/2 {
		return s.First
	}
	return s.Second
}

// StagedFromPeak builds the two plateaus as fractions of the rise from base
// to peak, e.g. 75% then 25%.
func StagedFromPeak(base, peak, first, second float64) Staged {
	return Staged{
		First:  (peak-base)*first + base,
		Second: (peak-base)*second + base,
	}
}

// Profile describes one run.
type Profile struct {
	Setpoint Setpoint
	DT       time.Duration // Nominal tick period
	Duration time.Duration // Total run length
}

// Validate checks DT > 0 and that Duration covers at least one tick.
func (p Profile) Validate() error {
	if p.Setpoint == nil {
		return fmt.Errorf("%w: profile has no setpoint", fault.ErrConfig)
	}
	if p.DT <= 0 {
		return fmt.Errorf("%w: tick period must be positive, got %v", fault.ErrConfig, p.DT)
	}
	if p.Duration < p.DT {
		return fmt.Errorf("%w: duration %v is shorter than one tick (%v)", fault.ErrConfig, p.Duration, p.DT)
	}
	return nil
}

// Ticks returns floor(Duration / DT).
func (p Profile) Ticks() int {
	if p.DT <= 0 {
		return 0
	}
	return int(p.Duration / p.DT)
}
