// Package control runs the thermal control loop: one tick per period it
// samples the thermistor divider, applies a control law and writes the
// resulting code to the actuator, yielding a Record per tick.
package control

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/stevensll/ee90/pkg/fault"
	"github.com/stevensll/ee90/pkg/pid"
	"github.com/stevensll/ee90/pkg/sample"
	"github.com/stevensll/ee90/pkg/thermistor"
)

// ErrStopped ends a run whose consumer stopped iterating early.
var ErrStopped = errors.New("run stopped by consumer")

// State is the lifecycle state of a Runner.
type State int

const (
	Idle State = iota
	Running
	Complete
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Complete:
		return "complete"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Record is one tick of the run log.
type Record struct {
	Tick        int
	Elapsed     time.Duration // Since run start, taken at the top of the tick
	Temperature float64       // Process value (K)
	Code        int           // Actuator code applied
	Error       float64       // Error after the deadband
	Integral    float64       // Integral state after the tick
	Setpoint    float64
	Control     float64
}

// Actuator applies a code to the heater drive.
type Actuator interface {
	WriteCode(code int) error
}

// Clock supplies time and the inter-tick wait.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time        { return time.Now() }
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

// TickError is the reason a run aborted, with the context needed to
// diagnose it offline.
type TickError struct {
	Tick    int
	Elapsed time.Duration
	State   pid.State // Last controller state, zero for open-loop laws
	Err     error
}

func (e *TickError) Error() string {
	return fmt.Sprintf("tick %d (t=%.3fs, error=%.3f, integral=%.3f): %v",
		e.Tick, e.Elapsed.Seconds(), e.State.PreviousError, e.State.Integral, e.Err)
}

func (e *TickError) Unwrap() error { return e.Err }

// Config wires a Runner to its collaborators.
type Config struct {
	Profile  Profile
	Model    thermistor.Params
	Law      Law
	Sampler  sample.Sampler
	Actuator Actuator
	Clock    Clock // Defaults to SystemClock
}

// Runner executes a single run. It is not safe for concurrent use and
// cannot be restarted.
type Runner struct {
	profile  Profile
	model    thermistor.Params
	law      Law
	sampler  sample.Sampler
	actuator Actuator
	clock    Clock

	state    State
	err      error
	produced int
}

// New validates cfg and returns an idle Runner.
func New(cfg Config) (*Runner, error) {
	if err := cfg.Profile.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Model.Validate(); err != nil {
		return nil, err
	}
	if cfg.Law == nil || cfg.Sampler == nil || cfg.Actuator == nil {
		return nil, fmt.Errorf("%w: runner needs a law, a sampler and an actuator", fault.ErrConfig)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	return &Runner{
		profile:  cfg.Profile,
		model:    cfg.Model,
		law:      cfg.Law,
		sampler:  cfg.Sampler,
		actuator: cfg.Actuator,
		clock:    clock,
	}, nil
}

// State returns the lifecycle state.
func (r *Runner) State() State { return r.state }

// Err returns the abort reason, a *TickError, or nil.
func (r *Runner) Err() error { return r.err }

// Expected returns the planned number of ticks.
func (r *Runner) Expected() int { return r.profile.Ticks() }

// Produced returns the number of records yielded so far.
func (r *Runner) Produced() int { return r.produced }

// Records returns the run as a lazy sequence. The run starts when iteration
// starts and ends early on the first fault, on ctx cancellation (checked at
// the top of each tick) or when the consumer stops. Only the first call
// yields anything.
//
// Ticks are separated by a fixed Sleep(DT) with no drift compensation, so
// the measured interval fed to the law grows with per-tick work.
func (r *Runner) Records(ctx context.Context) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		if r.state != Idle {
			return
		}
		r.state = Running

		ticks := r.profile.Ticks()
		start := r.clock.Now()
		last := start

		for tick := 0; tick < ticks; tick++ {
			now := r.clock.Now()
			elapsed := now.Sub(start)

			if err := ctx.Err(); err != nil {
				r.abort(tick, elapsed, err)
				return
			}

			dt := r.profile.DT.Seconds()
			if tick > 0 {
				dt = now.Sub(last).Seconds()
			}
			last = now

			pair, err := r.sampler.ReadPair()
			if err != nil {
				r.abort(tick, elapsed, kind(fault.ErrSensor, err))
				return
			}
			pv, err := r.model.Temperature(pair.Excitation, pair.Sense)
			if err != nil {
				r.abort(tick, elapsed, err)
				return
			}

			setpoint := r.profile.Setpoint.At(tick, ticks)
			out, err := r.law.Apply(setpoint, pv, dt, tick, ticks)
			if err != nil {
				r.abort(tick, elapsed, err)
				return
			}

			if err := r.actuator.WriteCode(out.Code); err != nil {
				r.abort(tick, elapsed, kind(fault.ErrActuator, err))
				return
			}

			r.produced++
			rec := Record{
				Tick:        tick,
				Elapsed:     elapsed,
				Temperature: pv,
				Code:        out.Code,
				Error:       out.Error,
				Integral:    out.Integral,
				Setpoint:    setpoint,
				Control:     out.Control,
			}
			if !yield(rec) {
				r.abort(tick, elapsed, ErrStopped)
				return
			}

			r.clock.Sleep(r.profile.DT)
		}

		r.state = Complete
	}
}

// Run drives the run to its end, handing each record to emit. A failing
// emit stops the run and its error is returned.
func (r *Runner) Run(ctx context.Context, emit func(Record) error) error {
	var emitErr error
	for rec := range r.Records(ctx) {
		if err := emit(rec); err != nil {
			emitErr = err
			break
		}
	}
	if emitErr != nil {
		return fmt.Errorf("emit record: %w", emitErr)
	}
	return r.err
}

func (r *Runner) abort(tick int, elapsed time.Duration, err error) {
	var st pid.State
	if s, ok := r.law.(interface{ State() pid.State }); ok {
		st = s.State()
	}
	r.state = Aborted
	r.err = &TickError{Tick: tick, Elapsed: elapsed, State: st, Err: err}
}

// kind makes sure err matches sentinel under errors.Is.
func kind(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
