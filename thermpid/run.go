package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/stevensll/ee90/pkg/config"
	"github.com/stevensll/ee90/pkg/control"
	"github.com/stevensll/ee90/pkg/datalog"
	"github.com/stevensll/ee90/pkg/gpio"
	"github.com/stevensll/ee90/pkg/pid"
	"github.com/stevensll/ee90/pkg/rig"
	"github.com/stevensll/ee90/pkg/sample"
)

// plan is what one invocation runs.
type plan struct {
	profile control.Profile
	law     control.Law
	layout  datalog.Layout
}

// buildPlan turns the run section into a profile and control law.
func buildPlan(cfg *config.Config) (plan, error) {
	mapping := cfg.Mapping()

	switch cfg.Run.Profile {
	case config.ProfileConstant:
		return plan{
			profile: control.Profile{
				Setpoint: control.Constant(cfg.Run.Setpoint),
				DT:       cfg.Run.DT,
				Duration: cfg.Run.Duration,
			},
			law:    control.NewPID(cfg.Gains(), mapping),
			layout: datalog.LayoutPID,
		}, nil

	case config.ProfileStaged:
		st := cfg.Run.Staged
		return plan{
			profile: control.Profile{
				Setpoint: control.StagedFromPeak(cfg.Run.Setpoint, st.PeakTemp, st.FirstFraction, st.SecondFraction),
				DT:       cfg.Run.DT,
				Duration: st.Duration,
			},
			law:    control.NewPID(cfg.Gains(), mapping),
			layout: datalog.LayoutPID,
		}, nil

	case config.ProfileOnOff:
		// Heat for one duration, then cool for another.
		return plan{
			profile: control.Profile{
				Setpoint: control.Constant(cfg.Run.Setpoint),
				DT:       cfg.Run.DT,
				Duration: 2 * cfg.Run.Duration,
			},
			law:    control.OnOff{Mapping: mapping},
			layout: datalog.LayoutOnOff,
		}, nil
	}

	return plan{}, fmt.Errorf("unknown run profile %q", cfg.Run.Profile)
}

// openDevice creates the configured backend. The caller connects it.
func openDevice(cfg *config.Config) (rig.Device, error) {
	codeBits := cfg.Actuator.ResolutionBits

	switch cfg.Device.Backend {
	case config.BackendMock:
		return rig.NewMock(&cfg.Mock, cfg.ThermistorParams(), cfg.Mapping()), nil
	case config.BackendSerial:
		return rig.New(cfg.Serial, codeBits), nil
	case config.BackendI2C:
		return rig.NewI2C(cfg.I2C, codeBits), nil
	case config.BackendSMBus:
		return rig.NewSMBus(cfg.I2C, codeBits), nil
	}

	return nil, fmt.Errorf("unknown device backend %q", cfg.Device.Backend)
}

// eventSink receives run lifecycle events.
type eventSink interface {
	Event(t time.Time, event, reason string) error
}

// session wires one run to its outputs.
type session struct {
	runner  *control.Runner
	sink    datalog.Sink
	events  eventSink // Optional
	mapping pid.Mapping
	gains   pid.Gains
	verbose bool
	now     func() time.Time
}

// run executes the run to its end. Record write failures are logged and do
// not stop the heater loop. The returned error is the abort reason.
func (s *session) run(ctx context.Context) error {
	s.event("START", "")
	log.Printf("Starting run: %d ticks", s.runner.Expected())

	err := s.runner.Run(ctx, func(rec control.Record) error {
		if werr := s.sink.Write(rec); werr != nil {
			log.Printf("Failed to record tick %d: %v", rec.Tick, werr)
		}
		if s.verbose {
			s.logTick(rec)
		}
		return nil
	})

	if produced, expected := s.runner.Produced(), s.runner.Expected(); produced < expected {
		log.Printf("Run incomplete: %d of %d ticks recorded", produced, expected)
	}

	switch {
	case err == nil:
		s.event("COMPLETE", "")
		log.Printf("Run complete")
	case errors.Is(err, context.Canceled):
		s.event("ABORT", "interrupted")
	default:
		s.event("ABORT", err.Error())
	}
	return err
}

func (s *session) event(name, reason string) {
	if s.events == nil {
		return
	}
	if err := s.events.Event(s.now(), name, reason); err != nil {
		log.Printf("Failed to publish %s event: %v", name, err)
	}
}

func (s *session) logTick(rec control.Record) {
	log.Printf("Temperature is %.3f K against %.3f K setpoint", rec.Temperature, rec.Setpoint)
	log.Printf("Error is %.3f kP * Error is %.3f Integral is %.3f, kI * Int is %.3f",
		rec.Error, s.gains.Kp*rec.Error, rec.Integral, s.gains.Ki*rec.Integral)
	log.Printf("DAC setting is %.3f V (code %d)", s.mapping.Voltage(rec.Code), rec.Code)
}

// printState reads one pair and reports the divider voltages and the
// derived temperature.
func printState(cfg *config.Config, src sample.Sampler) error {
	p, err := src.ReadPair()
	if err != nil {
		return err
	}
	fmt.Printf("Excitation : %.4f V\nSense      : %.4f V\n", p.Excitation, p.Sense)

	model := cfg.ThermistorParams()
	r, err := model.Resistance(p.Excitation, p.Sense)
	if err != nil {
		return err
	}
	t, err := model.Temperature(p.Excitation, p.Sense)
	if err != nil {
		return err
	}
	fmt.Printf("Resistance : %.1f Ohm\nTemperature: %.3f K\n", r, t)
	return nil
}

// inspect prints one reading, then releases dev whether or not the read
// succeeded.
func inspect(cfg *config.Config, dev rig.Device, src sample.Sampler) error {
	err := printState(cfg, src)
	if cerr := dev.Close(); cerr != nil {
		log.Printf("Error closing device: %v", cerr)
	}
	return err
}

// listPorts prints the serial ports reported by list, one per line.
func listPorts(w io.Writer, list func() ([]rig.Port, error)) error {
	ports, err := list()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(w, p.Name)
	}
	return nil
}

// openEnableLine requests the heater enable line, or returns nil when the
// configuration has none.
func openEnableLine(cfg config.GPIOConfig) (gpio.Line, error) {
	if cfg.EnableLine < 0 {
		return nil, nil
	}
	line, err := gpio.NewRealLine(cfg.Chip, cfg.EnableLine, cfg.ActiveLow)
	if err != nil {
		return nil, err
	}
	return line, nil
}

// execute performs one run against a connected device, logging to a CSV
// file in cfg.Output.Dir. line, if not nil, is held on for the run. The
// heater is parked at full scale afterwards whatever the outcome.
func execute(ctx context.Context, cfg *config.Config, actuator control.Actuator, sampler sample.Sampler, line gpio.Line, verbose bool) error {
	p, err := buildPlan(cfg)
	if err != nil {
		return err
	}

	runner, err := control.New(control.Config{
		Profile:  p.profile,
		Model:    cfg.ThermistorParams(),
		Law:      p.law,
		Sampler:  sampler,
		Actuator: actuator,
	})
	if err != nil {
		return err
	}

	csvSink, path, err := datalog.CreateCSV(cfg.Output.Dir, p.layout, time.Now())
	if err != nil {
		return err
	}
	log.Printf("Logging to %s", path)
	sinks := datalog.Multi{csvSink}

	s := &session{
		runner:  runner,
		mapping: cfg.Mapping(),
		gains:   cfg.Gains(),
		verbose: verbose,
		now:     time.Now,
	}

	if cfg.MQTT.Broker != "" {
		pub, err := datalog.DialMQTT(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			// Telemetry is optional; the CSV log is the record of the run.
			log.Printf("MQTT disabled: %v", err)
		} else {
			m := datalog.NewMQTT(pub, cfg.MQTT.Topic)
			sinks = append(sinks, m)
			s.events = m
		}
	}
	s.sink = sinks
	defer func() {
		if err := sinks.Close(); err != nil {
			log.Printf("Error closing run log: %v", err)
		}
	}()

	if line != nil {
		if err := line.Set(true); err != nil {
			return fmt.Errorf("assert enable line: %w", err)
		}
		defer func() {
			if err := line.Set(false); err != nil {
				log.Printf("Failed to release enable line: %v", err)
			}
		}()
	}

	err = s.run(ctx)

	// Leave the heater off whatever the outcome.
	if perr := actuator.WriteCode(cfg.Mapping().MaxCode()); perr != nil {
		log.Printf("Failed to park heater: %v", perr)
	}

	if errors.Is(err, context.Canceled) {
		log.Printf("Interrupted, heater parked")
		return nil
	}
	return err
}
