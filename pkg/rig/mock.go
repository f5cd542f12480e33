package rig

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/stevensll/ee90/pkg/config"
	"github.com/stevensll/ee90/pkg/fault"
	"github.com/stevensll/ee90/pkg/pid"
	"github.com/stevensll/ee90/pkg/sample"
	"github.com/stevensll/ee90/pkg/thermistor"
)

// Mock simulates the thermal bench for testing and development.
//
// The heater is driven through a transistor that conducts while the DAC
// output is low, so code 0 is full heat and full scale is off.
type Mock struct {
	cfg     *config.MockConfig
	model   thermistor.Params
	mapping pid.Mapping

	mu        sync.Mutex
	connected bool
	now       func() time.Time

	// Simulation state
	startTime   time.Time
	lastUpdate  time.Time
	temperature float64 // Plant temperature (K)
	code        int     // Last applied DAC code
}

// NewMock creates a new mocked device instance.
func NewMock(cfg *config.MockConfig, model thermistor.Params, mapping pid.Mapping) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			AmbientK:     295,
			MaxRiseK:     25,
			TimeConstant: 2 * time.Minute,
			NoiseLevel:   0.0005,
			Excitation:   3.3,
		}
	}

	return &Mock{
		cfg:     cfg,
		model:   model,
		mapping: mapping,
		now:     time.Now,
	}
}

// Connect simulates connecting to the device. The plant starts at ambient
// with the heater off.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}

	m.connected = true
	m.startTime = m.now()
	m.lastUpdate = m.startTime
	m.temperature = m.cfg.AmbientK
	m.code = m.mapping.MaxCode()

	return nil
}

// Close stops the mocked device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	return nil
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// ReadPair advances the plant to now and returns the divider voltages.
func (m *Mock) ReadPair() (sample.Pair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return sample.Pair{}, fmt.Errorf("%w: not connected", fault.ErrSensor)
	}

	now := m.now()
	m.advance(now)

	elapsed := now.Sub(m.startTime)
	// Deterministic pseudo-noise, same shape as the ADC ripple on the bench.
	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		m.cfg.NoiseLevel * 0.5

	vExc := m.cfg.Excitation
	return sample.Pair{
		Timestamp:  now,
		Excitation: vExc,
		Sense:      m.model.SenseVoltage(vExc, m.temperature) + noise,
	}, nil
}

// WriteCode applies a DAC code to the simulated heater drive.
func (m *Mock) WriteCode(code int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("%w: not connected", fault.ErrActuator)
	}
	if code < 0 || code > m.mapping.MaxCode() {
		return fmt.Errorf("%w: code %d outside [0, %d]", fault.ErrActuator, code, m.mapping.MaxCode())
	}

	m.advance(m.now())
	m.code = code
	return nil
}

// Temperature returns the simulated plant temperature (K).
func (m *Mock) Temperature() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.temperature
}

// advance integrates the first-order plant up to now with the current drive.
func (m *Mock) advance(now time.Time) {
	dt := now.Sub(m.lastUpdate).Seconds()
	m.lastUpdate = now
	if dt <= 0 {
		return
	}

	target := m.cfg.AmbientK + m.heaterDrive()*m.cfg.MaxRiseK
	tau := m.cfg.TimeConstant.Seconds()
	if tau <= 0 {
		m.temperature = target
		return
	}
	alpha := 1 - math.Exp(-dt/tau)
	m.temperature += alpha * (target - m.temperature)
}

// heaterDrive returns the heater duty in [0, 1] for the current code.
func (m *Mock) heaterDrive() float64 {
	return 1 - float64(m.code)/float64(m.mapping.MaxCode())
}
