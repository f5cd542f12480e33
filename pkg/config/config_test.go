package config

import (
	"os"
	"testing"
	"time"

	"github.com/stevensll/ee90/pkg/fault"
	"github.com/stevensll/ee90/pkg/pid"
	"github.com/stevensll/ee90/pkg/thermistor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, float64(10000), cfg.Thermistor.RB)
	assert.Equal(t, float64(10000), cfg.Thermistor.RT0)
	assert.Equal(t, float64(25), cfg.Thermistor.T0C)
	assert.Equal(t, float64(3600), cfg.Thermistor.Beta)
	assert.Equal(t, -1.1, cfg.PID.Kp)
	assert.Equal(t, -0.035, cfg.PID.Ki)
	assert.Equal(t, 0.075, cfg.PID.Deadband)
	assert.Equal(t, float64(250), cfg.PID.IntegralBound)
	assert.Equal(t, 3.3, cfg.Actuator.VoltageLimit)
	assert.Equal(t, 16, cfg.Actuator.ResolutionBits)
	assert.Equal(t, ProfileConstant, cfg.Run.Profile)
	assert.Equal(t, float64(300), cfg.Run.Setpoint)
	assert.Equal(t, time.Second, cfg.Run.DT)
	assert.Equal(t, 30*time.Minute, cfg.Run.Duration)
	assert.Equal(t, 120*time.Minute, cfg.Run.Staged.Duration)
	assert.Equal(t, BackendMock, cfg.Device.Backend)
	assert.Equal(t, -1, cfg.GPIO.EnableLine)
	assert.Equal(t, 1, cfg.I2C.BusNumber)
	assert.Empty(t, cfg.MQTT.Broker)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_Backends(t *testing.T) {
	for _, backend := range []string{BackendMock, BackendSerial, BackendI2C, BackendSMBus} {
		cfg := Default()
		cfg.Device.Backend = backend
		assert.NoError(t, cfg.Validate(), backend)
	}
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
thermistor:
  rb: 4700
  rt0: 10000
  t0_c: 25
  beta: 3950

pid:
  kp: -2.0
  ki: -0.05
  kd: -0.5
  deadband: 0.1
  integral_bound: 100

actuator:
  voltage_limit: 3.287
  resolution_bits: 12

run:
  profile: staged
  setpoint: 301
  dt: 500ms
  duration: 10m
  average_samples: 4
  staged:
    peak_temp: 315
    duration: 1h

device:
  backend: i2c

i2c:
  bus: "1"
  adc_address: 0x49
  dac_address: 0x61

gpio:
  enable_line: 17
  active_low: true

mqtt:
  broker: tcp://localhost:1883
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, float64(4700), cfg.Thermistor.RB)
	assert.Equal(t, float64(3950), cfg.Thermistor.Beta)
	assert.Equal(t, -2.0, cfg.PID.Kp)
	assert.Equal(t, -0.5, cfg.PID.Kd)
	assert.Equal(t, 12, cfg.Actuator.ResolutionBits)
	assert.Equal(t, ProfileStaged, cfg.Run.Profile)
	assert.Equal(t, 500*time.Millisecond, cfg.Run.DT)
	assert.Equal(t, 10*time.Minute, cfg.Run.Duration)
	assert.Equal(t, 4, cfg.Run.AverageSamples)
	assert.Equal(t, float64(315), cfg.Run.Staged.PeakTemp)
	assert.Equal(t, 0.75, cfg.Run.Staged.FirstFraction) // default
	assert.Equal(t, time.Hour, cfg.Run.Staged.Duration)
	assert.Equal(t, BackendI2C, cfg.Device.Backend)
	assert.Equal(t, "1", cfg.I2C.Bus)
	assert.Equal(t, uint16(0x49), cfg.I2C.ADCAddress)
	assert.Equal(t, uint16(0x61), cfg.I2C.DACAddress)
	assert.Equal(t, 17, cfg.GPIO.EnableLine)
	assert.True(t, cfg.GPIO.ActiveLow)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "lab/thermal/pid", cfg.MQTT.Topic) // default
	assert.NoError(t, cfg.Validate())
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("invalid: yaml: content: [")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PartialYAML(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	yamlContent := `
serial:
  port: "/dev/ttyUSB1"
run:
  dt: 0s
pid:
  kd: 0
  ki: 0
`

	_, err = tmpfile.WriteString(yamlContent)
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.NotNil(t, cfg)

	// Should use defaults for missing fields
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate) // default
	assert.Equal(t, time.Second, cfg.Run.DT)     // zero replaced by default
	assert.Equal(t, -1.1, cfg.PID.Kp)            // default
	assert.Equal(t, 0.0, cfg.PID.Ki)             // explicit zero gain kept
}

func TestSave(t *testing.T) {
	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.Run.Setpoint = 305
	cfg.Run.DT = 250 * time.Millisecond

	tmpfile, err := os.CreateTemp("", "test_save_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	err = cfg.Save(tmpfile.Name())
	require.NoError(t, err)

	// Load it back and verify
	loaded, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", loaded.Serial.Port)
	assert.Equal(t, float64(305), loaded.Run.Setpoint)
	assert.Equal(t, 250*time.Millisecond, loaded.Run.DT)
	assert.Equal(t, cfg.PID, loaded.PID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "non-positive beta", mutate: func(c *Config) { c.Thermistor.Beta = -1 }},
		{name: "non-positive series resistor", mutate: func(c *Config) { c.Thermistor.RB = 0 }},
		{name: "negative deadband", mutate: func(c *Config) { c.PID.Deadband = -0.1 }},
		{name: "zero integral bound", mutate: func(c *Config) { c.PID.IntegralBound = 0 }},
		{name: "zero voltage limit", mutate: func(c *Config) { c.Actuator.VoltageLimit = 0 }},
		{name: "zero resolution", mutate: func(c *Config) { c.Actuator.ResolutionBits = 0 }},
		{name: "unknown profile", mutate: func(c *Config) { c.Run.Profile = "ramp" }},
		{name: "negative dt", mutate: func(c *Config) { c.Run.DT = -time.Second }},
		{name: "dt without unit", mutate: func(c *Config) { c.Run.DT = 1 }},
		{name: "duration below dt", mutate: func(c *Config) { c.Run.Duration = 100 * time.Millisecond }},
		{name: "staged duration below dt", mutate: func(c *Config) {
			c.Run.Profile = ProfileStaged
			c.Run.Staged.Duration = time.Millisecond
		}},
		{name: "negative averaging", mutate: func(c *Config) { c.Run.AverageSamples = -2 }},
		{name: "unknown backend", mutate: func(c *Config) { c.Device.Backend = "spi" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), fault.ErrConfig)
		})
	}
}

func TestConfig_DomainValues(t *testing.T) {
	cfg := Default()

	assert.Equal(t, thermistor.Params{RB: 10000, RT0: 10000, T0C: 25, Beta: 3600}, cfg.ThermistorParams())
	assert.Equal(t, pid.Gains{Kp: -1.1, Ki: -0.035, Kd: 0, Deadband: 0.075, IntegralBound: 250}, cfg.Gains())
	assert.Equal(t, pid.Mapping{VoltageLimit: 3.3, ResolutionBits: 16}, cfg.Mapping())
}

func TestLoad_BareIntegerDT(t *testing.T) {
	tmpfile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpfile.Name())

	_, err = tmpfile.WriteString("run:\n  dt: 1\n")
	require.NoError(t, err)
	require.NoError(t, tmpfile.Close())

	cfg, err := Load(tmpfile.Name())
	require.NoError(t, err)
	assert.Equal(t, time.Nanosecond, cfg.Run.DT)

	err = cfg.Validate()
	assert.ErrorIs(t, err, fault.ErrConfig)
	assert.Contains(t, err.Error(), "1s")
}
