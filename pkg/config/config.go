package config

import (
	"fmt"
	"os"
	"time"

	"github.com/stevensll/ee90/pkg/fault"
	"github.com/stevensll/ee90/pkg/pid"
	"github.com/stevensll/ee90/pkg/thermistor"
	"gopkg.in/yaml.v3"
)

// Run profiles.
const (
	ProfileConstant = "constant"
	ProfileStaged   = "staged"
	ProfileOnOff    = "onoff"
)

// Device backends.
const (
	BackendMock   = "mock"
	BackendSerial = "serial"
	BackendI2C    = "i2c"
	BackendSMBus  = "smbus"
)

// MinDT is the shortest tick period accepted.
const MinDT = time.Millisecond

// Config represents the application configuration.
type Config struct {
	Thermistor ThermistorConfig `yaml:"thermistor"`
	PID        PIDConfig        `yaml:"pid"`
	Actuator   ActuatorConfig   `yaml:"actuator"`
	Run        RunConfig        `yaml:"run"`
	Device     DeviceConfig     `yaml:"device"`
	Serial     SerialConfig     `yaml:"serial"`
	I2C        I2CConfig        `yaml:"i2c"`
	GPIO       GPIOConfig       `yaml:"gpio"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Output     OutputConfig     `yaml:"output"`
	Mock       MockConfig       `yaml:"mock"`
}

// ThermistorConfig contains the NTC thermistor and divider constants.
type ThermistorConfig struct {
	RB   float64 `yaml:"rb"`   // Series resistor (Ohm)
	RT0  float64 `yaml:"rt0"`  // Resistance at T0C (Ohm)
	T0C  float64 `yaml:"t0_c"` // Reference temperature (°C)
	Beta float64 `yaml:"beta"` // B25/B50
}

// PIDConfig contains the controller gains.
type PIDConfig struct {
	Kp            float64 `yaml:"kp"`
	Ki            float64 `yaml:"ki"`
	Kd            float64 `yaml:"kd"`
	Deadband      float64 `yaml:"deadband"`
	IntegralBound float64 `yaml:"integral_bound"`
}

// ActuatorConfig contains the DAC code mapping.
type ActuatorConfig struct {
	VoltageLimit   float64 `yaml:"voltage_limit"`   // Full-scale output (V)
	ResolutionBits int     `yaml:"resolution_bits"` // Code width
}

// RunConfig contains the run profile.
type RunConfig struct {
	Profile        string        `yaml:"profile"`         // constant, staged or onoff
	Setpoint       float64       `yaml:"setpoint"`        // K
	DT             time.Duration `yaml:"dt"`              // Tick period
	Duration       time.Duration `yaml:"duration"`        // Run length (per phase for onoff)
	AverageSamples int           `yaml:"average_samples"` // Reads averaged per tick (0 = disabled)
	Staged         StagedConfig  `yaml:"staged"`
}

// StagedConfig contains the two-plateau profile. Plateaus are fractions of
// the rise from the run setpoint to PeakTemp.
type StagedConfig struct {
	PeakTemp       float64       `yaml:"peak_temp"` // K
	FirstFraction  float64       `yaml:"first_fraction"`
	SecondFraction float64       `yaml:"second_fraction"`
	Duration       time.Duration `yaml:"duration"`
}

// DeviceConfig selects the hardware backend.
type DeviceConfig struct {
	Backend string `yaml:"backend"` // mock, serial, i2c or smbus
}

// SerialConfig contains the MCU bridge serial port configuration.
type SerialConfig struct {
	Port              string               `yaml:"port"`
	BaudRate          int                  `yaml:"baud_rate"`
	ADCBits           int                  `yaml:"adc_bits"`
	VRef              float64              `yaml:"vref"`
	ExcitationDivider VoltageDividerConfig `yaml:"excitation_divider"`
	ReadTimeout       time.Duration        `yaml:"read_timeout"`
}

// VoltageDividerConfig contains voltage divider configuration.
// R1 = 0 means the voltage is measured directly.
type VoltageDividerConfig struct {
	R1 float64 `yaml:"r1"`
	R2 float64 `yaml:"r2"`
}

// I2CConfig contains the ADS1015/MCP4728 bus configuration.
type I2CConfig struct {
	Bus               string `yaml:"bus"`        // Empty selects the first bus
	BusNumber         int    `yaml:"bus_number"` // /dev/i2c-N, smbus backend only
	ADCAddress        uint16 `yaml:"adc_address"`
	DACAddress        uint16 `yaml:"dac_address"`
	ExcitationChannel int    `yaml:"excitation_channel"` // ADC input with the divider excitation
	SenseChannel      int    `yaml:"sense_channel"`      // ADC input at the thermistor tap
	ControlChannel    int    `yaml:"control_channel"`    // DAC output driving the heater transistor
	SupplyChannel     int    `yaml:"supply_channel"`     // DAC output feeding the divider
}

// GPIOConfig contains the optional heater enable line.
type GPIOConfig struct {
	Chip       string `yaml:"chip"`
	EnableLine int    `yaml:"enable_line"` // -1 disables
	ActiveLow  bool   `yaml:"active_low"`
}

// MQTTConfig contains the telemetry broker. An empty broker disables it.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

// OutputConfig contains the CSV log location.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// MockConfig contains the simulated thermal plant.
type MockConfig struct {
	AmbientK     float64       `yaml:"ambient_k"`     // Plant temperature with the heater off
	MaxRiseK     float64       `yaml:"max_rise_k"`    // Steady-state rise at full heater drive
	TimeConstant time.Duration `yaml:"time_constant"` // First-order thermal lag
	NoiseLevel   float64       `yaml:"noise_level"`   // Sense noise (V)
	Excitation   float64       `yaml:"excitation"`    // Divider excitation (V)
}

// Default returns a default configuration with the lab bench values.
func Default() *Config {
	return &Config{
		Thermistor: ThermistorConfig{
			RB:   10000,
			RT0:  10000,
			T0C:  25,
			Beta: 3600,
		},
		PID: PIDConfig{
			Kp:            -1.1,
			Ki:            -0.035,
			Kd:            0,
			Deadband:      0.075,
			IntegralBound: 250,
		},
		Actuator: ActuatorConfig{
			VoltageLimit:   3.3, // measured 3.287
			ResolutionBits: 16,
		},
		Run: RunConfig{
			Profile:  ProfileConstant,
			Setpoint: 300,
			DT:       time.Second,
			Duration: 30 * time.Minute,
			Staged: StagedConfig{
				PeakTemp:       313.547,
				FirstFraction:  0.75,
				SecondFraction: 0.25,
				Duration:       120 * time.Minute,
			},
		},
		Device: DeviceConfig{
			Backend: BackendMock,
		},
		Serial: SerialConfig{
			Port:     "/dev/ttyACM0",
			BaudRate: 115200,
			ADCBits:  12,
			VRef:     3.3,
			ExcitationDivider: VoltageDividerConfig{
				R1: 10000,
				R2: 10000,
			},
			ReadTimeout: 2 * time.Second,
		},
		I2C: I2CConfig{
			BusNumber:         1,
			ADCAddress:        0x48,
			DACAddress:        0x60,
			ExcitationChannel: 0,
			SenseChannel:      1,
			ControlChannel:    0,
			SupplyChannel:     1,
		},
		GPIO: GPIOConfig{
			Chip:       "gpiochip0",
			EnableLine: -1,
		},
		MQTT: MQTTConfig{
			Topic:    "lab/thermal/pid",
			ClientID: "thermpid",
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Mock: MockConfig{
			AmbientK:     295,
			MaxRiseK:     25,
			TimeConstant: 2 * time.Minute,
			NoiseLevel:   0.0005,
			Excitation:   3.3,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks the configuration before any run starts.
func (c *Config) Validate() error {
	if err := c.ThermistorParams().Validate(); err != nil {
		return fmt.Errorf("thermistor: %w", err)
	}
	if err := c.Gains().Validate(); err != nil {
		return fmt.Errorf("pid: %w", err)
	}
	if err := c.Mapping().Validate(); err != nil {
		return fmt.Errorf("actuator: %w", err)
	}

	switch c.Run.Profile {
	case ProfileConstant, ProfileStaged, ProfileOnOff:
	default:
		return fmt.Errorf("%w: unknown run profile %q", fault.ErrConfig, c.Run.Profile)
	}
	// A bare YAML integer decodes as nanoseconds; durations need a unit ("1s").
	if c.Run.DT < MinDT {
		return fmt.Errorf("%w: run dt must be at least %v, got %v (use a unit, e.g. \"1s\")", fault.ErrConfig, MinDT, c.Run.DT)
	}
	duration := c.Run.Duration
	if c.Run.Profile == ProfileStaged {
		duration = c.Run.Staged.Duration
	}
	if duration < c.Run.DT {
		return fmt.Errorf("%w: run duration %v is shorter than dt %v", fault.ErrConfig, duration, c.Run.DT)
	}
	if c.Run.AverageSamples < 0 {
		return fmt.Errorf("%w: average_samples must not be negative", fault.ErrConfig)
	}

	switch c.Device.Backend {
	case BackendMock, BackendSerial, BackendI2C, BackendSMBus:
	default:
		return fmt.Errorf("%w: unknown device backend %q", fault.ErrConfig, c.Device.Backend)
	}

	return nil
}

// ThermistorParams returns the thermistor section as model parameters.
func (c *Config) ThermistorParams() thermistor.Params {
	return thermistor.Params{
		RB:   c.Thermistor.RB,
		RT0:  c.Thermistor.RT0,
		T0C:  c.Thermistor.T0C,
		Beta: c.Thermistor.Beta,
	}
}

// Gains returns the pid section as controller gains.
func (c *Config) Gains() pid.Gains {
	return pid.Gains{
		Kp:            c.PID.Kp,
		Ki:            c.PID.Ki,
		Kd:            c.PID.Kd,
		Deadband:      c.PID.Deadband,
		IntegralBound: c.PID.IntegralBound,
	}
}

// Mapping returns the actuator section as a code mapping.
func (c *Config) Mapping() pid.Mapping {
	return pid.Mapping{
		VoltageLimit:   c.Actuator.VoltageLimit,
		ResolutionBits: c.Actuator.ResolutionBits,
	}
}

// ensureDefaults ensures that all required fields have default values if missing.
// Gains are left alone: zero is a valid gain.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Thermistor.RB == 0 {
		c.Thermistor.RB = def.Thermistor.RB
	}
	if c.Thermistor.RT0 == 0 {
		c.Thermistor.RT0 = def.Thermistor.RT0
	}
	if c.Thermistor.Beta == 0 {
		c.Thermistor.Beta = def.Thermistor.Beta
	}

	if c.Actuator.VoltageLimit == 0 {
		c.Actuator.VoltageLimit = def.Actuator.VoltageLimit
	}
	if c.Actuator.ResolutionBits == 0 {
		c.Actuator.ResolutionBits = def.Actuator.ResolutionBits
	}

	if c.Run.Profile == "" {
		c.Run.Profile = def.Run.Profile
	}
	if c.Run.DT == 0 {
		c.Run.DT = def.Run.DT
	}
	if c.Run.Duration == 0 {
		c.Run.Duration = def.Run.Duration
	}
	if c.Run.Staged.Duration == 0 {
		c.Run.Staged.Duration = def.Run.Staged.Duration
	}

	if c.Device.Backend == "" {
		c.Device.Backend = def.Device.Backend
	}

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.ADCBits == 0 {
		c.Serial.ADCBits = def.Serial.ADCBits
	}
	if c.Serial.VRef == 0 {
		c.Serial.VRef = def.Serial.VRef
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}

	if c.I2C.ADCAddress == 0 {
		c.I2C.ADCAddress = def.I2C.ADCAddress
	}
	if c.I2C.DACAddress == 0 {
		c.I2C.DACAddress = def.I2C.DACAddress
	}

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = def.MQTT.Topic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}

	if c.Output.Dir == "" {
		c.Output.Dir = def.Output.Dir
	}

	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}
	if c.Mock.Excitation == 0 {
		c.Mock.Excitation = def.Mock.Excitation
	}
}
