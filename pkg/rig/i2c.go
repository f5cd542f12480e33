package rig

import (
	"fmt"
	"sync"
	"time"

	"github.com/stevensll/ee90/pkg/config"
	"github.com/stevensll/ee90/pkg/fault"
	"github.com/stevensll/ee90/pkg/sample"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

const (
	// MCP4728CodeBits is the MCP4728 DAC resolution.
	MCP4728CodeBits = 12
	mcp4728Channels = 4
	ads1015Channels = 4

	cmdMultiWrite byte = 0x40
)

// adcRange is the ADS1015 full scale; it must cover the 3.3 V excitation.
const adcRange = 4096 * physic.MilliVolt

var adsChannels = [ads1015Channels]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

// I2C drives the bench through an ADS1015 ADC and an MCP4728 quad DAC on
// the same bus.
type I2C struct {
	cfg      config.I2CConfig
	codeBits int

	mu        sync.Mutex
	bus       i2c.BusCloser
	dac       *i2c.Dev
	excPin    ads1x15.PinADC
	sensePin  ads1x15.PinADC
	connected bool
}

// NewI2C creates an I2C device. codeBits is the width of the codes the
// caller passes to WriteCode.
func NewI2C(cfg config.I2CConfig, codeBits int) *I2C {
	return &I2C{cfg: cfg, codeBits: codeBits}
}

// Connect opens the bus, configures both ADC inputs and parks the DAC:
// supply channel at full scale, control channel at full scale (heater off),
// spare channels at zero.
func (d *I2C) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}
	if err := checkBenchChannels(d.cfg); err != nil {
		return err
	}

	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to init periph host: %w", err)
	}

	bus, err := i2creg.Open(d.cfg.Bus)
	if err != nil {
		return fmt.Errorf("failed to open i2c bus %q: %w", d.cfg.Bus, err)
	}

	adc, err := ads1x15.NewADS1015(bus, &ads1x15.Opts{I2cAddress: d.cfg.ADCAddress})
	if err != nil {
		bus.Close()
		return fmt.Errorf("failed to open ADS1015 at 0x%02x: %w", d.cfg.ADCAddress, err)
	}

	excPin, err := adc.PinForChannel(adsChannels[d.cfg.ExcitationChannel], adcRange, 100*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		bus.Close()
		return fmt.Errorf("failed to configure excitation channel: %w", err)
	}
	sensePin, err := adc.PinForChannel(adsChannels[d.cfg.SenseChannel], adcRange, 100*physic.Hertz, ads1x15.BestQuality)
	if err != nil {
		bus.Close()
		return fmt.Errorf("failed to configure sense channel: %w", err)
	}

	dac := &i2c.Dev{Bus: bus, Addr: d.cfg.DACAddress}
	full := uint16(1<<MCP4728CodeBits - 1)
	for ch := 0; ch < mcp4728Channels; ch++ {
		var code uint16
		if ch == d.cfg.SupplyChannel || ch == d.cfg.ControlChannel {
			code = full
		}
		if err := dac.Tx(mcp4728Frame(ch, code), nil); err != nil {
			bus.Close()
			return fmt.Errorf("failed to initialise DAC channel %d: %w", ch, err)
		}
	}

	d.bus = bus
	d.dac = dac
	d.excPin = excPin
	d.sensePin = sensePin
	d.connected = true

	return nil
}

// Close turns the heater off and releases the bus.
func (d *I2C) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	var errs []error
	if err := d.dac.Tx(mcp4728Frame(d.cfg.ControlChannel, 1<<MCP4728CodeBits-1), nil); err != nil {
		errs = append(errs, fmt.Errorf("park control channel: %w", err))
	}
	for _, p := range []ads1x15.PinADC{d.excPin, d.sensePin} {
		if err := p.Halt(); err != nil {
			errs = append(errs, fmt.Errorf("halt adc pin: %w", err))
		}
	}
	if err := d.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	d.connected = false

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *I2C) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// ReadPair converts the excitation and sense inputs.
func (d *I2C) ReadPair() (sample.Pair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return sample.Pair{}, fmt.Errorf("%w: not connected", fault.ErrSensor)
	}

	exc, err := d.excPin.Read()
	if err != nil {
		return sample.Pair{}, fmt.Errorf("%w: read excitation: %v", fault.ErrSensor, err)
	}
	sense, err := d.sensePin.Read()
	if err != nil {
		return sample.Pair{}, fmt.Errorf("%w: read sense: %v", fault.ErrSensor, err)
	}

	return sample.Pair{
		Timestamp:  time.Now(),
		Excitation: volts(exc.V),
		Sense:      volts(sense.V),
	}, nil
}

// WriteCode sets the control channel.
func (d *I2C) WriteCode(code int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("%w: not connected", fault.ErrActuator)
	}
	maxCode := 1<<uint(d.codeBits) - 1
	if code < 0 || code > maxCode {
		return fmt.Errorf("%w: code %d outside [0, %d]", fault.ErrActuator, code, maxCode)
	}

	frame := mcp4728Frame(d.cfg.ControlChannel, uint16(scaleCode(code, d.codeBits, MCP4728CodeBits)))
	if err := d.dac.Tx(frame, nil); err != nil {
		return fmt.Errorf("%w: DAC write: %v", fault.ErrActuator, err)
	}
	return nil
}

// checkBenchChannels validates the ADC inputs and DAC outputs of the bench wiring.
func checkBenchChannels(cfg config.I2CConfig) error {
	adc := []struct {
		name string
		ch   int
	}{
		{"excitation", cfg.ExcitationChannel},
		{"sense", cfg.SenseChannel},
	}
	for _, c := range adc {
		if c.ch < 0 || c.ch >= ads1015Channels {
			return fmt.Errorf("%w: %s ADC channel %d out of range", fault.ErrConfig, c.name, c.ch)
		}
	}
	dac := []struct {
		name string
		ch   int
	}{
		{"control", cfg.ControlChannel},
		{"supply", cfg.SupplyChannel},
	}
	for _, c := range dac {
		if c.ch < 0 || c.ch >= mcp4728Channels {
			return fmt.Errorf("%w: %s DAC channel %d out of range", fault.ErrConfig, c.name, c.ch)
		}
	}
	if cfg.ControlChannel == cfg.SupplyChannel {
		return fmt.Errorf("%w: control and supply share DAC channel %d", fault.ErrConfig, cfg.ControlChannel)
	}
	return nil
}

// mcp4728Frame builds a multi-write frame for one channel: VDD reference,
// gain 1, normal power, UDAC low so the output updates immediately.
func mcp4728Frame(channel int, code uint16) []byte {
	code &= 1<<MCP4728CodeBits - 1
	return []byte{
		cmdMultiWrite | byte(channel&0x03)<<1,
		byte(code >> 8),
		byte(code),
	}
}

func volts(v physic.ElectricPotential) float64 {
	return float64(v) / float64(physic.Volt)
}
