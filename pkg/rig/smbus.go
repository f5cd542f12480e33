//go:build linux

package rig

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-daq/smbus"
	"github.com/stevensll/ee90/pkg/config"
	"github.com/stevensll/ee90/pkg/fault"
	"github.com/stevensll/ee90/pkg/sample"
)

// SMBus drives the same ADS1015/MCP4728 pair as I2C through the kernel
// SMBus interface (/dev/i2c-N) instead of periph host drivers.
type SMBus struct {
	cfg      config.I2CConfig
	codeBits int

	mu        sync.Mutex
	conn      *smbus.Conn
	connected bool
}

// NewSMBus creates an SMBus device. codeBits is the width of the codes the
// caller passes to WriteCode.
func NewSMBus(cfg config.I2CConfig, codeBits int) *SMBus {
	return &SMBus{cfg: cfg, codeBits: codeBits}
}

// Connect opens the bus and parks the DAC the same way I2C does.
func (d *SMBus) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}
	if err := checkBenchChannels(d.cfg); err != nil {
		return err
	}

	conn, err := smbus.OpenFile(d.cfg.BusNumber)
	if err != nil {
		return fmt.Errorf("failed to open /dev/i2c-%d: %w", d.cfg.BusNumber, err)
	}

	full := uint16(1<<MCP4728CodeBits - 1)
	for ch := 0; ch < mcp4728Channels; ch++ {
		var code uint16
		if ch == d.cfg.SupplyChannel || ch == d.cfg.ControlChannel {
			code = full
		}
		if err := d.writeDAC(conn, ch, code); err != nil {
			conn.Close()
			return fmt.Errorf("failed to initialise DAC channel %d: %w", ch, err)
		}
	}

	d.conn = conn
	d.connected = true
	return nil
}

// Close turns the heater off and releases the bus.
func (d *SMBus) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	var errs []error
	if err := d.writeDAC(d.conn, d.cfg.ControlChannel, 1<<MCP4728CodeBits-1); err != nil {
		errs = append(errs, fmt.Errorf("park control channel: %w", err))
	}
	if err := d.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close bus: %w", err))
	}
	d.conn = nil
	d.connected = false

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *SMBus) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// ReadPair runs one single-shot conversion per input.
func (d *SMBus) ReadPair() (sample.Pair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return sample.Pair{}, fmt.Errorf("%w: not connected", fault.ErrSensor)
	}

	exc, err := d.convert(d.cfg.ExcitationChannel)
	if err != nil {
		return sample.Pair{}, fmt.Errorf("%w: read excitation: %v", fault.ErrSensor, err)
	}
	sense, err := d.convert(d.cfg.SenseChannel)
	if err != nil {
		return sample.Pair{}, fmt.Errorf("%w: read sense: %v", fault.ErrSensor, err)
	}

	return sample.Pair{
		Timestamp:  time.Now(),
		Excitation: exc,
		Sense:      sense,
	}, nil
}

// WriteCode sets the control channel.
func (d *SMBus) WriteCode(code int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return fmt.Errorf("%w: not connected", fault.ErrActuator)
	}
	maxCode := 1<<uint(d.codeBits) - 1
	if code < 0 || code > maxCode {
		return fmt.Errorf("%w: code %d outside [0, %d]", fault.ErrActuator, code, maxCode)
	}

	if err := d.writeDAC(d.conn, d.cfg.ControlChannel, uint16(scaleCode(code, d.codeBits, MCP4728CodeBits))); err != nil {
		return fmt.Errorf("%w: DAC write: %v", fault.ErrActuator, err)
	}
	return nil
}

func (d *SMBus) convert(channel int) (float64, error) {
	addr := uint8(d.cfg.ADCAddress)
	if err := d.conn.WriteBlockData(addr, ads1015RegConfig, ads1015Config(channel)); err != nil {
		return 0, err
	}

	var buf [2]byte
	for attempt := 0; ; attempt++ {
		time.Sleep(ads1015ConvTime)
		if err := d.conn.ReadBlockData(addr, ads1015RegConfig, buf[:]); err != nil {
			return 0, err
		}
		if ads1015Ready(buf[:]) {
			break
		}
		if attempt == 4 {
			return 0, fmt.Errorf("conversion on channel %d did not finish", channel)
		}
	}

	if err := d.conn.ReadBlockData(addr, ads1015RegConversion, buf[:]); err != nil {
		return 0, err
	}
	return ads1015Volts(buf[:]), nil
}

// writeDAC sends a multi-write frame: the command byte goes out as the
// SMBus register, the code bytes as an I2C block.
func (d *SMBus) writeDAC(conn *smbus.Conn, channel int, code uint16) error {
	frame := mcp4728Frame(channel, code)
	return conn.WriteBlockData(uint8(d.cfg.DACAddress), frame[0], frame[1:])
}
