package rig

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stevensll/ee90/pkg/config"
	"github.com/stevensll/ee90/pkg/fault"
	"github.com/stevensll/ee90/pkg/sample"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the standard baud rate for the XIAO SAMD21 bridge.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the samples channel buffer.
	DefaultBufferSize = 100
	// BridgeCodeBits is the DAC code width of the bridge command protocol.
	BridgeCodeBits = 16
)

// RawSample represents a raw measurement line from the MCU.
type RawSample struct {
	Timestamp  time.Time
	Excitation uint16 // ADC counts at the divider excitation (after the excitation divider)
	Sense      uint16 // ADC counts at the thermistor tap
	Code       uint16 // DAC code currently applied by the bridge
}

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial represents a connection to the MCU bridge.
type Serial struct {
	cfg      config.SerialConfig
	codeBits int

	conn      serial.Port
	samples   chan RawSample
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Serial device. codeBits is the width of the codes the
// caller passes to WriteCode.
func New(cfg config.SerialConfig, codeBits int) *Serial {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ADCBits == 0 {
		cfg.ADCBits = 12
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		cfg:       cfg,
		codeBits:  codeBits,
		samples:   make(chan RawSample, DefaultBufferSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: false,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect connects to the serial port and starts reading samples.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return fmt.Errorf("already connected")
	}

	mode := &serial.Mode{
		BaudRate: d.cfg.BaudRate,
	}

	port, err := serial.Open(d.cfg.Port, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.cfg.Port, err)
	}

	d.conn = port
	d.connected = true

	// Start reading samples in a goroutine
	go d.readSamples()

	return nil
}

// Close closes the connection and stops reading samples.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	// Cancel context to stop reading goroutine
	d.cancel()

	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Printf("Error closing serial port: %v", err)
		}
		d.conn = nil
	}

	d.connected = false

	close(d.samples)

	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// ReadPair returns the most recent reading streamed by the bridge. It waits
// up to the configured read timeout when nothing is buffered.
func (d *Serial) ReadPair() (sample.Pair, error) {
	if !d.IsConnected() {
		return sample.Pair{}, fmt.Errorf("%w: not connected", fault.ErrSensor)
	}

	var raw RawSample
	var ok bool
	select {
	case raw, ok = <-d.samples:
		if !ok {
			return sample.Pair{}, fmt.Errorf("%w: sample stream closed", fault.ErrSensor)
		}
	case <-time.After(d.cfg.ReadTimeout):
		return sample.Pair{}, fmt.Errorf("%w: no sample from %s within %v", fault.ErrSensor, d.cfg.Port, d.cfg.ReadTimeout)
	}

	// Skip to the freshest buffered sample.
drain:
	for {
		select {
		case next, more := <-d.samples:
			if !more {
				break drain
			}
			raw = next
		default:
			break drain
		}
	}

	return d.convert(raw), nil
}

// WriteCode sends a DAC command to the bridge.
func (d *Serial) WriteCode(code int) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return fmt.Errorf("%w: not connected", fault.ErrActuator)
	}

	cmd, err := formatCommand(code, d.codeBits)
	if err != nil {
		return err
	}

	if _, err := d.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("%w: failed to send DAC command: %v", fault.ErrActuator, err)
	}

	return nil
}

// convert turns raw counts into divider voltages.
func (d *Serial) convert(raw RawSample) sample.Pair {
	exc := sample.ADCToVoltage(raw.Excitation, d.cfg.ADCBits, d.cfg.VRef)
	return sample.Pair{
		Timestamp:  raw.Timestamp,
		Excitation: sample.VoltageDivider(exc, d.cfg.ExcitationDivider.R1, d.cfg.ExcitationDivider.R2),
		Sense:      sample.ADCToVoltage(raw.Sense, d.cfg.ADCBits, d.cfg.VRef),
	}
}

// readSamples reads lines from the serial port and parses them into RawSample.
func (d *Serial) readSamples() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in readSamples: %v", r)
		}
	}()

	scanner := bufio.NewScanner(d.conn)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil {
					if err != io.EOF {
						log.Printf("Error reading from serial port: %v", err)
					}
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			raw, err := parseLine(line, d.cfg.ADCBits)
			if err != nil {
				log.Printf("Failed to parse line '%s': %v", line, err)
				continue
			}

			select {
			case d.samples <- raw:
			case <-d.ctx.Done():
				return
			default:
				// Channel full: ReadPair drains to the newest anyway.
				log.Printf("Samples channel full, dropping sample")
			}
		}
	}
}

// parseLine parses a line from the MCU into a RawSample.
// Format: unix_micros,excitation,sense,code
// Example: 1234567890123,2048,1024,65535
func parseLine(line string, adcBits int) (RawSample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return RawSample{}, fmt.Errorf("invalid line format: expected 4 comma-separated values, got %d", len(parts))
	}

	timestampMicros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid timestamp: %w", err)
	}
	timestamp := time.Unix(0, timestampMicros*1000)

	maxCounts := uint64(1)<<uint(adcBits) - 1

	excitation, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid excitation: %w", err)
	}
	if excitation > maxCounts {
		return RawSample{}, fmt.Errorf("excitation out of range: %d (max %d)", excitation, maxCounts)
	}

	sense, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid sense: %w", err)
	}
	if sense > maxCounts {
		return RawSample{}, fmt.Errorf("sense out of range: %d (max %d)", sense, maxCounts)
	}

	code, err := strconv.ParseUint(parts[3], 10, 16)
	if err != nil {
		return RawSample{}, fmt.Errorf("invalid code: %w", err)
	}

	return RawSample{
		Timestamp:  timestamp,
		Excitation: uint16(excitation),
		Sense:      uint16(sense),
		Code:       uint16(code),
	}, nil
}

// formatCommand builds the bridge DAC command: "D<code>\n" with the code
// rescaled to BridgeCodeBits.
func formatCommand(code, codeBits int) (string, error) {
	maxCode := 1<<uint(codeBits) - 1
	if code < 0 || code > maxCode {
		return "", fmt.Errorf("%w: code %d outside [0, %d]", fault.ErrActuator, code, maxCode)
	}
	return "D" + strconv.Itoa(scaleCode(code, codeBits, BridgeCodeBits)) + "\n", nil
}
