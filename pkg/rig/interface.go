// Package rig talks to the thermal bench hardware: it samples the
// thermistor divider and drives the heater DAC. Serial talks to the MCU
// bridge firmware, I2C and SMBus to an ADS1015 ADC and MCP4728 DAC, and
// Mock simulates the plant.
package rig

import (
	"github.com/stevensll/ee90/pkg/sample"
)

// Device defines the interface for bench devices (real or mocked).
type Device interface {
	Connect() error
	Close() error
	IsConnected() bool
	ReadPair() (sample.Pair, error)
	WriteCode(code int) error
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)

// Ensure I2C implements Device.
var _ Device = (*I2C)(nil)

// Ensure SMBus implements Device.
var _ Device = (*SMBus)(nil)

// scaleCode rescales an actuator code between code widths.
func scaleCode(code, fromBits, toBits int) int {
	if fromBits > toBits {
		return code >> uint(fromBits-toBits)
	}
	return code << uint(toBits-fromBits)
}
