//go:build !linux

package rig

import (
	"errors"

	"github.com/stevensll/ee90/pkg/config"
	"github.com/stevensll/ee90/pkg/sample"
)

// SMBus is not available on non-Linux platforms.
type SMBus struct{}

// NewSMBus returns a device whose Connect always fails.
func NewSMBus(cfg config.I2CConfig, codeBits int) *SMBus {
	return &SMBus{}
}

// Connect returns an error on non-Linux platforms.
func (d *SMBus) Connect() error {
	return errors.New("smbus: not supported on this platform (requires Linux)")
}

// Close is a no-op on non-Linux platforms.
func (d *SMBus) Close() error { return nil }

// IsConnected always returns false.
func (d *SMBus) IsConnected() bool { return false }

// ReadPair is not implemented on non-Linux platforms.
func (d *SMBus) ReadPair() (sample.Pair, error) {
	return sample.Pair{}, errors.New("smbus: not supported")
}

// WriteCode is not implemented on non-Linux platforms.
func (d *SMBus) WriteCode(code int) error {
	return errors.New("smbus: not supported")
}
