// Package gpio drives the heater enable line with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Line is a single output line.
type Line interface {
	// Set drives the line to its logical state. Polarity is handled by
	// the implementation.
	Set(on bool) error

	// Close drives the line off and releases it.
	Close() error
}

// DefaultChip is the Raspberry Pi GPIO controller.
const DefaultChip = "gpiochip0"
