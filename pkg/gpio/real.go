//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealLine drives an output line on actual hardware.
type RealLine struct {
	line   *gpiocdev.Line
	offset int
}

// NewRealLine requests offset on chip as an output, initially off.
func NewRealLine(chip string, offset int, activeLow bool) (*RealLine, error) {
	if chip == "" {
		chip = DefaultChip
	}

	opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := gpiocdev.RequestLine(chip, offset, opts...)
	if err != nil {
		return nil, fmt.Errorf("request line %s:%d: %w", chip, offset, err)
	}

	return &RealLine{line: line, offset: offset}, nil
}

// Set drives the line.
func (r *RealLine) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("set line %d: %w", r.offset, err)
	}
	return nil
}

// Close turns the line off, then returns it to an input so the heater
// stays off across restarts.
func (r *RealLine) Close() error {
	var errs []error

	if err := r.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear line %d: %w", r.offset, err))
	}
	if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure line %d: %w", r.offset, err))
	}
	if err := r.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close line %d: %w", r.offset, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
