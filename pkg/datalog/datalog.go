// Package datalog records the per-tick run log: CSV files for offline
// plotting and MQTT telemetry for live monitoring.
package datalog

import (
	"errors"
	"fmt"

	"github.com/stevensll/ee90/pkg/control"
)

// Sink consumes run records.
type Sink interface {
	Write(rec control.Record) error
	Close() error
}

// Multi fans records out to every sink. A failing sink does not stop the
// others; their errors are joined.
type Multi []Sink

// Write hands rec to every sink.
func (m Multi) Write(rec control.Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}
	return errors.Join(errs...)
}
