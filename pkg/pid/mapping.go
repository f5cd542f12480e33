package pid

import (
	"fmt"
	"math"

	"github.com/stevensll/ee90/pkg/fault"
)

// MaxResolutionBits is the widest actuator code supported.
const MaxResolutionBits = 32

// Mapping converts a control voltage into an actuator code.
type Mapping struct {
	VoltageLimit   float64 // Full-scale actuator voltage (V)
	ResolutionBits int     // Code width
}

// NewMapping validates and returns a Mapping.
func NewMapping(voltageLimit float64, resolutionBits int) (Mapping, error) {
	m := Mapping{VoltageLimit: voltageLimit, ResolutionBits: resolutionBits}
	if err := m.Validate(); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// Validate checks VoltageLimit > 0 and 1 <= ResolutionBits <= MaxResolutionBits.
func (m Mapping) Validate() error {
	if !(m.VoltageLimit > 0) || math.IsInf(m.VoltageLimit, 0) {
		return fmt.Errorf("%w: voltage limit must be positive, got %v", fault.ErrConfig, m.VoltageLimit)
	}
	if m.ResolutionBits < 1 || m.ResolutionBits > MaxResolutionBits {
		return fmt.Errorf("%w: resolution must be 1..%d bits, got %d", fault.ErrConfig, MaxResolutionBits, m.ResolutionBits)
	}
	return nil
}

// MaxCode returns 2^ResolutionBits - 1.
func (m Mapping) MaxCode() int {
	return int(uint64(1)<<uint(m.ResolutionBits) - 1)
}

// Code maps a control voltage onto [0, MaxCode] as
// floor(control * MaxCode / VoltageLimit). Out of range commands saturate;
// they are expected around setpoint transients. VoltageLimit itself always
// maps to MaxCode.
func (m Mapping) Code(control float64) int {
	maxCode := m.MaxCode()
	if math.IsNaN(control) {
		return 0
	}
	if control >= m.VoltageLimit {
		return maxCode
	}
	ideal := math.Floor(control * float64(maxCode) / m.VoltageLimit)
	if ideal >= float64(maxCode) {
		return maxCode
	}
	if ideal <= 0 {
		return 0
	}
	return int(ideal)
}

// Voltage returns the nominal output voltage for code.
func (m Mapping) Voltage(code int) float64 {
	return float64(code) * m.VoltageLimit / float64(m.MaxCode())
}
