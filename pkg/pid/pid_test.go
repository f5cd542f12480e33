package pid

import (
	"math"
	"testing"

	"github.com/stevensll/ee90/pkg/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGains(t *testing.T) {
	tests := []struct {
		name    string
		g       Gains
		wantErr bool
	}{
		{name: "lab gains", g: Gains{Kp: -1.1, Ki: -0.035, Kd: 0, Deadband: 0.075, IntegralBound: 250}},
		{name: "zero deadband", g: Gains{Kp: 1, Deadband: 0, IntegralBound: 1}},
		{name: "negative deadband", g: Gains{Kp: 1, Deadband: -0.1, IntegralBound: 1}, wantErr: true},
		{name: "zero integral bound", g: Gains{Kp: 1, IntegralBound: 0}, wantErr: true},
		{name: "negative integral bound", g: Gains{Kp: 1, IntegralBound: -5}, wantErr: true},
		{name: "NaN gain", g: Gains{Kp: math.NaN(), IntegralBound: 1}, wantErr: true},
		{name: "infinite kd", g: Gains{Kd: math.Inf(-1), IntegralBound: 1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGains(tt.g.Kp, tt.g.Ki, tt.g.Kd, tt.g.Deadband, tt.g.IntegralBound)
			if tt.wantErr {
				assert.ErrorIs(t, err, fault.ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.g, g)
		})
	}
}

func TestStep_Deadband(t *testing.T) {
	g := Gains{Kp: 1, Ki: 0, Kd: 0, Deadband: 1.0, IntegralBound: 100}

	control, next, err := Step(100, 100.5, 1, g, State{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, control)
	assert.Equal(t, 0.0, next.PreviousError)
	assert.Equal(t, 0.0, next.Integral)
}

func TestStep_DeadbandEdgeIsNotZeroed(t *testing.T) {
	g := Gains{Kp: 1, Deadband: 0.5, IntegralBound: 100}

	control, next, err := Step(10, 9.5, 1, g, State{})
	require.NoError(t, err)
	assert.Equal(t, 0.5, control)
	assert.Equal(t, 0.5, next.PreviousError)
}

func TestStep_Terms(t *testing.T) {
	g := Gains{Kp: 2, Ki: 0.5, Kd: 3, IntegralBound: 1000}
	s := State{PreviousError: 1, Integral: 4}

	// error=5, integral=4+5*0.5=6.5, derivative=(5-1)/0.5=8
	control, next, err := Step(15, 10, 0.5, g, s)
	require.NoError(t, err)
	assert.InDelta(t, 2*5+0.5*6.5+3*8, control, 1e-12)
	assert.Equal(t, 5.0, next.PreviousError)
	assert.Equal(t, 6.5, next.Integral)
}

func TestStep_DerivativeUsesDeadbandedPreviousError(t *testing.T) {
	g := Gains{Kd: 1, Deadband: 0.1, IntegralBound: 100}

	_, s, err := Step(300, 299.95, 1, g, State{})
	require.NoError(t, err)
	require.Equal(t, 0.0, s.PreviousError)

	control, _, err := Step(300, 299, 1, g, s)
	require.NoError(t, err)
	assert.Equal(t, 1.0, control)
}

func TestStep_IntegralPlateaus(t *testing.T) {
	g := Gains{Ki: 1, IntegralBound: 10}

	tests := []struct {
		name     string
		setpoint float64
		want     float64
	}{
		{name: "positive error", setpoint: 50, want: 10},
		{name: "negative error", setpoint: -50, want: -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s State
			var err error
			for i := 0; i < 50; i++ {
				_, s, err = Step(tt.setpoint, 0, 1, g, s)
				require.NoError(t, err)
				require.LessOrEqual(t, math.Abs(s.Integral), g.IntegralBound)
			}
			assert.Equal(t, tt.want, s.Integral)
		})
	}
}

func TestStep_ControlUsesUnclampedIntegral(t *testing.T) {
	g := Gains{Ki: 1, IntegralBound: 10}
	s := State{PreviousError: 20, Integral: 10}

	control, next, err := Step(20, 0, 1, g, s)
	require.NoError(t, err)
	assert.Equal(t, 30.0, control, "output must see the pre-clamp integral")
	assert.Equal(t, 10.0, next.Integral)
}

func TestStep_TimingFault(t *testing.T) {
	g := Gains{Kp: 1, IntegralBound: 1}
	s := State{PreviousError: 3, Integral: 0.5}

	for _, dt := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, next, err := Step(1, 0, dt, g, s)
		assert.ErrorIs(t, err, fault.ErrTiming, "dt=%v", dt)
		assert.Equal(t, s, next, "state must be unchanged on a timing fault")
	}
}

func TestStep_LabSteadyState(t *testing.T) {
	g := Gains{Kp: -1.1, Ki: -0.035, Kd: 0, Deadband: 0.075, IntegralBound: 250}

	var s State
	for i := 0; i < 100; i++ {
		control, next, err := Step(300, 300, 1, g, s)
		require.NoError(t, err)
		assert.Equal(t, 0.0, control)
		s = next
	}
	assert.Equal(t, State{}, s)
}
