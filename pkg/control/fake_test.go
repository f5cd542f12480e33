package control

import (
	"time"

	"github.com/stevensll/ee90/pkg/sample"
	"github.com/stevensll/ee90/pkg/thermistor"
)

var labModel = thermistor.Params{RB: 10000, RT0: 10000, T0C: 25, Beta: 3600}

// fakeClock advances only when slept on.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	extra  time.Duration // added to every sleep to mimic per-tick work
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d + c.extra)
}

// fakeSampler returns the pair for a temperature produced by temps, and
// fails with failErr on call failAt (1-based, 0 disables).
type fakeSampler struct {
	temps   func(call int) float64
	failAt  int
	failErr error
	calls   int
}

func (s *fakeSampler) ReadPair() (sample.Pair, error) {
	s.calls++
	if s.failAt > 0 && s.calls == s.failAt {
		return sample.Pair{}, s.failErr
	}
	const vExc = 3.3
	return sample.Pair{Excitation: vExc, Sense: labModel.SenseVoltage(vExc, s.temps(s.calls))}, nil
}

func constantTemp(k float64) func(int) float64 {
	return func(int) float64 { return k }
}

// fakeActuator records written codes and fails with failErr on call failAt.
type fakeActuator struct {
	codes   []int
	failAt  int
	failErr error
	calls   int
}

func (a *fakeActuator) WriteCode(code int) error {
	a.calls++
	if a.failAt > 0 && a.calls == a.failAt {
		return a.failErr
	}
	a.codes = append(a.codes, code)
	return nil
}

// samplerFunc returns (excitation, sense) voltages.
type samplerFunc func() (float64, float64)

func (f samplerFunc) ReadPair() (sample.Pair, error) {
	exc, sense := f()
	return sample.Pair{Excitation: exc, Sense: sense}, nil
}

// stuckClock never advances.
type stuckClock struct{ now time.Time }

func (c *stuckClock) Now() time.Time      { return c.now }
func (c *stuckClock) Sleep(time.Duration) {}
