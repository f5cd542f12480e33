package sample

import "fmt"

// Averager wraps a Sampler and averages N consecutive pairs into one.
// This reduces ADC noise at the cost of N reads per tick.
type Averager struct {
	src Sampler
	n   int
}

var _ Sampler = (*Averager)(nil)

// NewAverager returns a Sampler averaging n reads of src. n <= 1 disables
// averaging.
func NewAverager(src Sampler, n int) *Averager {
	if n <= 0 {
		n = 1 // No averaging if invalid
	}
	return &Averager{src: src, n: n}
}

// ReadPair reads N pairs and returns their mean, stamped with the most
// recent reading's timestamp. The first failing read aborts the average.
func (a *Averager) ReadPair() (Pair, error) {
	if a.n == 1 {
		return a.src.ReadPair()
	}

	var sumExc, sumSense float64
	var last Pair
	for i := 0; i < a.n; i++ {
		p, err := a.src.ReadPair()
		if err != nil {
			return Pair{}, fmt.Errorf("averaging read %d/%d: %w", i+1, a.n, err)
		}
		sumExc += p.Excitation
		sumSense += p.Sense
		last = p
	}

	n := float64(a.n)
	return Pair{
		Timestamp:  last.Timestamp,
		Excitation: sumExc / n,
		Sense:      sumSense / n,
	}, nil
}
