package gpio

// FakeLine is a test double that records line states.
type FakeLine struct {
	// States contains every value passed to Set, in order.
	States []bool

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// Set records the state.
func (f *FakeLine) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.States = append(f.States, on)
	return nil
}

// On reports the last state set, false if none.
func (f *FakeLine) On() bool {
	if f.Closed || len(f.States) == 0 {
		return false
	}
	return f.States[len(f.States)-1]
}

// Close drives the line off and marks it closed.
func (f *FakeLine) Close() error {
	f.States = append(f.States, false)
	f.Closed = true
	return nil
}

var (
	_ Line = (*FakeLine)(nil)
	_ Line = (*RealLine)(nil)
)
