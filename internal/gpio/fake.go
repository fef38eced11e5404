package gpio

import "errors"

// FakePin is a test double that returns scripted line levels.
type FakePin struct {
	// Levels contains scripted values to return.
	// Each call to Level() consumes the next value.
	Levels []Level

	// index tracks current position in Levels
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Level()
	ReadError error
}

// NewFakePin creates a FakePin with the given levels.
func NewFakePin(levels []Level) *FakePin {
	return &FakePin{Levels: levels}
}

// Level returns the next scripted level.
// If levels are exhausted, returns the last level repeatedly.
func (f *FakePin) Level() (Level, error) {
	if f.ReadError != nil {
		return Low, f.ReadError
	}

	if len(f.Levels) == 0 {
		return Low, errors.New("no levels configured")
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}

	return level, nil
}

// Close marks the pin as closed.
func (f *FakePin) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the pin to the first level.
func (f *FakePin) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeCounter is a test double that returns scripted counts.
type FakeCounter struct {
	// Counts contains scripted values returned by Count, one per call.
	// Once exhausted, Count returns 0.
	Counts []uint64

	index int

	// Reads and Resets record how often each method was called.
	Reads  int
	Resets int
}

// NewFakeCounter creates a FakeCounter with the given counts.
func NewFakeCounter(counts []uint64) *FakeCounter {
	return &FakeCounter{Counts: counts}
}

// Count returns the next scripted count.
func (f *FakeCounter) Count() uint64 {
	f.Reads++
	if f.index >= len(f.Counts) {
		return 0
	}
	c := f.Counts[f.index]
	f.index++
	return c
}

// Reset records the call.
func (f *FakeCounter) Reset() {
	f.Resets++
}

// FakeTransitions is a scripted source of kernel edge events.
type FakeTransitions struct {
	Events []Transition
	index  int
}

// Next returns the next scripted transition, or false once exhausted.
func (f *FakeTransitions) Next() (Transition, bool) {
	if f.index >= len(f.Events) {
		return Transition{}, false
	}
	t := f.Events[f.index]
	f.index++
	return t, true
}
