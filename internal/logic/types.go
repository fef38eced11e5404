// Package logic contains the pure protocol logic for Nexus-TH sensor frames.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Sample is the number of microseconds between two consecutive level transitions.
type Sample uint64

// Frame is an ordered sequence of gap samples, one per data bit.
type Frame []Sample

// Window is a closed interval of sample durations.
type Window struct {
	Min Sample
	Max Sample
}

// Contains reports whether s lies in [Min, Max].
func (w Window) Contains(s Sample) bool {
	return s >= w.Min && s <= w.Max
}

// Timing windows in microseconds.
var (
	PulseWindow    = Window{Min: 300, Max: 600}   // sync and bit-start pulse
	PreambleWindow = Window{Min: 2000, Max: 8000} // gap after the leading sync pulse
	EndWindow      = Window{Min: 3000, Max: 8000} // gap terminating the frame
	OneWindow      = Window{Min: 1650, Max: 2150}
	ZeroWindow     = Window{Min: 800, Max: 1100}

	// DataWindow is the range of gaps accepted into a candidate payload.
	DataWindow = Window{Min: ZeroWindow.Min, Max: OneWindow.Max}
)

const (
	// PayloadLen is the number of data bits in a Nexus-TH frame.
	PayloadLen = 36

	// Model identifies the protocol in published records.
	Model = "Nexus-TH"

	// TimeLayout is the layout of the record's time field.
	TimeLayout = "2006-01-02 15:04:05 UTC"
)

// State is the phase of the frame state machine.
type State int

const (
	// StatePulseIdle waits for the leading sync pulse.
	StatePulseIdle State = iota
	// StatePreamble waits for the long gap after the sync pulse.
	StatePreamble
	// StatePulse waits for the pulse starting the next bit.
	StatePulse
	// StateData classifies the gap after a bit-start pulse.
	StateData
)

func (s State) String() string {
	switch s {
	case StatePulseIdle:
		return "PULSE_IDLE"
	case StatePreamble:
		return "PREAMBLE"
	case StatePulse:
		return "PULSE"
	case StateData:
		return "DATA"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Reading is a successfully decoded sensor frame.
type Reading struct {
	Time       time.Time
	ID         uint8
	Channel    uint8 // 1-based
	BatteryOK  bool
	TempTenths int   // tenths of a degree Celsius
	Humidity   uint8 // percent, at most 100
}
