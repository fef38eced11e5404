package logic

// MaxPending bounds the candidate payload. A run of valid bits this long is
// handed to the decoder as a frame, which rejects it for its length.
const MaxPending = 8 * PayloadLen

// Machine assembles candidate payloads from a stream of edge durations.
// It is not safe for concurrent use.
type Machine struct {
	state   State
	payload Frame
}

// NewMachine creates a machine waiting for a sync pulse.
func NewMachine() *Machine {
	return &Machine{
		state:   StatePulseIdle,
		payload: make(Frame, 0, PayloadLen),
	}
}

// Feed advances the machine by one edge. wasHigh is the line level before
// the edge and d is how long that level lasted.
//
// Feed returns a copy of the candidate payload when an end-of-frame gap
// closes a non-empty payload or the payload reaches MaxPending, and nil
// otherwise. The internal payload is cleared whenever the machine returns
// to StatePulseIdle.
func (m *Machine) Feed(wasHigh bool, d Sample) Frame {
	switch m.state {
	case StatePulseIdle:
		// Only the falling edge ending a sync pulse starts a frame.
		if wasHigh && PulseWindow.Contains(d) {
			m.state = StatePreamble
		}

	case StatePreamble:
		if PreambleWindow.Contains(d) {
			m.state = StatePulse
		} else {
			m.discard()
		}

	case StatePulse:
		if PulseWindow.Contains(d) {
			m.state = StateData
		} else {
			m.discard()
		}

	case StateData:
		switch {
		case EndWindow.Contains(d):
			return m.emit()

		case DataWindow.Contains(d):
			m.payload = append(m.payload, d)
			if len(m.payload) >= MaxPending {
				return m.emit()
			}
			m.state = StatePulse

		default:
			m.discard()
		}
	}
	return nil
}

// State returns the current phase.
func (m *Machine) State() State {
	return m.state
}

// Pending returns the number of samples accumulated for the current frame.
func (m *Machine) Pending() int {
	return len(m.payload)
}

// Reset drops any partial frame and waits for a new sync pulse.
func (m *Machine) Reset() {
	m.discard()
}

// emit returns a copy of the payload, or nil if it is empty, and resets.
func (m *Machine) emit() Frame {
	var frame Frame
	if len(m.payload) > 0 {
		frame = make(Frame, len(m.payload))
		copy(frame, m.payload)
	}
	m.discard()
	return frame
}

func (m *Machine) discard() {
	m.payload = m.payload[:0]
	m.state = StatePulseIdle
}
