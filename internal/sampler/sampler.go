// Package sampler turns GPIO activity into a stream of timed edges.
package sampler

import (
	"fmt"
	"time"

	"github.com/sweeney/nexus-receiver/internal/gpio"
	"github.com/sweeney/nexus-receiver/internal/logic"
)

// Edge is a single level change and how long the previous level lasted.
type Edge struct {
	Duration logic.Sample // microseconds since the previous edge
	Level    gpio.Level   // level after the edge
	Prev     gpio.Level   // level before the edge
}

// Falling reports whether the edge ends a high period.
func (e Edge) Falling() bool {
	return e.Prev == gpio.High
}

// Source produces edges without blocking.
type Source interface {
	// Poll returns the next edge if one is available.
	// ok is false when the level has not changed.
	Poll() (edge Edge, ok bool, err error)
}

// Sampler detects edges by polling a pin and times them with a counter.
// It is not safe for concurrent use.
type Sampler struct {
	pin     gpio.Pin
	counter gpio.Counter
	prev    gpio.Level
}

// New creates a Sampler. initial is the level assumed before the first poll.
// The counter is reset so the first edge is timed from now.
func New(pin gpio.Pin, counter gpio.Counter, initial gpio.Level) *Sampler {
	counter.Reset()
	return &Sampler{
		pin:     pin,
		counter: counter,
		prev:    initial,
	}
}

// Poll reads the pin once. On a level change it reads and resets the
// counter and returns the edge.
func (s *Sampler) Poll() (Edge, bool, error) {
	level, err := s.pin.Level()
	if err != nil {
		return Edge{}, false, fmt.Errorf("poll pin: %w", err)
	}
	if level == s.prev {
		return Edge{}, false, nil
	}

	// Reset immediately after the read so the next interval loses at most
	// one loop iteration.
	count := s.counter.Count()
	s.counter.Reset()

	edge := Edge{
		Duration: logic.Sample(count),
		Level:    level,
		Prev:     s.prev,
	}
	s.prev = level
	return edge, true, nil
}

// Transitions is a non-blocking source of timestamped level changes,
// implemented by gpio.EdgeWatcher.
type Transitions interface {
	Next() (gpio.Transition, bool)
}

// EventSampler converts kernel edge events into edges. Durations come from
// the kernel timestamps rather than from when the events are consumed.
type EventSampler struct {
	src  Transitions
	prev gpio.Level
	last time.Duration
}

// NewEventSampler creates an EventSampler. initial is the level assumed
// before the first event.
func NewEventSampler(src Transitions, initial gpio.Level) *EventSampler {
	return &EventSampler{src: src, prev: initial}
}

// Poll returns the next queued event as an edge.
// An event that repeats the current level means an edge was lost; it
// restarts timing without producing an edge.
func (s *EventSampler) Poll() (Edge, bool, error) {
	t, ok := s.src.Next()
	if !ok {
		return Edge{}, false, nil
	}

	elapsed := t.Timestamp - s.last
	s.last = t.Timestamp
	if elapsed < 0 {
		elapsed = 0
	}

	if t.Level == s.prev {
		return Edge{}, false, nil
	}

	edge := Edge{
		Duration: logic.Sample(elapsed / time.Microsecond),
		Level:    t.Level,
		Prev:     s.prev,
	}
	s.prev = t.Level
	return edge, true, nil
}
