// Package gen synthesizes Nexus-TH transmissions for tests and simulation.
package gen

import (
	"github.com/sweeney/nexus-receiver/internal/gpio"
	"github.com/sweeney/nexus-receiver/internal/logic"
	"github.com/sweeney/nexus-receiver/internal/sampler"
)

// LeadIn is the idle low period before a transmission, in microseconds.
const LeadIn logic.Sample = 10000

// Edges returns the edges a receiver sees for one transmission of frame,
// starting from an idle low line: a sync pulse, the preamble gap, one
// pulse and gap per bit, and the terminating pulse and gap.
func Edges(frame logic.Frame) []sampler.Edge {
	edges := make([]sampler.Edge, 0, 2*len(frame)+6)
	rise := func(d logic.Sample) {
		edges = append(edges, sampler.Edge{Duration: d, Level: gpio.High, Prev: gpio.Low})
	}
	fall := func(d logic.Sample) {
		edges = append(edges, sampler.Edge{Duration: d, Level: gpio.Low, Prev: gpio.High})
	}

	rise(LeadIn)
	fall(logic.NominalPulse)
	rise(logic.NominalPreamble)
	for _, gap := range frame {
		fall(logic.NominalPulse)
		rise(gap)
	}
	fall(logic.NominalPulse)
	rise(logic.NominalEnd)
	return edges
}

// Transmission returns the edges for a sensor sending r.
func Transmission(r logic.Reading) []sampler.Edge {
	return Edges(logic.Encode(r))
}

// Join concatenates edge sequences. Where a sequence starts from a level
// the previous one did not end on, a pulse-length edge is inserted so the
// result still alternates.
func Join(parts ...[]sampler.Edge) []sampler.Edge {
	var out []sampler.Edge
	for _, p := range parts {
		if len(p) == 0 {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Level != p[0].Prev {
			out = append(out, sampler.Edge{Duration: logic.NominalPulse, Level: p[0].Prev, Prev: out[n-1].Level})
		}
		out = append(out, p...)
	}
	return out
}

// Train returns back-to-back transmissions of readings.
func Train(readings ...logic.Reading) []sampler.Edge {
	parts := make([][]sampler.Edge, len(readings))
	for i, r := range readings {
		parts[i] = Transmission(r)
	}
	return Join(parts...)
}

// Script converts edges into pin levels and counter values for
// gpio.FakePin and gpio.FakeCounter. Each edge is preceded by idle polls
// that see the previous level, so the sampler's busy-poll path is exercised.
// The sampler must start from edges[0].Prev.
func Script(edges []sampler.Edge, idle int) ([]gpio.Level, []uint64) {
	if len(edges) == 0 {
		return nil, nil
	}
	levels := make([]gpio.Level, 0, len(edges)*(idle+1)+1)
	counts := make([]uint64, 0, len(edges))
	for _, e := range edges {
		for i := 0; i < idle; i++ {
			levels = append(levels, e.Prev)
		}
		levels = append(levels, e.Level)
		counts = append(counts, uint64(e.Duration))
	}
	return levels, counts
}

// Source replays edges through the sampler.Source interface.
// Once exhausted, Poll reports no edge and Done is closed.
type Source struct {
	Edges []sampler.Edge
	index int
	done  chan struct{}
}

// NewSource creates a Source for edges.
func NewSource(edges []sampler.Edge) *Source {
	return &Source{Edges: edges, done: make(chan struct{})}
}

// Poll returns the next edge.
func (s *Source) Poll() (sampler.Edge, bool, error) {
	if s.index >= len(s.Edges) {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
		return sampler.Edge{}, false, nil
	}
	e := s.Edges[s.index]
	s.index++
	return e, true, nil
}

// Done is closed the first time Poll is called after the last edge, which
// means every edge has been fully handled by a single-threaded consumer.
func (s *Source) Done() <-chan struct{} {
	return s.done
}
