package sampler

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/nexus-receiver/internal/gpio"
	"github.com/sweeney/nexus-receiver/internal/logic"
)

func TestSamplerNoEdgeWhenUnchanged(t *testing.T) {
	pin := gpio.NewFakePin([]gpio.Level{gpio.High, gpio.High, gpio.High})
	counter := gpio.NewFakeCounter([]uint64{123})
	s := New(pin, counter, gpio.High)

	for i := 0; i < 3; i++ {
		_, ok, err := s.Poll()
		if err != nil {
			t.Fatalf("poll %d: unexpected error: %v", i, err)
		}
		if ok {
			t.Fatalf("poll %d: unexpected edge", i)
		}
	}
	if counter.Reads != 0 {
		t.Errorf("counter read %d times without an edge", counter.Reads)
	}
}

func TestSamplerEmitsEdges(t *testing.T) {
	levels := []gpio.Level{gpio.High, gpio.High, gpio.Low, gpio.Low, gpio.Low, gpio.High}
	pin := gpio.NewFakePin(levels)
	counter := gpio.NewFakeCounter([]uint64{9000, 500, 4000})
	s := New(pin, counter, gpio.Low)

	var edges []Edge
	for range levels {
		e, ok, err := s.Poll()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			edges = append(edges, e)
		}
	}

	want := []Edge{
		{Duration: 9000, Level: gpio.High, Prev: gpio.Low},
		{Duration: 500, Level: gpio.Low, Prev: gpio.High},
		{Duration: 4000, Level: gpio.High, Prev: gpio.Low},
	}
	if len(edges) != len(want) {
		t.Fatalf("expected %d edges, got %d: %+v", len(want), len(edges), edges)
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("edge %d: got %+v, want %+v", i, edges[i], want[i])
		}
	}

	// One reset at construction plus one per edge.
	if counter.Resets != 1+len(want) {
		t.Errorf("Resets: got %d, want %d", counter.Resets, 1+len(want))
	}
	if !edges[1].Falling() || edges[0].Falling() {
		t.Error("Falling() misclassified edges")
	}
}

func TestSamplerPinError(t *testing.T) {
	pin := gpio.NewFakePin([]gpio.Level{gpio.Low})
	pin.ReadError = errors.New("line gone")
	s := New(pin, gpio.NewFakeCounter(nil), gpio.High)

	_, ok, err := s.Poll()
	if err == nil {
		t.Fatal("expected error")
	}
	if ok {
		t.Error("no edge expected on error")
	}
	if !errors.Is(err, pin.ReadError) {
		t.Errorf("error should wrap the pin error: %v", err)
	}
}

func TestEventSampler(t *testing.T) {
	ms := time.Millisecond
	us := time.Microsecond
	src := &gpio.FakeTransitions{Events: []gpio.Transition{
		{Level: gpio.High, Timestamp: 10 * ms},
		{Level: gpio.Low, Timestamp: 10*ms + 500*us},
		{Level: gpio.High, Timestamp: 14*ms + 500*us},
		{Level: gpio.High, Timestamp: 15 * ms}, // lost falling edge
		{Level: gpio.Low, Timestamp: 15*ms + 450*us},
	}}
	s := NewEventSampler(src, gpio.Low)

	var edges []Edge
	for range src.Events {
		e, ok, err := s.Poll()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			edges = append(edges, e)
		}
	}

	want := []Edge{
		{Duration: 10000, Level: gpio.High, Prev: gpio.Low},
		{Duration: 500, Level: gpio.Low, Prev: gpio.High},
		{Duration: 4000, Level: gpio.High, Prev: gpio.Low},
		{Duration: 450, Level: gpio.Low, Prev: gpio.High},
	}
	if len(edges) != len(want) {
		t.Fatalf("expected %d edges, got %d: %+v", len(want), len(edges), edges)
	}
	for i := range want {
		if edges[i] != want[i] {
			t.Errorf("edge %d: got %+v, want %+v", i, edges[i], want[i])
		}
	}
}

func TestEventSamplerEmpty(t *testing.T) {
	s := NewEventSampler(&gpio.FakeTransitions{}, gpio.High)
	if _, ok, err := s.Poll(); ok || err != nil {
		t.Errorf("expected no edge, got ok=%v err=%v", ok, err)
	}
}

func TestSamplerDrivesMachine(t *testing.T) {
	// Sync pulse, preamble, one bit, end gap.
	levels := []gpio.Level{gpio.High, gpio.Low, gpio.High, gpio.Low, gpio.High, gpio.Low, gpio.High}
	counts := []uint64{500, 4000, 500, 1900, 500, 4000}
	s := New(gpio.NewFakePin(levels[1:]), gpio.NewFakeCounter(counts), levels[0])
	m := logic.NewMachine()

	var frame logic.Frame
	for i := 0; i < len(counts); i++ {
		e, ok, err := s.Poll()
		if err != nil || !ok {
			t.Fatalf("poll %d: ok=%v err=%v", i, ok, err)
		}
		if f := m.Feed(e.Falling(), e.Duration); f != nil {
			frame = f
		}
	}
	if len(frame) != 1 || frame[0] != 1900 {
		t.Errorf("unexpected frame: %v", frame)
	}
}
