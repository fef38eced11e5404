//go:build linux

package gpio

import (
	"fmt"
	"sync/atomic"

	"github.com/warthog618/go-gpiocdev"
)

const defaultConsumer = "nexus-receiver"

// RealPin reads a GPIO line from actual hardware using the Linux GPIO character device.
type RealPin struct {
	line *gpiocdev.Line
}

// NewRealPin requests the given line offset on chip as an input.
func NewRealPin(chip string, offset int, opts PinOptions) (*RealPin, error) {
	line, err := gpiocdev.RequestLine(chip, offset, lineOptions(opts)...)
	if err != nil {
		return nil, fmt.Errorf("request pin %d on %s: %w", offset, chip, err)
	}
	return &RealPin{line: line}, nil
}

// Level returns the current logical level of the line.
func (p *RealPin) Level() (Level, error) {
	v, err := p.line.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin: %w", err)
	}
	return Level(v != 0), nil
}

// Close releases the line.
func (p *RealPin) Close() error {
	if p.line == nil {
		return nil
	}
	if err := p.line.Close(); err != nil {
		return fmt.Errorf("close pin: %w", err)
	}
	return nil
}

// EdgeWatcher reports level transitions using kernel edge detection.
// Events carry kernel timestamps, so their spacing is independent of how
// quickly the consumer polls.
type EdgeWatcher struct {
	line    *gpiocdev.Line
	events  chan Transition
	dropped atomic.Uint64
}

// NewEdgeWatcher requests the line with both-edge detection.
// Up to buffer events are queued between calls to Next; further events are dropped.
func NewEdgeWatcher(chip string, offset int, opts PinOptions, buffer int) (*EdgeWatcher, error) {
	if buffer <= 0 {
		buffer = 256
	}
	w := &EdgeWatcher{events: make(chan Transition, buffer)}

	lineOpts := append(lineOptions(opts),
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(w.handle),
	)
	line, err := gpiocdev.RequestLine(chip, offset, lineOpts...)
	if err != nil {
		return nil, fmt.Errorf("request edge events for pin %d on %s: %w", offset, chip, err)
	}
	w.line = line
	return w, nil
}

// handle runs on the gpiocdev event goroutine.
func (w *EdgeWatcher) handle(evt gpiocdev.LineEvent) {
	t := Transition{
		Level:     Level(evt.Type == gpiocdev.LineEventRisingEdge),
		Timestamp: evt.Timestamp,
	}
	select {
	case w.events <- t:
	default:
		w.dropped.Add(1)
	}
}

// Next returns the oldest queued transition without blocking.
func (w *EdgeWatcher) Next() (Transition, bool) {
	select {
	case t := <-w.events:
		return t, true
	default:
		return Transition{}, false
	}
}

// Level returns the current logical level of the line.
func (w *EdgeWatcher) Level() (Level, error) {
	v, err := w.line.Value()
	if err != nil {
		return Low, fmt.Errorf("read pin: %w", err)
	}
	return Level(v != 0), nil
}

// Dropped returns the number of events lost because the queue was full.
func (w *EdgeWatcher) Dropped() uint64 {
	return w.dropped.Load()
}

// Close stops edge detection and releases the line.
func (w *EdgeWatcher) Close() error {
	if w.line == nil {
		return nil
	}
	if err := w.line.Close(); err != nil {
		return fmt.Errorf("close edge watcher: %w", err)
	}
	return nil
}

func lineOptions(opts PinOptions) []gpiocdev.LineReqOption {
	consumer := opts.Consumer
	if consumer == "" {
		consumer = defaultConsumer
	}
	out := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(consumer),
	}
	switch opts.Bias {
	case BiasPullUp:
		out = append(out, gpiocdev.WithPullUp)
	case BiasPullDown:
		out = append(out, gpiocdev.WithPullDown)
	case BiasNone:
		out = append(out, gpiocdev.WithBiasDisabled)
	}
	if opts.ActiveLow {
		out = append(out, gpiocdev.AsActiveLow)
	}
	return out
}
