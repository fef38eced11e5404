//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPin is not available on non-Linux platforms.
type RealPin struct{}

// NewRealPin returns an error on non-Linux platforms.
func NewRealPin(chip string, offset int, opts PinOptions) (*RealPin, error) {
	return nil, errUnsupported
}

// Level is not implemented on non-Linux platforms.
func (p *RealPin) Level() (Level, error) {
	return Low, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (p *RealPin) Close() error {
	return nil
}

// EdgeWatcher is not available on non-Linux platforms.
type EdgeWatcher struct{}

// NewEdgeWatcher returns an error on non-Linux platforms.
func NewEdgeWatcher(chip string, offset int, opts PinOptions, buffer int) (*EdgeWatcher, error) {
	return nil, errUnsupported
}

// Next never reports a transition on non-Linux platforms.
func (w *EdgeWatcher) Next() (Transition, bool) {
	return Transition{}, false
}

// Level is not implemented on non-Linux platforms.
func (w *EdgeWatcher) Level() (Level, error) {
	return Low, errors.New("gpio: not supported")
}

// Dropped always returns 0 on non-Linux platforms.
func (w *EdgeWatcher) Dropped() uint64 {
	return 0
}

// Close is not implemented on non-Linux platforms.
func (w *EdgeWatcher) Close() error {
	return nil
}
