// Package gpio provides GPIO input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"time"
)

// Level is the logical level of an input line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

// Pin reads the current level of a single input line.
type Pin interface {
	// Level returns the current logical level of the line.
	Level() (Level, error)

	// Close releases GPIO resources.
	Close() error
}

// Counter is a free-running microsecond counter.
type Counter interface {
	// Count returns the microseconds elapsed since the last Reset.
	Count() uint64

	// Reset restarts counting from zero.
	Reset()
}

// Transition is a level change reported by the kernel with its timestamp.
type Transition struct {
	Level     Level         // level after the edge
	Timestamp time.Duration // kernel event timestamp
}

// Defaults for a 433 MHz OOK receiver module on a Raspberry Pi.
const (
	DefaultChip = "gpiochip0"
	DefaultPin  = 27 // BCM numbering
)

// Bias selects the line bias applied when requesting an input.
type Bias string

const (
	BiasNone     Bias = "none"
	BiasPullUp   Bias = "pull-up"
	BiasPullDown Bias = "pull-down"
)

// ParseBias converts a flag value into a Bias.
func ParseBias(s string) (Bias, error) {
	switch b := Bias(s); b {
	case BiasNone, BiasPullUp, BiasPullDown:
		return b, nil
	case "":
		return BiasNone, nil
	}
	return "", fmt.Errorf("unknown bias %q (want none, pull-up or pull-down)", s)
}

// PinOptions configures how an input line is requested.
type PinOptions struct {
	Bias      Bias
	ActiveLow bool
	Consumer  string // label shown by gpioinfo
}
