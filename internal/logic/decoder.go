package logic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bit layout of a Nexus-TH frame, MSB first.
const (
	idOffset       = 0
	idWidth        = 8
	batteryOffset  = 8
	batteryWidth   = 1
	channelOffset  = 10
	channelWidth   = 2
	tempOffset     = 12
	tempWidth      = 12
	humidityOffset = 28
	humidityWidth  = 8

	// Raw temperatures above this are negative (12-bit two's complement).
	tempSignLimit = 2048
	tempModulus   = 4096

	maxHumidity = 100
)

// Decoder turns completed frames into readings for a single channel.
type Decoder struct {
	channel uint8
}

// NewDecoder creates a decoder that accepts frames from channel (1-based).
func NewDecoder(channel uint8) *Decoder {
	return &Decoder{channel: channel}
}

// Channel returns the configured channel.
func (d *Decoder) Channel() uint8 {
	return d.channel
}

// Decode validates and decodes frame. On failure it returns a zero Reading
// and a *DecodeError.
func (d *Decoder) Decode(frame Frame, now time.Time) (Reading, error) {
	r, err := Parse(frame, now)
	if err != nil {
		return Reading{}, err
	}
	if r.Channel != d.channel {
		return Reading{}, &DecodeError{Kind: KindWrongChannel, Value: uint64(r.Channel)}
	}
	return r, nil
}

// Parse decodes frame without channel filtering.
func Parse(frame Frame, now time.Time) (Reading, error) {
	if len(frame) != PayloadLen {
		return Reading{}, &DecodeError{
			Kind:    KindWrongLength,
			Value:   uint64(len(frame)),
			Samples: cloneFrame(frame),
		}
	}

	bits, err := frameBits(frame)
	if err != nil {
		return Reading{}, err
	}

	temp := int(field(bits, tempOffset, tempWidth))
	if temp > tempSignLimit {
		temp -= tempModulus
	}

	humidity := field(bits, humidityOffset, humidityWidth)
	if humidity > maxHumidity {
		humidity = maxHumidity
	}

	return Reading{
		Time:       now,
		ID:         uint8(field(bits, idOffset, idWidth)),
		Channel:    uint8(field(bits, channelOffset, channelWidth)) + 1,
		BatteryOK:  field(bits, batteryOffset, batteryWidth) == 1,
		TempTenths: temp,
		Humidity:   uint8(humidity),
	}, nil
}

// frameBits classifies every sample as a bit. The first sample outside both
// bit windows fails the frame, whichever field it belongs to.
func frameBits(frame Frame) (uint64, error) {
	var bits uint64
	for _, s := range frame {
		switch {
		case OneWindow.Contains(s):
			bits = bits<<1 | 1
		case ZeroWindow.Contains(s):
			bits <<= 1
		default:
			return 0, &DecodeError{
				Kind:    KindOutOfRange,
				Value:   uint64(s),
				Samples: cloneFrame(frame),
			}
		}
	}
	return bits, nil
}

// field extracts width bits starting offset bits from the start of the frame.
func field(bits uint64, offset, width int) uint64 {
	shift := PayloadLen - offset - width
	return (bits >> shift) & (1<<width - 1)
}

func cloneFrame(f Frame) Frame {
	if f == nil {
		return nil
	}
	out := make(Frame, len(f))
	copy(out, f)
	return out
}

// FormatSamples renders a frame as a comma-separated list of microseconds.
// ParseSamples accepts the same format.
func FormatSamples(f Frame) string {
	parts := make([]string, len(f))
	for i, s := range f {
		parts[i] = strconv.FormatUint(uint64(s), 10)
	}
	return strings.Join(parts, ",")
}

// ParseSamples parses durations separated by commas or whitespace.
func ParseSamples(s string) (Frame, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	frame := make(Frame, 0, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		frame = append(frame, Sample(v))
	}
	return frame, nil
}
