package logic

import (
	"errors"
	"fmt"
)

// Kind classifies a decode failure.
type Kind int

const (
	KindWrongLength Kind = iota + 1
	KindOutOfRange
	KindWrongChannel
)

func (k Kind) String() string {
	switch k {
	case KindWrongLength:
		return "wrong_length"
	case KindOutOfRange:
		return "out_of_range"
	case KindWrongChannel:
		return "wrong_channel"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var (
	ErrWrongLength  = errors.New("wrong payload length")
	ErrOutOfRange   = errors.New("sample out of range")
	ErrWrongChannel = errors.New("wrong channel")

	errUnknownKind = errors.New("decode error")
)

// DecodeError reports why a frame was discarded.
type DecodeError struct {
	Kind Kind
	// Value is the payload length, the offending sample or the decoded
	// channel, depending on Kind.
	Value uint64
	// Samples is a copy of the payload for diagnostics. Nil for KindWrongChannel.
	Samples Frame
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %d", e.Unwrap(), e.Value)
}

// Unwrap returns the sentinel for e.Kind so errors.Is works.
func (e *DecodeError) Unwrap() error {
	switch e.Kind {
	case KindWrongLength:
		return ErrWrongLength
	case KindOutOfRange:
		return ErrOutOfRange
	case KindWrongChannel:
		return ErrWrongChannel
	}
	return errUnknownKind
}
