// Package capture records edge streams to disk and reads them back.
//
// A capture file is a CBOR sequence: one Header followed by one Record per
// edge. Records use integer keys to keep long captures small.
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/sweeney/nexus-receiver/internal/gpio"
	"github.com/sweeney/nexus-receiver/internal/logic"
	"github.com/sweeney/nexus-receiver/internal/sampler"
)

const (
	// Magic identifies a capture file.
	Magic = "nexus-capture"
	// Version is the current file format version.
	Version = 1
)

// ErrBadHeader is returned when a stream does not start with a valid header.
var ErrBadHeader = errors.New("not a capture file")

// Header describes a capture.
type Header struct {
	Magic       string `cbor:"1,keyasint"`
	Version     int    `cbor:"2,keyasint"`
	StartMicros int64  `cbor:"3,keyasint"`
	Source      string `cbor:"4,keyasint,omitempty"`
}

// Start returns the capture start time.
func (h Header) Start() time.Time {
	return time.UnixMicro(h.StartMicros).UTC()
}

// Record is one captured edge.
type Record struct {
	Micros uint64 `cbor:"1,keyasint"`
	Level  bool   `cbor:"2,keyasint"`
	Prev   bool   `cbor:"3,keyasint"`
}

func recordFromEdge(e sampler.Edge) Record {
	return Record{Micros: uint64(e.Duration), Level: bool(e.Level), Prev: bool(e.Prev)}
}

// Edge converts the record back to a sampler edge.
func (r Record) Edge() sampler.Edge {
	return sampler.Edge{Duration: logic.Sample(r.Micros), Level: gpio.Level(r.Level), Prev: gpio.Level(r.Prev)}
}

// Recorder writes edges to a capture stream.
type Recorder struct {
	w      *bufio.Writer
	enc    *cbor.Encoder
	closer io.Closer
	count  int
}

// NewRecorder writes a header to w and returns a Recorder appending to it.
func NewRecorder(w io.Writer, start time.Time, source string) (*Recorder, error) {
	bw := bufio.NewWriter(w)
	r := &Recorder{w: bw, enc: cbor.NewEncoder(bw)}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}

	h := Header{Magic: Magic, Version: Version, StartMicros: start.UnixMicro(), Source: source}
	if err := r.enc.Encode(h); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return r, nil
}

// Create opens path for writing and starts a capture.
func Create(path string, start time.Time, source string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create capture: %w", err)
	}
	r, err := NewRecorder(f, start, source)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Write appends one edge.
func (r *Recorder) Write(e sampler.Edge) error {
	if err := r.enc.Encode(recordFromEdge(e)); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	r.count++
	return nil
}

// Count returns the number of edges written.
func (r *Recorder) Count() int {
	return r.count
}

// Flush writes buffered records to the underlying writer.
func (r *Recorder) Flush() error {
	return r.w.Flush()
}

// Close flushes and closes the underlying writer if it is closable.
func (r *Recorder) Close() error {
	err := r.w.Flush()
	if err != nil {
		err = fmt.Errorf("flush capture: %w", err)
	}
	if r.closer != nil {
		if cerr := r.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close capture: %w", cerr)
		}
	}
	return err
}

// Reader reads edges from a capture stream.
type Reader struct {
	dec    *cbor.Decoder
	closer io.Closer
	header Header
}

// NewReader reads and validates the header from r.
func NewReader(r io.Reader) (*Reader, error) {
	rd := &Reader{dec: cbor.NewDecoder(bufio.NewReader(r))}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}

	if err := rd.dec.Decode(&rd.header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if rd.header.Magic != Magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadHeader, rd.header.Magic)
	}
	if rd.header.Version != Version {
		return nil, fmt.Errorf("unsupported capture version %d", rd.header.Version)
	}
	return rd, nil
}

// Open opens a capture file.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Header returns the capture header.
func (r *Reader) Header() Header {
	return r.header
}

// Next returns the next edge, or io.EOF at the end of the capture.
func (r *Reader) Next() (sampler.Edge, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return sampler.Edge{}, io.EOF
		}
		return sampler.Edge{}, fmt.Errorf("read record: %w", err)
	}
	return rec.Edge(), nil
}

// Close closes the underlying reader if it is closable.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
