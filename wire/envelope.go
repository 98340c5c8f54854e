package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// DefaultMaxUnits is the default upper bound on the envelope unit count.
const DefaultMaxUnits = 8

// FileSource is a unit to be sent whose content is streamed from Reader.
// Reader must yield at least Size bytes.
type FileSource struct {
	Name   string
	Size   uint64
	Reader io.Reader
}

// SourceFromUnit adapts an in-memory unit for WriteEnvelope.
func SourceFromUnit(u FileUnit) FileSource {
	return FileSource{Name: u.Name, Size: uint64(len(u.Content)), Reader: bytes.NewReader(u.Content)}
}

// WriteEnvelope writes the unit count followed by every unit.
func WriteEnvelope(w io.Writer, units ...FileSource) error {
	var count [CountSize]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(units)))
	if err := WriteAll(w, count[:]); err != nil {
		return err
	}

	buf := make([]byte, ChunkSize)
	for _, u := range units {
		if err := WriteFileHeader(w, u.Name, u.Size); err != nil {
			return err
		}
		if err := writeContent(w, u, buf); err != nil {
			return err
		}
	}
	return nil
}

func writeContent(w io.Writer, u FileSource, buf []byte) error {
	var sent uint64
	for sent < u.Size {
		n := min(uint64(len(buf)), u.Size-sent)
		got, err := io.ReadFull(u.Reader, buf[:n])
		if err != nil {
			return fmt.Errorf("read source %q: %w", u.Name, err)
		}
		if err := WriteAll(w, buf[:got]); err != nil {
			return err
		}
		sent += uint64(got)
	}
	return nil
}

// Sink returns the destination for a unit's content once its header is known.
type Sink func(h FileHeader) (io.Writer, error)

// EnvelopeReader decodes a counted transfer envelope unit by unit so each
// body can be streamed to its final destination.
//
// Every error it returns is a *Error with KindTransfer wrapping the cause;
// once an error is returned the envelope is invalid as a whole.
type EnvelopeReader struct {
	r        io.Reader
	maxUnits int
	count    int
	next     int
	counted  bool
}

// NewEnvelopeReader creates a reader accepting at most maxUnits units.
// A non-positive maxUnits selects DefaultMaxUnits.
func NewEnvelopeReader(r io.Reader, maxUnits int) *EnvelopeReader {
	if maxUnits <= 0 {
		maxUnits = DefaultMaxUnits
	}
	return &EnvelopeReader{r: r, maxUnits: maxUnits}
}

// ReadCount reads and validates the unit count. It must be called once,
// before Next.
func (e *EnvelopeReader) ReadCount() (int, error) {
	if e.counted {
		return e.count, nil
	}
	n, err := readUint32(e.r)
	if err != nil {
		return 0, transferError("read unit count", err)
	}
	if n == 0 {
		return 0, transferError("envelope carries no files", nil)
	}
	if n > uint32(e.maxUnits) {
		return 0, transferError("unit count", &Error{
			Kind: KindTooLarge,
			Msg:  fmt.Sprintf("%d units exceeds maximum %d", n, e.maxUnits),
		})
	}
	e.count = int(n)
	e.counted = true
	return e.count, nil
}

// Remaining returns the number of units not yet decoded.
func (e *EnvelopeReader) Remaining() int {
	return e.count - e.next
}

// Next decodes the next unit header, asks sink for a destination and copies
// the content there. It returns io.EOF after the last unit.
func (e *EnvelopeReader) Next(sink Sink) (FileHeader, error) {
	if !e.counted {
		return FileHeader{}, transferError("unit count not read", nil)
	}
	if e.next >= e.count {
		return FileHeader{}, io.EOF
	}
	idx := e.next
	e.next++

	h, err := ReadFileHeader(e.r)
	if err != nil {
		return FileHeader{}, transferError(fmt.Sprintf("unit %d header", idx), err)
	}
	dst, err := sink(h)
	if err != nil {
		return h, transferError(fmt.Sprintf("unit %d (%s) destination", idx, h.Name), err)
	}
	if _, err := CopyContent(dst, e.r, h.Size); err != nil {
		return h, transferError(fmt.Sprintf("unit %d (%s) content", idx, h.Name), err)
	}
	return h, nil
}

// ReadEnvelope decodes a whole envelope into memory.
func ReadEnvelope(r io.Reader, maxUnits int) ([]FileUnit, error) {
	er := NewEnvelopeReader(r, maxUnits)
	n, err := er.ReadCount()
	if err != nil {
		return nil, err
	}
	units := make([]FileUnit, 0, n)
	for {
		var buf bytes.Buffer
		h, err := er.Next(func(FileHeader) (io.Writer, error) { return &buf, nil })
		if errors.Is(err, io.EOF) {
			return units, nil
		}
		if err != nil {
			return nil, err
		}
		units = append(units, FileUnit{Name: h.Name, Content: buf.Bytes()})
	}
}

func transferError(msg string, err error) *Error {
	if err == nil {
		return &Error{Kind: KindTransfer, Msg: msg}
	}
	return &Error{Kind: KindTransfer, Msg: msg, Err: err}
}
