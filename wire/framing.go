// Package wire implements the rtkrelay TCP protocol: length-prefixed file
// units, the counted transfer envelope, and the OK::/ERR: response frames.
//
// All integers are big-endian. Every declared-length field is read with
// ReadExact; ReadTail is the single exception and exists only for the
// legacy unframed error tail.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Field sizes in bytes.
const (
	// CountSize is the size of the envelope unit count.
	CountSize = 4
	// NameLenSize is the size of a file name length prefix.
	NameLenSize = 4
	// ContentLenSize is the size of a file content length prefix.
	ContentLenSize = 8
	// TagSize is the size of a response tag.
	TagSize = 4
	// ResponseLenSize is the size of a response payload length.
	ResponseLenSize = 8
)

// ChunkSize bounds a single content read when streaming file bodies.
const ChunkSize = 64 * 1024

// ReadExact reads exactly n bytes from r. It never returns a partial
// result: if the stream ends or fails first, the error is a *Error with
// KindConnectionClosed wrapping the transport error.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("wire: negative read length %d", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, closedError(fmt.Sprintf("read %d bytes", n), err)
	}
	return buf, nil
}

// WriteAll writes every byte of p to w, retrying short writes. A transport
// error becomes a *Error with KindConnectionClosed.
func WriteAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return closedError("write", err)
		}
		if n == 0 {
			return closedError("write", io.ErrShortWrite)
		}
		p = p[n:]
	}
	return nil
}

// ReadTail performs one best-effort read of at most max bytes. It is only
// used to decode the unframed error tail of protocol version 1 and must not
// be used for any declared-length field. io.EOF with no data yields an empty
// tail and no error.
func ReadTail(r io.Reader, max int) ([]byte, error) {
	buf := make([]byte, max)
	n, err := r.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return buf[:n], closedError("read error tail", err)
	}
	return buf[:n], nil
}

func readUint32(r io.Reader) (uint32, error) {
	b, err := ReadExact(r, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func readUint64(r io.Reader) (uint64, error) {
	b, err := ReadExact(r, 8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func closedError(op string, err error) *Error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Kind: KindConnectionClosed, Msg: op + ": connection closed by peer", Err: err}
	}
	return &Error{Kind: KindConnectionClosed, Msg: op, Err: err}
}
