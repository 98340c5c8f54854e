package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// Response tags.
var (
	TagOK  = []byte("OK::")
	TagErr = []byte("ERR:")
)

// legacyErrPrefix is what a protocol version 1 server's error tag starts with.
var legacyErrPrefix = []byte("ERR")

const (
	// DefaultMaxPayload bounds the success payload a client will allocate.
	DefaultMaxPayload = 16 * 1024 * 1024
	// MaxMessageLen bounds a framed error message.
	MaxMessageLen = 1024 * 1024
	// LegacyTailSize is the single best-effort read used for unframed errors.
	LegacyTailSize = 1024
)

// Response is a decoded server reply: exactly one of a success payload or
// an error message.
type Response struct {
	OK      bool
	Payload []byte
	Message string
}

// Err returns nil for a success response and a *RemoteError otherwise.
func (r Response) Err() error {
	if r.OK {
		return nil
	}
	return &RemoteError{Message: r.Message}
}

// WriteSuccess writes OK::, the payload length and the payload.
func WriteSuccess(w io.Writer, payload []byte) error {
	return writeTagged(w, TagOK, payload)
}

// WriteFailure writes ERR:, the message length and the UTF-8 message.
func WriteFailure(w io.Writer, message string) error {
	return writeTagged(w, TagErr, []byte(strings.ToValidUTF8(message, "�")))
}

func writeTagged(w io.Writer, tag, payload []byte) error {
	buf := make([]byte, TagSize+ResponseLenSize, TagSize+ResponseLenSize+len(payload))
	copy(buf, tag)
	binary.BigEndian.PutUint64(buf[TagSize:], uint64(len(payload)))
	return WriteAll(w, append(buf, payload...))
}

// ReadOptions tunes response decoding.
type ReadOptions struct {
	// MaxPayload caps the success payload length (default DefaultMaxPayload).
	MaxPayload uint64
	// LegacyErrors decodes error replies the way protocol version 1 servers
	// sent them: an ERR prefix followed by unframed text, taken from one
	// read of at most LegacyTailSize bytes. Such messages may be truncated.
	LegacyErrors bool
}

// ReadResponse decodes one server response.
//
// A stream that ends before the tag is complete yields KindConnectionClosed;
// an unknown tag yields KindUnrecognizedResponse. Neither is ever reported
// as success.
func ReadResponse(r io.Reader, opts ReadOptions) (Response, error) {
	tag, err := ReadExact(r, TagSize)
	if err != nil {
		return Response{}, err
	}

	switch {
	case bytes.Equal(tag, TagOK):
		maxPayload := opts.MaxPayload
		if maxPayload == 0 {
			maxPayload = DefaultMaxPayload
		}
		payload, err := readFramed(r, maxPayload, "payload")
		if err != nil {
			return Response{}, err
		}
		return Response{OK: true, Payload: payload}, nil

	case opts.LegacyErrors && bytes.HasPrefix(tag, legacyErrPrefix):
		tail, err := ReadTail(r, LegacyTailSize)
		if err != nil {
			return Response{}, err
		}
		text := append(tag, tail...)
		text = bytes.TrimPrefix(text, TagErr)
		return Response{Message: strings.ToValidUTF8(string(text), "�")}, nil

	case bytes.Equal(tag, TagErr):
		msg, err := readFramed(r, MaxMessageLen, "error message")
		if err != nil {
			return Response{}, err
		}
		return Response{Message: strings.ToValidUTF8(string(msg), "�")}, nil

	default:
		return Response{}, &Error{
			Kind: KindUnrecognizedResponse,
			Msg:  fmt.Sprintf("unrecognized response tag %q", tag),
		}
	}
}

func readFramed(r io.Reader, limit uint64, what string) ([]byte, error) {
	size, err := readUint64(r)
	if err != nil {
		return nil, err
	}
	if size > limit {
		return nil, &Error{
			Kind: KindTooLarge,
			Msg:  fmt.Sprintf("%s length %d exceeds maximum %d", what, size, limit),
		}
	}
	return ReadExact(r, int(size))
}
