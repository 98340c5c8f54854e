package wire

import (
	"errors"
	"fmt"
)

// ErrorKind classifies wire protocol errors.
type ErrorKind int

const (
	// KindConnectionClosed indicates the peer closed the stream (or the
	// transport failed) before a declared-length field was complete.
	KindConnectionClosed ErrorKind = iota
	// KindMalformedName indicates a file name that is not valid UTF-8.
	KindMalformedName
	// KindTooLarge indicates a declared length above the configured limit.
	KindTooLarge
	// KindTransfer indicates the transfer envelope could not be decoded.
	// It wraps the underlying failure.
	KindTransfer
	// KindUnrecognizedResponse indicates a response tag the client does not know.
	KindUnrecognizedResponse
)

// String returns the taxonomy name of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindConnectionClosed:
		return "connection_closed"
	case KindMalformedName:
		return "malformed_name"
	case KindTooLarge:
		return "too_large"
	case KindTransfer:
		return "transfer_error"
	case KindUnrecognizedResponse:
		return "unrecognized_response"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Error represents a wire protocol failure.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether any *Error in err's chain has the given kind.
// A transfer error wrapping a closed connection matches both
// KindTransfer and KindConnectionClosed.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		var werr *Error
		if !errors.As(err, &werr) {
			return false
		}
		if werr.Kind == kind {
			return true
		}
		err = werr.Err
	}
	return false
}

// RemoteError is a failure reported by the server in an ERR: response.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "server error: " + e.Message
}
