package session

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/pithecene-io/rtkrelay/types"
)

// Sentinel error kinds. Use errors.Is against a *Error to classify it.
var (
	ErrTransfer       = errors.New("file transfer failed")
	ErrDateExtraction = errors.New("observation date extraction failed")
	ErrFetch          = errors.New("navigation data fetch failed")
	ErrCompute        = errors.New("positioning computation failed")
	ErrNoSolution     = errors.New("no solution found")
	ErrTimeout        = errors.New("timed out")
	ErrInternal       = errors.New("internal error")
)

// Error is a session failure attributed to a stage.
type Error struct {
	// Stage is the stage that failed.
	Stage Stage
	// Kind is one of the sentinel errors above.
	Kind error
	// Err is the underlying cause, possibly nil.
	Err error
}

// newError builds a stage error. Deadline expiries are additionally
// marked with ErrTimeout.
func newError(stage Stage, kind, err error) *Error {
	if err != nil && isDeadline(err) && !errors.Is(err, ErrTimeout) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return &Error{Stage: stage, Kind: kind, Err: err}
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}

// Error returns the message sent to the client.
func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Kind.Error()
	case errors.Is(e.Err, e.Kind):
		return e.Err.Error()
	default:
		return e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Status maps the error to an outcome status.
func (e *Error) Status() types.OutcomeStatus {
	switch {
	case errors.Is(e.Err, ErrTimeout):
		return types.OutcomeTimeout
	case errors.Is(e.Kind, ErrTransfer):
		return types.OutcomeTransferError
	case errors.Is(e.Kind, ErrDateExtraction):
		return types.OutcomeDateError
	case errors.Is(e.Kind, ErrFetch):
		return types.OutcomeFetchError
	case errors.Is(e.Kind, ErrCompute):
		return types.OutcomeComputeError
	case errors.Is(e.Kind, ErrNoSolution):
		return types.OutcomeNoSolution
	case errors.Is(e.Kind, ErrTimeout):
		return types.OutcomeTimeout
	default:
		return types.OutcomeInternalError
	}
}
