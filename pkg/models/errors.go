package models

import (
	"errors"
	"fmt"
)

var (
	// ErrBackendUnavailable means a call never reached the document engine.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrOperationFailed means the engine rejected a well-formed request.
	ErrOperationFailed = errors.New("operation failed")
	// ErrStaleReference means the target file moved since it was read.
	ErrStaleReference = errors.New("stale reference")
	// ErrInvalidSelection means a page referenced by a gesture is absent.
	ErrInvalidSelection = errors.New("invalid selection")
)

// BackendError carries the failed engine operation together with the
// underlying cause.
type BackendError struct {
	Op          string
	Unavailable bool
	Err         error
}

func (e *BackendError) Error() string {
	kind := "failed"
	if e.Unavailable {
		kind = "unavailable"
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: backend %s", e.Op, kind)
	}
	return fmt.Sprintf("%s: backend %s: %v", e.Op, kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	if e.Unavailable {
		return target == ErrBackendUnavailable
	}
	return target == ErrOperationFailed
}

func Unavailable(op string, err error) error {
	return &BackendError{Op: op, Unavailable: true, Err: err}
}

func Failed(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}
