package retry

import (
	"errors"
	"fmt"
)

// ErrCanceled is matched by errors.Is for every *CanceledError.
var ErrCanceled = errors.New("retry: canceled")

// ErrNilResponse is reported when a send function returns neither a response nor an error.
var ErrNilResponse = errors.New("retry: send returned nil response without error")

// ErrNilSend is returned by Execute when no send function is supplied.
var ErrNilSend = errors.New("retry: send function is nil")

// Phase identifies where a cancellation was observed.
type Phase string

const (
	// PhaseSend means the caller's context ended while an attempt was in flight.
	PhaseSend Phase = "send"
	// PhaseWait means the caller's context ended while waiting to retry.
	PhaseWait Phase = "wait"
)

// CanceledError reports that the caller's context ended before the request
// completed. It is never used for transport failures.
type CanceledError struct {
	Attempt int
	Phase   Phase
	Err     error
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("retry: canceled during %s of attempt %d: %v", e.Phase, e.Attempt, e.Err)
}

func (e *CanceledError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCanceled.
func (e *CanceledError) Is(target error) bool {
	return target == ErrCanceled
}

// SettingsError describes an invalid Settings field.
type SettingsError struct {
	Field   string
	Value   any
	Message string
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("retry settings: %s %s (got %v)", e.Field, e.Message, e.Value)
}

// permanentError marks an error that must never be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so the executor returns it without retrying.
// Permanent(nil) returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	var p *permanentError
	if errors.As(err, &p) {
		return err
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// unwrapPermanent strips a top-level Permanent marker so callers see the original error.
func unwrapPermanent(err error) error {
	if p, ok := err.(*permanentError); ok {
		return p.err
	}
	return err
}
