package collector

import (
	"errors"
	"fmt"
)

// TransientError marks a failure worth retrying (network, throttling, 5xx).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a failure that will not go away on retry
// (unknown symbol, bad credentials, unparseable payload).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Transientf builds a TransientError from a format string.
func Transientf(format string, args ...any) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// Permanentf builds a PermanentError from a format string.
func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err (or anything it wraps) is a PermanentError.
// Unclassified errors are treated as transient.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
