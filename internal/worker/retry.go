package worker

import (
	"errors"
	"fmt"
)

// DefaultMaxAttempts is used when a Config leaves MaxAttempts unset.
const DefaultMaxAttempts = 3

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the message is dead-lettered on
// the first failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// shouldDeadLetter decides the fate of a message that has just failed and
// whose attempts counter has already been incremented.
func shouldDeadLetter(attempts, maxAttempts int, err error) bool {
	return IsPermanent(err) || attempts >= maxAttempts
}

type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprintf("handler panicked: %v", e.value) }
