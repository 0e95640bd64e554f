package parserapi

import (
	"errors"
	"fmt"
)

// TransientError covers network failures and 5xx responses. Callers retry
// these on the next poll pass; nothing is surfaced to the user.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient provider error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError covers 4xx responses and invalid credentials. Jobs hitting
// one are failed and the condition is surfaced to the operator channel.
type PermanentError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent provider error during %s: HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsTransient reports whether err should be retried on the next poll pass.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsPermanent reports whether err is terminal for the job that hit it.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}
