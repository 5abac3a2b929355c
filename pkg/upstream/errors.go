package upstream

import (
	"errors"
	"fmt"
)

// Error represents a failed upstream fetch with additional context.
type Error struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsUpstreamError reports whether err originated in the upstream exchange.
func IsUpstreamError(err error) bool {
	var ue *Error
	return errors.As(err, &ue)
}
