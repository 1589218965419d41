package eventloop

import "fmt"

// TimeoutError is returned when a blocking operation exceeds its deadline.
type TimeoutError struct {
	Cause   error
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "operation timed out"
	}
	return e.Message
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// WrapError wraps an error with a message, preserving the cause chain so
// errors.Is/errors.As can match against the original cause.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
