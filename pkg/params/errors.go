package params

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSquashPolicy is returned when a squash config is not false, true or a string.
	ErrInvalidSquashPolicy = errors.New("invalid squash policy")
	// ErrNotInteger is returned by the int type for values that are not whole numbers.
	ErrNotInteger = errors.New("not an integer")
	// ErrNoDefault is returned when a default value producer is needed but cannot run.
	ErrNoDefault = errors.New("default value unavailable")
	// ErrTypeConflict is returned when a parameter is typed by both its URL and its config.
	ErrTypeConflict = errors.New("param has two type configurations")
	// ErrUnknownType is returned when a config names a type that is not registered.
	ErrUnknownType = errors.New("unknown param type")
)

// ValidationError represents a single parameter validation failure.
type ValidationError struct {
	Key    string // Parameter id
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("param %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("param %q: %s (got %v)", e.Key, e.Reason, e.Value)
}

// AggregateError represents multiple validation failures.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		msg += fmt.Sprintf("  %d. %s\n", i+1, err.Error())
	}
	return msg
}

// ValidationErrors returns all validation errors if err is an AggregateError.
// Otherwise returns nil.
func ValidationErrors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
