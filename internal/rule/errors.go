package rule

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no rule exists for the requested id.
	ErrNotFound = errors.New("rule not found")
	// ErrInactive is returned when applying a rule that exists but is not active.
	ErrInactive = errors.New("rule not active")
)

// ValidationError reports a payload or cross-rule invariant violation. The
// caller can recover by correcting the input; state is never left changed.
type ValidationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string { return e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
