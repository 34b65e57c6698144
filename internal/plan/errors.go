package plan

import "errors"

var (
	// ErrGeneration means no plan could be produced; the caller may retry later.
	ErrGeneration = errors.New("plan generation failed")
	// ErrStorage wraps failures reading or writing the store.
	ErrStorage = errors.New("storage failure")
	// ErrUserNotFound is returned when the session points at a missing profile.
	ErrUserNotFound = errors.New("user not found")
)

// ValidationError reports a rejected setup field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
