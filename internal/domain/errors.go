package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz id did not resolve.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInvalidPIN indicates the join code did not resolve to a quiz.
	ErrInvalidPIN = errors.New("invalid PIN code")
	// ErrSubmissionNotFound indicates no submission matched the query.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrDuplicateSubmission is returned by submission stores when a
	// session token has already been persisted.
	ErrDuplicateSubmission = errors.New("submission already recorded for session")
)

// ValidationError is a recoverable user-input error: the offending
// transition is stopped and no state changes.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validation builds a ValidationError.
func Validation(reason string) error {
	return &ValidationError{Reason: reason}
}

// IsValidation reports whether err is a user-input validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
