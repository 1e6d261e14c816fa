package progression

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidStepTransition = errors.New("invalid step transition")
	ErrAttemptsExhausted     = errors.New("attempts exhausted")
	ErrAlreadyCompleted      = errors.New("submission already completed")
)

// MissingAnswersError reports which required questions went unanswered
// on a confirm call. The submission is left untouched.
type MissingAnswersError struct {
	QuestionIDs []string
}

func (e *MissingAnswersError) Error() string {
	return fmt.Sprintf("missing required answers: %s", strings.Join(e.QuestionIDs, ", "))
}

// Code maps engine errors to the stable codes exposed on the wire.
func Code(err error) string {
	var ma *MissingAnswersError
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidStepTransition):
		return "invalid_step_transition"
	case errors.Is(err, ErrAttemptsExhausted):
		return "attempts_exhausted"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	case errors.As(err, &ma):
		return "missing_required_answers"
	default:
		return "internal"
	}
}
