package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrQuizNotFound is returned when a quiz id does not exist.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuestionNotFound is returned when a question id does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrParticipantNotFound is returned when a participant id does not exist.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrAnswerNotFound is returned when an answer id does not exist.
	ErrAnswerNotFound = errors.New("answer not found")
	// ErrAlreadyRegistered indicates the email is already registered for the quiz.
	ErrAlreadyRegistered = errors.New("participant already registered")
	// ErrAlreadyAnswered indicates a second submission for the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrInvalidTransition indicates a lifecycle change the quiz cannot make from its current status.
	ErrInvalidTransition = errors.New("invalid quiz status transition")
	// ErrNoQuestions indicates a quiz cannot start without questions.
	ErrNoQuestions = errors.New("quiz has no questions")
	// ErrDuplicateQuestionNumber indicates the quiz already has a question with that number.
	ErrDuplicateQuestionNumber = errors.New("question number already used in this quiz")
)

// ValidationError reports a malformed or missing input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrQuestionNotFound) ||
		errors.Is(err, ErrParticipantNotFound) ||
		errors.Is(err, ErrAnswerNotFound)
}

// IsConflict reports whether err signals a request that clashes with current state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyRegistered) ||
		errors.Is(err, ErrAlreadyAnswered) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNoQuestions) ||
		errors.Is(err, ErrDuplicateQuestionNumber)
}
