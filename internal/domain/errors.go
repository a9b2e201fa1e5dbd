package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrCredentialRejected means the session token is expired or invalid.
	// The stored credential must be purged; a fresh join is required.
	ErrCredentialRejected = errors.New("session credential rejected")
	// ErrDeadlinePassed is the server's authoritative word that the question
	// closed before the attempt arrived. Terminal for that question.
	ErrDeadlinePassed = errors.New("question deadline already passed")
	// ErrGameNotFound is returned for an unknown game code.
	ErrGameNotFound = errors.New("game not found")
	// ErrNameTaken is returned when the display name is already in use.
	ErrNameTaken = errors.New("display name already taken")
	// ErrGameClosed is returned when the game is full or no longer accepting joins.
	ErrGameClosed = errors.New("game is full or closed")
	// ErrAlreadySubmitted means an attempt for this question was already committed.
	ErrAlreadySubmitted = errors.New("answer already submitted for this question")
	// ErrRetryPending means a queued attempt is awaiting connectivity; manual
	// submits are suppressed until it resolves.
	ErrRetryPending = errors.New("a submission retry is pending")
	// ErrUnknownQuestionType is returned for a question type the client cannot render.
	ErrUnknownQuestionType = errors.New("unknown question type")
)

// TransientError wraps a network-level failure that may be retried without
// discarding session state.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable without purging the session.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ValidationError reports a malformed answer. Non-terminal: the participant
// may correct and resubmit.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid answer: " + e.Reason
}

// IsValidation reports whether err is a correctable answer-shape error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
