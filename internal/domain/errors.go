package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error so transports can map it to a response.
type Kind string

const (
	KindNotFound        Kind = "NotFound"
	KindUnauthorized    Kind = "Unauthorized"
	KindForbidden       Kind = "Forbidden"
	KindValidation      Kind = "ValidationError"
	KindConflict        Kind = "Conflict"
	KindInvalidState    Kind = "InvalidState"
	KindUpstreamFailure Kind = "UpstreamFailure"
)

// Error is a kinded, human-readable failure.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// for every not-found message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	// Kind sentinels for errors.Is.
	ErrNotFound        = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrForbidden       = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrValidation      = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrConflict        = &Error{Kind: KindConflict, Message: "conflict"}
	ErrInvalidState    = &Error{Kind: KindInvalidState, Message: "invalid state"}
	ErrUpstreamFailure = &Error{Kind: KindUpstreamFailure, Message: "upstream failure"}

	// ErrQuizNotFound is returned when a quiz id does not resolve.
	ErrQuizNotFound = newError(KindNotFound, "quiz not found")
	// ErrQuestionNotFound is returned for an out-of-range question index.
	ErrQuestionNotFound = newError(KindNotFound, "question not found")
	// ErrParentNotFound is returned when a username does not resolve.
	ErrParentNotFound = newError(KindNotFound, "user not found")
	// ErrInvalidPassword is returned for a wrong quiz or account password.
	ErrInvalidPassword = newError(KindUnauthorized, "invalid password")
	// ErrInvalidToken is returned for a missing, malformed or expired credential.
	ErrInvalidToken = newError(KindUnauthorized, "invalid or expired token")
	// ErrNotOwner is returned when a caller mutates a quiz they did not create.
	ErrNotOwner = newError(KindForbidden, "quiz belongs to another user")
	// ErrNotRegistered is returned when a participant submits without starting.
	ErrNotRegistered = newError(KindForbidden, "user not registered for this quiz")
	// ErrAlreadySubmitted is returned on a second submission by the same participant.
	ErrAlreadySubmitted = newError(KindConflict, "answers already submitted")
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = newError(KindConflict, "username already registered")
	// ErrNotStarted is returned when a quiz has not been started yet.
	ErrNotStarted = newError(KindInvalidState, "quiz has not started yet")
	// ErrAlreadyEnded is returned for any start, submit or end on an ended quiz.
	ErrAlreadyEnded = newError(KindInvalidState, "quiz already ended")
	// ErrQuestionsLocked is returned when editing questions after the quiz started.
	ErrQuestionsLocked = newError(KindInvalidState, "questions cannot change once the quiz has started")
	// ErrNoResponse is returned when ending for a participant that has not submitted.
	ErrNoResponse = newError(KindValidation, "no responses found for this user")
	// ErrGenerationFailed is returned when the question generator produced nothing usable.
	ErrGenerationFailed = newError(KindUpstreamFailure, "failed to generate questions")

	// ErrConcurrentUpdate is returned when a conditional write lost a race
	// with another writer and the fresh document no longer explains why.
	ErrConcurrentUpdate = newError(KindConflict, "quiz was modified concurrently, retry")
)

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

// Upstreamf builds an UpstreamFailure with a formatted message.
func Upstreamf(format string, args ...any) error {
	return newError(KindUpstreamFailure, format, args...)
}

// KindOf reports the kind of err, or "" for infrastructure errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
