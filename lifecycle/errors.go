// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package lifecycle

import (
	"errors"
	"fmt"
)

// Kind classifies a lifecycle failure for the request surface.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindNotYetAvailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindNotYetAvailable:
		return "not_yet_available"
	default:
		return "internal"
	}
}

// Error is a classified lifecycle failure. Sentinels below are *Error values;
// match them with errors.Is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

var (
	ErrNameRequired           = newError(KindValidation, "Name required")
	ErrTitleRequired          = newError(KindValidation, "Title required")
	ErrInvalidQuestion        = newError(KindValidation, "Question text and at least two distinct options required")
	ErrAnswerRequired         = newError(KindValidation, "Answer required")
	ErrPollNotFound           = newError(KindNotFound, "Poll not found")
	ErrQuestionNotFound       = newError(KindNotFound, "Question not found")
	ErrStudentNotFound        = newError(KindNotFound, "Student not found")
	ErrNoActiveQuestion       = newError(KindNotFound, "No active question")
	ErrPreviousQuestionActive = newError(KindConflict, "Previous question still active")
	ErrQuestionNotActive      = newError(KindConflict, "Question is not active")
	ErrTimeExpired            = newError(KindConflict, "Time expired")
	ErrDuplicateAnswer        = newError(KindConflict, "Already answered")
	ErrResultsNotYetAvailable = newError(KindNotYetAvailable, "Results not available yet")
)

// internal wraps a storage failure.
func internal(op string, err error) error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
