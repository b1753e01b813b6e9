package services

import (
	"errors"
	"fmt"
)

// Kind classifies service failures so the HTTP layer can map each one to a
// status code in exactly one place (controllers.writeError).
type Kind int

const (
	KindValidation Kind = iota + 1 // malformed or out-of-range input
	KindReference                  // dangling foreign key reference
	KindConflict                   // uniqueness / active-loan violation
	KindNotFound                   // missing entity, normal control flow
	KindUnexpected                 // storage failures, never detailed to callers
)

type Error struct {
	Kind    Kind
	Message string
	Details []string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NewValidation(details []string) *Error {
	return &Error{Kind: KindValidation, Message: "invalid input", Details: details}
}

func NewReference(entity string) *Error {
	return &Error{Kind: KindReference, Message: fmt.Sprintf("the referenced %s does not exist", entity)}
}

func NewConflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func NewNotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func NewUnexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Message: "storage failure", Err: err}
}

// wrap keeps tagged errors as-is and hides everything else behind
// KindUnexpected.
func wrap(err error) error {
	var serr *Error
	if errors.As(err, &serr) {
		return err
	}
	return NewUnexpected(err)
}
