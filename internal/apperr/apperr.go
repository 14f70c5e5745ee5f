// Package apperr defines the typed errors surfaced across package boundaries.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind string

const (
	KindConfigurationAbsent Kind = "configuration_absent"
	KindClassificationParse Kind = "classification_parse_failure"
	KindModelInvocation     Kind = "model_invocation_failure"
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation_failure"
	KindInternal            Kind = "internal"
)

// Error carries a Kind alongside a message and optional cause.
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

// Code returns the upper-case code used in API responses.
func (e *Error) Code() string {
	switch e.Kind {
	case KindConfigurationAbsent:
		return "CONFIGURATION_ABSENT"
	case KindClassificationParse:
		return "CLASSIFICATION_PARSE_FAILURE"
	case KindModelInvocation:
		return "MODEL_INVOCATION_FAILURE"
	case KindNotFound:
		return "NOT_FOUND"
	case KindValidation:
		return "VALIDATION_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}

// New returns an Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func ConfigurationAbsent(message string) *Error {
	return New(KindConfigurationAbsent, message, nil)
}

func ClassificationParse(message string, err error) *Error {
	return New(KindClassificationParse, message, err)
}

func ModelInvocation(message string, err error) *Error {
	return New(KindModelInvocation, message, err)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...), nil)
}

func Validation(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...), nil)
}

// KindOf reports the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
