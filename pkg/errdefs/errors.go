// Package errdefs defines the classified error values shared by the
// settings resolution and config generation packages.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for programmatic handling.
type Kind string

const (
	// KindConfiguration indicates required settings or keys were absent
	// at generation time.
	KindConfiguration Kind = "configuration"

	// KindInvalidRecord indicates a malformed or unrecognized
	// host-based-authentication record.
	KindInvalidRecord Kind = "invalid_record"

	// KindInvalidParameter indicates an unsupported parameter value type.
	KindInvalidParameter Kind = "invalid_parameter"

	// KindUnsupported indicates no resolver rule exists for a given
	// OS-family/package-source pair.
	KindUnsupported Kind = "unsupported"
)

// Error is a classified error carrying the offending payload.
type Error struct {
	// Kind is the error classification.
	Kind Kind

	// Message is the human-readable error message.
	Message string

	// Key names the settings key involved, if applicable.
	Key string

	// Payload is the offending record or value, if applicable.
	Payload any

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Key != "" {
		msg += fmt.Sprintf(" (key=%s)", e.Key)
	}
	if e.Payload != nil {
		msg += fmt.Sprintf(": %v", e.Payload)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is. Two classified
// errors match when their kinds match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithKey adds the settings key involved to the error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// NewConfiguration creates a configuration error.
func NewConfiguration(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// NewInvalidRecord creates an invalid-record error carrying the record.
func NewInvalidRecord(message string, record any) *Error {
	return &Error{Kind: KindInvalidRecord, Message: message, Payload: record}
}

// NewInvalidParameter creates an invalid-parameter error carrying the value.
func NewInvalidParameter(message string, value any) *Error {
	return &Error{Kind: KindInvalidParameter, Message: message, Payload: value}
}

// NewUnsupported creates an unsupported-configuration error.
func NewUnsupported(message string) *Error {
	return &Error{Kind: KindUnsupported, Message: message}
}

// IsConfiguration returns true if the error is a configuration error.
func IsConfiguration(err error) bool {
	return isKind(err, KindConfiguration)
}

// IsInvalidRecord returns true if the error is an invalid-record error.
func IsInvalidRecord(err error) bool {
	return isKind(err, KindInvalidRecord)
}

// IsInvalidParameter returns true if the error is an invalid-parameter error.
func IsInvalidParameter(err error) bool {
	return isKind(err, KindInvalidParameter)
}

// IsUnsupported returns true if the error is an unsupported-configuration error.
func IsUnsupported(err error) bool {
	return isKind(err, KindUnsupported)
}

func isKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
