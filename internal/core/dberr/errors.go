// Package dberr defines the typed failures surfaced by the data-access layer
// and the mapping from driver errors into them.
package dberr

import (
	"errors"
	"fmt"
)

// Kind categorizes a data-access failure.
type Kind string

const (
	KindConnection  Kind = "CONNECTION_ERROR"
	KindQuery       Kind = "QUERY_ERROR"
	KindTransaction Kind = "TRANSACTION_ERROR"
	KindValidation  Kind = "VALIDATION_ERROR"
	KindConflict    Kind = "CONFLICT_ERROR"
	KindNotFound    Kind = "NOT_FOUND"
)

// transientCodes are the SQLSTATE codes worth retrying.
var transientCodes = map[string]struct{}{
	"08000": {}, // connection_exception
	"08003": {}, // connection_does_not_exist
	"08006": {}, // connection_failure
	"08001": {}, // sqlclient_unable_to_establish_sqlconnection
	"08004": {}, // sqlserver_rejected_establishment_of_sqlconnection
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
}

// Error is a classified data-access failure.
//
// Message is safe to show to API clients for validation, conflict and
// not-found kinds. Err keeps the underlying cause for server-side logging.
type Error struct {
	Kind Kind

	// Code is the SQLSTATE (or driver equivalent) when one is known.
	Code string

	Message string

	// Field names the offending input field for validation and conflict errors.
	Field string

	// Constraint is the database constraint that rejected the statement.
	Constraint string

	// Resource and Identifier describe the missing entity for not-found errors.
	Resource   string
	Identifier string

	Err error
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

// Connection creates a connection-class error. Connection errors are always transient.
func Connection(message string, cause error) *Error {
	return &Error{Kind: KindConnection, Message: message, Err: cause}
}

// Query creates a generic query error wrapping the original cause.
func Query(message string, cause error) *Error {
	return &Error{Kind: KindQuery, Message: message, Err: cause}
}

// Transaction creates a transaction error carrying its SQLSTATE.
func Transaction(message, code string, cause error) *Error {
	return &Error{Kind: KindTransaction, Code: code, Message: message, Err: cause}
}

// Validation creates a validation error for a single field.
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Conflict creates a uniqueness conflict for a single field.
func Conflict(field, message string) *Error {
	return &Error{Kind: KindConflict, Field: field, Message: message}
}

// NotFound creates a not-found error for a resource and identifier.
func NotFound(resource, identifier string) *Error {
	msg := resource + " not found"
	if identifier != "" {
		msg = fmt.Sprintf("%s with identifier '%s' not found", resource, identifier)
	}
	return &Error{
		Kind:       KindNotFound,
		Message:    msg,
		Resource:   resource,
		Identifier: identifier,
	}
}

// As extracts the classified error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of a classified error, or "" for anything else.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict reports whether err is a uniqueness conflict.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// IsTransient reports whether err is likely to succeed on retry: connection
// failures, plus serialization failures and deadlocks by SQLSTATE.
func IsTransient(err error) bool {
	e, ok := As(err)
	if !ok {
		return false
	}
	if e.Kind == KindConnection {
		return true
	}
	if e.Code == "" {
		return false
	}
	_, ok = transientCodes[e.Code]
	return ok
}
