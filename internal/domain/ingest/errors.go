package ingest

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ErrorKind classifies a sync failure and drives retry behavior
type ErrorKind string

const (
	// ErrorKindValidation marks a malformed or incomplete inbound record.
	// Never retried; the record is skipped and enumerated in the summary.
	ErrorKindValidation ErrorKind = "VALIDATION"
	// ErrorKindTransientStorage marks a recoverable storage failure
	// (serialization conflict, deadlock, lost connection, timeout).
	// Retried with backoff.
	ErrorKindTransientStorage ErrorKind = "TRANSIENT_STORAGE"
	// ErrorKindDataIntegrity marks a constraint violation. Never retried.
	ErrorKindDataIntegrity ErrorKind = "DATA_INTEGRITY"
	// ErrorKindCredential marks rejected or expired provider credentials.
	ErrorKindCredential ErrorKind = "CREDENTIAL"
)

// String returns the string representation of ErrorKind
func (k ErrorKind) String() string {
	return string(k)
}

// Error is the domain error carried through the pipeline. It keeps the
// classification, a reference to the offending record when known, and the
// wrapped cause.
type Error struct {
	Kind    ErrorKind
	Ref     EntityRef
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ingest: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("ingest: %s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error for a record
func NewValidationError(ref EntityRef, message string) *Error {
	return &Error{Kind: ErrorKindValidation, Ref: ref, Message: message}
}

// NewTransientStorageError wraps a recoverable storage failure
func NewTransientStorageError(message string, cause error) *Error {
	return &Error{Kind: ErrorKindTransientStorage, Message: message, Cause: cause}
}

// NewDataIntegrityError wraps a constraint violation
func NewDataIntegrityError(message string, cause error) *Error {
	return &Error{Kind: ErrorKindDataIntegrity, Message: message, Cause: cause}
}

// NewCredentialError wraps a credential rejection
func NewCredentialError(message string, cause error) *Error {
	return &Error{Kind: ErrorKindCredential, Message: message, Cause: cause}
}

// KindOf extracts the ErrorKind from err. Unclassified errors are treated
// as transient so they stay on the safe, retried path.
func KindOf(err error) ErrorKind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ErrorKindTransientStorage
}

// IsTransient returns true if the error should be retried
func IsTransient(err error) bool {
	return KindOf(err) == ErrorKindTransientStorage
}
