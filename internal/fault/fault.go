package fault

import (
	"errors"
	"fmt"
)

// Kind represents the category of failure that occurred
type Kind int

const (
	// Unknown indicates an error that was not produced by this module
	Unknown Kind = iota
	// StorageUnavailable indicates the backing storage could not be mounted
	StorageUnavailable
	// NoCredentials indicates the credential store is empty
	NoCredentials
	// ConnectionTimeout indicates a single join attempt did not complete in time
	ConnectionTimeout
	// AllCredentialsExhausted indicates every stored network failed in one pass
	AllCredentialsExhausted
	// InvalidInput indicates a request was rejected at the boundary (empty SSID)
	InvalidInput
	// PersistenceFailure indicates a write to durable storage failed
	PersistenceFailure
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case StorageUnavailable:
		return "Storage Unavailable"
	case NoCredentials:
		return "No Credentials"
	case ConnectionTimeout:
		return "Connection Timeout"
	case AllCredentialsExhausted:
		return "All Credentials Exhausted"
	case InvalidInput:
		return "Invalid Input"
	case PersistenceFailure:
		return "Persistence Failure"
	case Unknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is a classified failure. None of these escape to the embedding
// application except the StorageUnavailable error returned from Begin; the
// rest are logged and recovered locally.
type Error struct {
	Kind    Kind   // Category of failure
	Op      string // Operation that failed (e.g. "credentials.save")
	Message string // Human-readable detail
	Err     error  // Underlying error (if any)
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap creates a classified error around an underlying cause
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or Unknown
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind anywhere in its chain
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
