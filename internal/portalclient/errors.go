package portalclient

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType is the category of a portal client failure
type ErrorType int

const (
	// ErrTypeNetwork is a connection-level failure
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout is a request that did not complete in time
	ErrTypeTimeout
	// ErrTypeConnectionRefused means nothing is listening on the portal port
	ErrTypeConnectionRefused
	// ErrTypeDNS is a hostname resolution failure
	ErrTypeDNS
	// ErrTypeHTTP is an unexpected status code
	ErrTypeHTTP
	// ErrTypeParse is a malformed response body
	ErrTypeParse
	// ErrTypeRejected means the portal refused the submitted credentials
	ErrTypeRejected
)

func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeRejected:
		return "Rejected"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// PortalError is returned by every Client operation
type PortalError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Err        error
	Retryable  bool
}

func (e *PortalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *PortalError) Unwrap() error {
	return e.Err
}

// classifyNetworkError maps a transport error to a PortalError
func classifyNetworkError(message string, err error) *PortalError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	pe := &PortalError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: true}

	var dnsErr *net.DNSError
	switch {
	case os.IsTimeout(err):
		pe.Type = ErrTypeTimeout
	case errors.As(err, &dnsErr):
		pe.Type = ErrTypeDNS
		pe.Retryable = false
	case errors.Is(err, syscall.ECONNREFUSED):
		pe.Type = ErrTypeConnectionRefused
	}
	return pe
}

func newHTTPError(status int, body string) *PortalError {
	msg := fmt.Sprintf("unexpected status %d", status)
	if body = strings.TrimSpace(body); body != "" {
		msg += ": " + body
	}
	return &PortalError{
		Type:       ErrTypeHTTP,
		Message:    msg,
		StatusCode: status,
		Retryable:  status >= 500,
	}
}

func newParseError(message string, err error) *PortalError {
	return &PortalError{Type: ErrTypeParse, Message: message, Err: err}
}

func newRejectedError(status int, body string) *PortalError {
	return &PortalError{
		Type:       ErrTypeRejected,
		Message:    stripTags(body),
		StatusCode: status,
	}
}

// IsRetryable reports whether err is worth another attempt
func IsRetryable(err error) bool {
	var pe *PortalError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsUnreachable reports whether err means the portal could not be reached
// at all
func IsUnreachable(err error) bool {
	var pe *PortalError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Type {
	case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS:
		return true
	}
	return false
}

// IsRejected reports whether the portal refused the submitted credentials
func IsRejected(err error) bool {
	var pe *PortalError
	return errors.As(err, &pe) && pe.Type == ErrTypeRejected
}

// ShortMessage returns a one-line description suitable for CLI output
func ShortMessage(err error) string {
	var pe *PortalError
	if !errors.As(err, &pe) {
		return err.Error()
	}

	switch pe.Type {
	case ErrTypeTimeout:
		return "Portal not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Portal refused connection - is the device in setup mode?"
	case ErrTypeDNS:
		return "Cannot resolve portal hostname"
	case ErrTypeNetwork:
		return "Network error - are you joined to the setup access point?"
	case ErrTypeHTTP:
		return fmt.Sprintf("Portal error (HTTP %d)", pe.StatusCode)
	case ErrTypeParse:
		return "Failed to parse portal response"
	case ErrTypeRejected:
		return "Portal rejected the credentials: " + pe.Message
	default:
		return pe.Message
	}
}

// stripTags reduces a one-element HTML body such as "<h1>text</h1>" to its
// text
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
