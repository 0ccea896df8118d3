package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// ErrorType is the category of a bootstrap failure.
type ErrorType int

const (
	// ErrTypeDescriptor means the descriptor was unreadable or invalid.
	ErrTypeDescriptor ErrorType = iota
	// ErrTypeNetwork is a general network failure.
	ErrTypeNetwork
	// ErrTypeTimeout means the lookup timed out.
	ErrTypeTimeout
	// ErrTypeConnectionRefused means nothing listened on the bot's port.
	ErrTypeConnectionRefused
	// ErrTypeDNS means the bot's host name did not resolve.
	ErrTypeDNS
	// ErrTypeHTTP is a non-200 lookup response.
	ErrTypeHTTP
	// ErrTypeParse means the lookup response was not an endpoint URL.
	ErrTypeParse
)

func (et ErrorType) String() string {
	switch et {
	case ErrTypeDescriptor:
		return "Descriptor Error"
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
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Error is a bootstrap failure.
type Error struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Endpoint   string
	Err        error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport-level error onto an *Error.
func ClassifyNetworkError(err error, endpoint string) *Error {
	if err == nil {
		return nil
	}

	if os.IsTimeout(err) {
		return &Error{Type: ErrTypeTimeout, Message: "request timed out", Endpoint: endpoint, Err: err, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &Error{
			Type:      ErrTypeDNS,
			Message:   fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Endpoint:  endpoint,
			Err:       err,
			Retryable: dnsErr.IsTemporary,
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return &Error{Type: ErrTypeConnectionRefused, Message: "bot refused connection", Endpoint: endpoint, Err: err, Retryable: true}
	}
	if errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return &Error{Type: ErrTypeNetwork, Message: "bot unreachable", Endpoint: endpoint, Err: err, Retryable: true}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ClassifyNetworkError(urlErr.Err, endpoint)
	}

	return &Error{Type: ErrTypeNetwork, Message: "network error", Endpoint: endpoint, Err: err, Retryable: true}
}

// NewNetworkError classifies err and replaces its message.
func NewNetworkError(message, endpoint string, err error) *Error {
	e := ClassifyNetworkError(err, endpoint)
	if e == nil {
		return &Error{Type: ErrTypeNetwork, Message: message, Endpoint: endpoint, Retryable: true}
	}
	e.Message = message
	return e
}

// NewHTTPError reports an unexpected status. Server errors are retryable.
func NewHTTPError(statusCode int, endpoint string) *Error {
	return &Error{
		Type:       ErrTypeHTTP,
		Message:    fmt.Sprintf("unexpected status code: %d", statusCode),
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError reports an unusable lookup response.
func NewParseError(message, endpoint string, err error) *Error {
	return &Error{Type: ErrTypeParse, Message: message, Endpoint: endpoint, Err: err}
}

// NewDescriptorError reports a bad descriptor.
func NewDescriptorError(message string, err error) *Error {
	return &Error{Type: ErrTypeDescriptor, Message: message, Err: err}
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsType reports whether err is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == t
}

// ShortMessage returns a one-line description suitable for the CLI.
func ShortMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Type {
	case ErrTypeDescriptor:
		return "Invalid bot descriptor: " + e.Message
	case ErrTypeTimeout:
		return "Bot not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Bot refused connection - is the server running?"
	case ErrTypeDNS:
		return "Cannot resolve bot hostname"
	case ErrTypeHTTP:
		return fmt.Sprintf("Bot endpoint lookup failed (HTTP %d)", e.StatusCode)
	case ErrTypeParse:
		return "Bot returned an invalid endpoint"
	default:
		return "Network error - check connection to the bot"
	}
}
