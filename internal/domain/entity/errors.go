package entity

import (
	"errors"
	"fmt"
)

// Kind classifies a TaggedError into one of the closed taxonomy categories.
// Callers route on Kind (and Code) rather than on message text.
type Kind int

const (
	// KindValidation indicates malformed input or output against a declared shape.
	KindValidation Kind = iota + 1

	// KindNetwork indicates a connection failure or timeout reaching a backend.
	KindNetwork

	// KindService indicates the remote endpoint was reachable but signaled failure.
	KindService

	// KindNotFound indicates an unknown tool or provider.
	KindNotFound

	// KindProvider indicates a provider-level wrapping of any underlying cause,
	// carrying tool/provider routing context.
	KindProvider
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNetwork:
		return "network"
	case KindService:
		return "service"
	case KindNotFound:
		return "not_found"
	case KindProvider:
		return "provider"
	default:
		return "unknown"
	}
}

// Stable machine-readable error codes. Tests and the HTTP layer assert on these,
// never on message text.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidParameters = "INVALID_PARAMETERS"
	CodeNetwork           = "NETWORK_ERROR"
	CodeTimeout           = "TIMEOUT"
	CodeService           = "SERVICE_ERROR"
	CodeExtraction        = "EXTRACTION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeToolNotFound      = "TOOL_NOT_FOUND"
	CodeProviderNotFound  = "PROVIDER_NOT_FOUND"
	CodeProvider          = "PROVIDER_ERROR"
)

// HTTPStatusCode returns the code for a non-2xx HTTP response, e.g. "HTTP_503".
func HTTPStatusCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// ParseHTTPStatus extracts the status from an "HTTP_<status>" code.
// It returns false for every other code.
func ParseHTTPStatus(code string) (int, bool) {
	var status int
	if _, err := fmt.Sscanf(code, "HTTP_%d", &status); err != nil {
		return 0, false
	}
	return status, true
}

// TaggedError is the taxonomy error carried across every component boundary.
// It is immutable once constructed and propagated by value; re-wrapping nests
// the prior error under Cause so the full causal chain stays inspectable.
type TaggedError struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

// Error returns the formatted error message including the stable code.
func (e *TaggedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
}

// Unwrap exposes the nested cause for errors.Is/errors.As traversal.
func (e *TaggedError) Unwrap() error {
	return e.Cause
}

// NewValidationError reports a value that failed shape validation.
func NewValidationError(code, message string, cause error) *TaggedError {
	return &TaggedError{Kind: KindValidation, Code: code, Message: message, Cause: cause}
}

// NewNetworkError reports a connection-level failure or timeout.
func NewNetworkError(code, message string, cause error) *TaggedError {
	return &TaggedError{Kind: KindNetwork, Code: code, Message: message, Cause: cause}
}

// NewServiceError reports a reachable backend that signaled failure.
func NewServiceError(code, message string, cause error) *TaggedError {
	return &TaggedError{Kind: KindService, Code: code, Message: message, Cause: cause}
}

// NewNotFoundError reports an unknown tool or provider.
func NewNotFoundError(code, message string) *TaggedError {
	return &TaggedError{Kind: KindNotFound, Code: code, Message: message}
}

// NewProviderError wraps any underlying cause with tool/provider routing context.
func NewProviderError(message string, cause error) *TaggedError {
	return &TaggedError{Kind: KindProvider, Code: CodeProvider, Message: message, Cause: cause}
}

// AsTagged returns the outermost TaggedError in err's chain, or (nil, false).
func AsTagged(err error) (*TaggedError, bool) {
	var te *TaggedError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsTagged reports whether err is already a taxonomy error. Non-taxonomy errors
// crossing a provider boundary must be wrapped with NewProviderError.
func IsTagged(err error) bool {
	_, ok := AsTagged(err)
	return ok
}

// CodeOf returns the stable code of the outermost taxonomy error in the chain,
// or an empty string for foreign errors.
func CodeOf(err error) string {
	if te, ok := AsTagged(err); ok {
		return te.Code
	}
	return ""
}

// KindOf returns the kind of the outermost taxonomy error in the chain,
// or zero for foreign errors.
func KindOf(err error) Kind {
	if te, ok := AsTagged(err); ok {
		return te.Kind
	}
	return 0
}

// HasCode reports whether any taxonomy error in err's chain carries the code.
// Identity is by code + kind, so comparing codes is stable across re-wraps.
func HasCode(err error, code string) bool {
	for err != nil {
		var te *TaggedError
		if !errors.As(err, &te) {
			return false
		}
		if te.Code == code {
			return true
		}
		err = te.Cause
	}
	return false
}
