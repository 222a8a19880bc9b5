package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a failed generation call.
type ErrorKind string

const (
	KindRateLimited    ErrorKind = "RATE_LIMITED"
	KindAuth           ErrorKind = "AUTH_ERROR"
	KindTimeout        ErrorKind = "TIMEOUT"
	KindUnavailable    ErrorKind = "UNAVAILABLE"
	KindEmptyResponse  ErrorKind = "EMPTY_RESPONSE"
	KindInvalidRequest ErrorKind = "INVALID_REQUEST"
)

// GenerationError is returned by every Generator implementation in this package.
type GenerationError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (generationError *GenerationError) Error() string {
	if generationError.StatusCode > 0 {
		return fmt.Sprintf("llm %s (status=%d): %s", generationError.Kind, generationError.StatusCode, generationError.Message)
	}
	return fmt.Sprintf("llm %s: %s", generationError.Kind, generationError.Message)
}

func (generationError *GenerationError) Unwrap() error { return generationError.Err }

// Permanent reports whether repeating the request cannot help.
func (generationError *GenerationError) Permanent() bool {
	return generationError.Kind == KindAuth || generationError.Kind == KindInvalidRequest
}

// Transient reports whether the transport may succeed when the same request is repeated.
func (generationError *GenerationError) Transient() bool {
	switch generationError.Kind {
	case KindRateLimited, KindTimeout, KindUnavailable:
		return true
	default:
		return false
	}
}

// KindOf extracts the error kind; unclassified errors are UNAVAILABLE.
func KindOf(err error) ErrorKind {
	var generationError *GenerationError
	if errors.As(err, &generationError) {
		return generationError.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnavailable
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuth
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		return KindTimeout
	case statusCode >= 500:
		return KindUnavailable
	case statusCode >= 400:
		return KindInvalidRequest
	default:
		return KindUnavailable
	}
}

func statusError(statusCode int, message string) *GenerationError {
	return &GenerationError{Kind: KindForStatus(statusCode), StatusCode: statusCode, Message: message}
}

func emptyResponse(message string) *GenerationError {
	return &GenerationError{Kind: KindEmptyResponse, Message: message}
}

// transportError classifies failures that happen before a response is received. Cancellation
// is returned unchanged so callers stop immediately.
func transportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var networkError net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &networkError) && networkError.Timeout()) {
		return &GenerationError{Kind: KindTimeout, Message: err.Error(), Err: err}
	}
	return &GenerationError{Kind: KindUnavailable, Message: err.Error(), Err: err}
}
