package model

import (
	"errors"
	"fmt"
)

type (
	// ProviderErrorKind classifies provider failures for retry and UX
	// decisions.
	ProviderErrorKind string

	// ProviderError describes a failure returned by a model provider. Adapters
	// return it (wrapping the SDK error) so callers can inspect failures
	// without importing provider SDKs.
	ProviderError struct {
		// Provider identifies the backend, e.g. "openai" or "bedrock".
		Provider string
		// Operation names the provider call, e.g. "converse_stream".
		Operation string
		// HTTPStatus is the response status code when known.
		HTTPStatus int
		// Kind is the coarse classification.
		Kind ProviderErrorKind
		// Code is the provider-specific error code when known.
		Code string
		// Message is the provider error message when known.
		Message string
		// Cause is the underlying SDK error.
		Cause error
	}
)

const (
	// ProviderErrorKindAuth indicates authentication or authorization failures.
	ProviderErrorKindAuth ProviderErrorKind = "auth"
	// ProviderErrorKindInvalidRequest indicates a request that will not succeed
	// if retried unchanged.
	ProviderErrorKindInvalidRequest ProviderErrorKind = "invalid_request"
	// ProviderErrorKindRateLimited indicates provider throttling.
	ProviderErrorKindRateLimited ProviderErrorKind = "rate_limited"
	// ProviderErrorKindUnavailable indicates a transient failure (5xx, network).
	ProviderErrorKindUnavailable ProviderErrorKind = "unavailable"
	// ProviderErrorKindUnknown indicates an unclassified failure.
	ProviderErrorKindUnknown ProviderErrorKind = "unknown"
)

// KindFromStatus maps an HTTP status code to a ProviderErrorKind.
func KindFromStatus(status int) ProviderErrorKind {
	switch {
	case status == 401 || status == 403:
		return ProviderErrorKindAuth
	case status == 429:
		return ProviderErrorKindRateLimited
	case status >= 500:
		return ProviderErrorKindUnavailable
	case status >= 400:
		return ProviderErrorKindInvalidRequest
	}
	return ProviderErrorKindUnknown
}

// Retryable reports whether retrying the unchanged request may succeed.
func (e *ProviderError) Retryable() bool {
	return e.Kind == ProviderErrorKindRateLimited || e.Kind == ProviderErrorKindUnavailable
}

func (e *ProviderError) Error() string {
	op := e.Operation
	if op == "" {
		op = "request"
	}
	status := ""
	if e.HTTPStatus > 0 {
		status = fmt.Sprintf("%d ", e.HTTPStatus)
	}
	code := ""
	if e.Code != "" {
		code = e.Code + ": "
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if msg == "" {
		msg = "provider error"
	}
	return fmt.Sprintf("%s %s %s(%s): %s", e.Provider, e.Kind, status, op, code+msg)
}

// Unwrap returns the underlying SDK error.
func (e *ProviderError) Unwrap() error { return e.Cause }

// Is makes rate limited provider errors match ErrRateLimited.
func (e *ProviderError) Is(target error) bool {
	return target == ErrRateLimited && e.Kind == ProviderErrorKindRateLimited
}

// AsProviderError returns the first ProviderError in err's chain, if any.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
