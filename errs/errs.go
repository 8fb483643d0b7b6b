// Package errs provides the structured error taxonomy shared across QuoteGate.
package errs

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// Kind identifies an error category in the upstream-facing taxonomy.
type Kind string

const (
	// KindAuthenticationFailed indicates missing or invalid credentials.
	KindAuthenticationFailed Kind = "AUTHENTICATION_FAILED"
	// KindAuthorizationFailed indicates the session is valid but not authorized.
	KindAuthorizationFailed Kind = "AUTHORIZATION_FAILED"
	// KindPermissionDenied indicates the upstream refused access to the resource.
	KindPermissionDenied Kind = "PERMISSION_DENIED"
	// KindRateLimited indicates the request exceeded upstream rate limits.
	KindRateLimited Kind = "RATE_LIMITED"
	// KindTimeout indicates the operation exceeded its deadline.
	KindTimeout Kind = "TIMEOUT"
	// KindUpstreamUnavailable indicates a transient upstream-side failure.
	KindUpstreamUnavailable Kind = "UPSTREAM_UNAVAILABLE"
	// KindValidation indicates invalid input provided by the caller.
	KindValidation Kind = "VALIDATION_ERROR"
	// KindUnknown captures uncategorized failures.
	KindUnknown Kind = "UNKNOWN"
)

// Retryable reports the default retry disposition for the kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindTimeout, KindUpstreamUnavailable:
		return true
	default:
		return false
	}
}

// E captures structured error information produced across the QuoteGate stack.
type E struct {
	Kind           Kind
	Message        string
	Retryable      bool
	DebugHints     []string
	UpstreamStatus int

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given kind. The retryable flag
// defaults to the kind's disposition and can be overridden per error.
func New(kind Kind, opts ...Option) *E {
	e := &E{
		Kind:           kind,
		Message:        "",
		Retryable:      kind.Retryable(),
		DebugHints:     nil,
		UpstreamStatus: 0,
		cause:          nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a safe, user-facing message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithRetryable overrides the retry disposition inherited from the kind.
func WithRetryable(retryable bool) Option {
	return func(e *E) {
		e.Retryable = retryable
	}
}

// WithHint appends a debug hint. Hints are diagnostic only and never shown to
// end users.
func WithHint(hint string) Option {
	trimmed := strings.TrimSpace(hint)
	return func(e *E) {
		if trimmed == "" {
			return
		}
		e.DebugHints = append(e.DebugHints, trimmed)
	}
}

// WithUpstreamStatus records the HTTP status returned by the upstream API.
func WithUpstreamStatus(status int) Option {
	return func(e *E) {
		e.UpstreamStatus = status
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	kind := strings.TrimSpace(string(e.Kind))
	if kind == "" {
		kind = string(KindUnknown)
	}
	parts = append(parts, "kind="+kind)
	parts = append(parts, "retryable="+strconv.FormatBool(e.Retryable))

	if e.UpstreamStatus > 0 {
		parts = append(parts, "upstream_status="+strconv.Itoa(e.UpstreamStatus))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if len(e.DebugHints) > 0 {
		quoted := make([]string, 0, len(e.DebugHints))
		for _, h := range e.DebugHints {
			quoted = append(quoted, strconv.Quote(h))
		}
		parts = append(parts, "hints="+strings.Join(quoted, ","))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Classify maps an arbitrary error into the taxonomy, returning the kind and
// whether the failure may be retried. Structured envelopes carry their own
// disposition; unclassified errors are sniffed for auth-flavored messages and
// otherwise treated as transient upstream failures.
func Classify(err error) (Kind, bool) {
	if err == nil {
		return KindUnknown, false
	}
	var e *E
	if errors.As(err, &e) {
		return e.Kind, e.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, true
	}
	if errors.Is(err, context.Canceled) {
		return KindTimeout, false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"auth", "permission", "forbidden", "unauthorized"} {
		if strings.Contains(msg, marker) {
			return KindPermissionDenied, false
		}
	}
	return KindUpstreamUnavailable, true
}

// Validation returns a non-retryable validation error with the given message.
func Validation(msg string) *E {
	return New(KindValidation, WithMessage(strings.TrimSpace(msg)))
}
