package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind partitions external-call failures by how the pipeline must react to them.
// Classification happens exactly once, at the HTTP-call boundary, from the actual
// status code; downstream code branches on Kind, never on message text.
type Kind string

const (
	// TransientExternal covers timeouts, 5xx and rate limiting. Retried with backoff.
	TransientExternal Kind = "transient_external"
	// AuthFatal covers rejected credentials. Terminal until an operator acts.
	AuthFatal Kind = "auth_fatal"
	// QuotaExhausted covers payment-required / insufficient-balance responses.
	QuotaExhausted Kind = "quota_exhausted"
	// ValidationFailure covers unparseable or malformed external responses.
	ValidationFailure Kind = "validation_failure"
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// FromStatusCode classifies a non-2xx response. The op tag names the external
// call for log and error-message context.
func FromStatusCode(op string, status int) *Error {
	err := fmt.Errorf("unexpected status %d", status)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &Error{Kind: AuthFatal, Op: op, Err: err}
	case status == http.StatusPaymentRequired:
		return &Error{Kind: QuotaExhausted, Op: op, Err: err}
	case status == http.StatusTooManyRequests || status >= 500:
		return &Error{Kind: TransientExternal, Op: op, Err: err}
	default:
		return &Error{Kind: ValidationFailure, Op: op, Err: err}
	}
}

// FromTransport classifies a failed round trip (DNS, dial, timeout).
func FromTransport(op string, err error) *Error {
	return &Error{Kind: TransientExternal, Op: op, Err: err}
}

// KindOf extracts the classification from an error chain. Everything
// unclassified, context cancellation included, falls to transient so the
// standard retry path applies.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return TransientExternal
}

// Retryable reports whether a failure of this kind should re-enter the queue.
func Retryable(kind Kind) bool {
	switch kind {
	case TransientExternal, ValidationFailure:
		return true
	default:
		return false
	}
}
