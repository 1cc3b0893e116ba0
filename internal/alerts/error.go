// Package alerts defines the error taxonomy shared across the protocol
// stack and, once a session is established, the TLS alert wire messages
// derived from it.
//
// Grounded on original_source/src/tls_result.rs (the TlsErrorKind/TlsError
// pair) and original_source/src/alert.rs (the Kind -> AlertDescription
// mapping), generalized into a single Go error type usable with the
// standard errors.Is/errors.As idiom.
package alerts

import "fmt"

// Kind classifies a failure into one of the semantic classes spec.md §7
// names. Every sub-operation in this module returns a *Error with one of
// these kinds (or a bare I/O error that the caller wraps into IoFailure).
type Kind int

const (
	UnexpectedMessage Kind = iota
	BadRecordMac
	RecordOverflow
	IllegalParameter
	DecodeError
	DecryptError
	InternalError

	// IoFailure and AlertReceived never produce an outbound alert: a
	// transport error means there's likely nobody listening, and a
	// received alert is itself the peer's own signal.
	IoFailure
	AlertReceived
)

func (k Kind) String() string {
	switch k {
	case UnexpectedMessage:
		return "unexpected message"
	case BadRecordMac:
		return "record has bad mac and/or encryption"
	case RecordOverflow:
		return "record too long"
	case IllegalParameter:
		return "illegal parameter during handshake"
	case DecodeError:
		return "cannot decode message"
	case DecryptError:
		return "failed to verify signature/message"
	case InternalError:
		return "internal error"
	case IoFailure:
		return "i/o error"
	case AlertReceived:
		return "received an alert"
	default:
		return "unknown error kind"
	}
}

// Error is the single error type used throughout this module. It carries
// a Kind (for alert-mapping and errors.Is comparisons against the sentinel
// Kind values) plus a human-readable detail and an optional wrapped cause.
// AlertDesc is only meaningful when Kind is AlertReceived: it carries the
// peer's alert description through so callers can tell a clean
// close_notify apart from every other (fatal, per spec.md §3) alert.
type Error struct {
	Kind      Kind
	Detail    string
	Cause     error
	AlertDesc AlertDescription
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...), Cause: cause}
}

// NewAlertReceived wraps a peer's Alert as an AlertReceived error,
// retaining its description. The record and session layers use AlertDesc
// to decide whether the peer merely closed the connection (close_notify)
// or signaled a genuine fatal condition - every other description must
// surface as an error, never as a clean EOF.
func NewAlertReceived(a Alert) *Error {
	return &Error{
		Kind:      AlertReceived,
		Detail:    fmt.Sprintf("alert: level=%d description=%d", a.Level, a.Description),
		AlertDesc: a.Description,
	}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, SomeKind) work by comparing against a bare Kind
// value wrapped in an Error of its own - e.g. errors.Is(err, &Error{Kind: BadRecordMac}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}
