// Package fault defines the error taxonomy shared by the wiki adapter and the
// MCP tool surface. Every failure that crosses a package boundary is one of
// the five kinds below, carrying a human-readable message and an optional
// actionable hint.
package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure.
type Kind string

const (
	// NotFound: the title has no corresponding page, even after
	// case-insensitive resolution.
	NotFound Kind = "NotFound"
	// InvalidArgument: a missing or empty required field, or a malformed
	// value supplied by the caller.
	InvalidArgument Kind = "InvalidArgument"
	// Unauthorized: a write was attempted without valid credentials or
	// without the configured write token.
	Unauthorized Kind = "Unauthorized"
	// RemoteRejected: the wiki API itself declined the operation
	// (permissions, edit conflict, spam filter, bad token).
	RemoteRejected Kind = "RemoteRejected"
	// Unreachable: the wiki could not be contacted — DNS, TLS, connection
	// or timeout failure, or a 5xx response.
	Unreachable Kind = "Unreachable"
)

// HTTPStatus maps the kind to its transport-level status code equivalent.
func (k Kind) HTTPStatus() int {
	switch k {
	case NotFound:
		return http.StatusNotFound
	case InvalidArgument:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case RemoteRejected:
		return http.StatusBadGateway
	case Unreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Fault is a classified error. The zero Hint is omitted from wire payloads.
type Fault struct {
	Kind    Kind
	Message string
	Hint    string
	cause   error
}

func (f *Fault) Error() string {
	if f.cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Fault) Unwrap() error {
	return f.cause
}

// New returns a fault with the given kind and message.
func New(kind Kind, message string) *Fault {
	return &Fault{Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf formatting.
func Newf(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error under the given kind.
func Wrap(kind Kind, message string, cause error) *Fault {
	return &Fault{Kind: kind, Message: message, cause: cause}
}

// WithHint attaches a hint to err if it is a Fault; otherwise err is
// returned unchanged.
func WithHint(err error, hint string) error {
	var f *Fault
	if errors.As(err, &f) {
		clone := *f
		clone.Hint = hint
		return &clone
	}
	return err
}

// KindOf reports the kind of err, or false if err carries no Fault.
func KindOf(err error) (Kind, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// IsKind reports whether err is a Fault of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsUnreachable is the retry predicate for read operations.
func IsUnreachable(err error) bool {
	return IsKind(err, Unreachable)
}

// Response is the wire payload shape for a failed operation. It is carried
// in the result body on every transport so that non-HTTP channels keep the
// full kind and hint.
type Response struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ResponseFor normalizes any error into a Response. Errors that escaped
// classification are reported as RemoteRejected — the adapter boundary is
// supposed to make that impossible.
func ResponseFor(err error) Response {
	var f *Fault
	if errors.As(err, &f) {
		return Response{Kind: f.Kind, Message: f.Message, Hint: f.Hint}
	}
	return Response{Kind: RemoteRejected, Message: err.Error()}
}

// StatusFor returns the transport status for any error, applying the same
// normalization as ResponseFor.
func StatusFor(err error) int {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind.HTTPStatus()
	}
	return RemoteRejected.HTTPStatus()
}
