// Package clmmerr defines the stable error-kind taxonomy shared by every
// layer of the strategy engine, from pure math up through the live
// executor. Callers classify failures with errors.Is against the Kind
// sentinels rather than parsing messages.
package clmmerr

import "errors"

// Kind tags an error with its handling category. The set is closed:
// math and constructors raise InvalidInput/Overflow synchronously;
// collaborator clients raise Unavailable/Conflict; live policy raises
// Rejected; multi-phase executors raise Partial.
type Kind string

const (
	// InvalidInput marks malformed input: non-positive price, degenerate
	// range, negative capital. Never retried.
	InvalidInput Kind = "invalid_input"
	// Overflow marks fixed-point or integer overflow. Fatal for the
	// operation that raised it.
	Overflow Kind = "overflow"
	// Unavailable marks a collaborator call that failed or timed out.
	// Retried by RPC callers up to a small fixed bound with backoff.
	Unavailable Kind = "unavailable"
	// Conflict marks on-chain state diverging from cached expectations.
	Conflict Kind = "conflict"
	// Rejected marks a policy refusal: circuit breaker open, not
	// profitable, manual trip.
	Rejected Kind = "rejected"
	// Partial marks a multi-step executor that completed some phases but
	// not all.
	Partial Kind = "partial"
)

// Error wraps an underlying error with a stable Kind and the operation
// name that raised it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + string(e.Kind)
	}
	return e.Op + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, SomeKindSentinel) work by comparing Kind values
// when the target is itself a *Error carrying only a Kind.
func (e *Error) Is(target error) bool {
	var k *Error
	if errors.As(target, &k) {
		return e.Kind == k.Kind
	}
	return false
}

// New builds an *Error for the given op/kind, optionally wrapping cause.
func New(op string, kind Kind, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// sentinel returns a bare *Error used only as an errors.Is target, e.g.
// errors.Is(err, clmmerr.KindUnavailable).
func sentinel(k Kind) *Error { return &Error{Kind: k} }

// Sentinels for errors.Is comparisons, e.g. errors.Is(err, clmmerr.KindRejected).
var (
	KindInvalidInput = sentinel(InvalidInput)
	KindOverflow     = sentinel(Overflow)
	KindUnavailable  = sentinel(Unavailable)
	KindConflict     = sentinel(Conflict)
	KindRejected     = sentinel(Rejected)
	KindPartial      = sentinel(Partial)
)

// Of reports the Kind of err if it (or something it wraps) is an *Error,
// and ok=true. Otherwise returns ("", false).
func Of(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
