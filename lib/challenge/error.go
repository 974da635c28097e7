package challenge

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/TecharoHQ/codegate/internal"
	"github.com/TecharoHQ/codegate/lib/session"
)

// Kind classifies challenge failures.
type Kind string

const (
	KindNotEmpty             Kind = "not_empty"
	KindNotFoundInCache      Kind = "not_found_in_cache"
	KindExpired              Kind = "expired"
	KindMismatch             Kind = "mismatch"
	KindIllegalChallengeType Kind = "illegal_challenge_type"
	KindGenerationFailure    Kind = "generation_failure"
	KindParameterError       Kind = "parameter_error"
	KindUnexpected           Kind = "unexpected"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrNotEmpty             = errors.New("challenge: submitted value is empty")
	ErrNotFoundInCache      = errors.New("challenge: no challenge issued for this session")
	ErrExpired              = errors.New("challenge: challenge expired")
	ErrMismatch             = errors.New("challenge: submitted value does not match")
	ErrIllegalChallengeType = errors.New("challenge: no processor for challenge type")
	ErrGenerationFailure    = errors.New("challenge: can't issue challenge")
	ErrParameterError       = errors.New("challenge: invalid parameter")
	ErrUnexpected           = errors.New("challenge: unexpected failure")
)

var (
	ErrNoSession     = errors.New("challenge: request has no session")
	ErrDeliveryPanic = errors.New("challenge: delivery panicked")
)

func (k Kind) sentinel() error {
	switch k {
	case KindNotEmpty:
		return ErrNotEmpty
	case KindNotFoundInCache:
		return ErrNotFoundInCache
	case KindExpired:
		return ErrExpired
	case KindMismatch:
		return ErrMismatch
	case KindIllegalChallengeType:
		return ErrIllegalChallengeType
	case KindGenerationFailure:
		return ErrGenerationFailure
	case KindParameterError:
		return ErrParameterError
	default:
		return ErrUnexpected
	}
}

// StatusCode is the HTTP status a failure handler should answer with.
func (k Kind) StatusCode() int {
	switch k {
	case KindNotEmpty, KindParameterError:
		return http.StatusBadRequest
	case KindNotFoundInCache, KindExpired, KindMismatch:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// NewError builds an *Error of the given kind. PublicReason defaults to the
// kind's sentinel text.
func NewError(kind Kind, t Type, privateReason error) *Error {
	return &Error{
		Kind:          kind,
		Type:          t,
		PublicReason:  kind.sentinel().Error(),
		PrivateReason: privateReason,
		StatusCode:    kind.StatusCode(),
	}
}

// Error is the failure value every challenge operation returns. It carries
// audit context but never the expected or submitted code.
type Error struct {
	PrivateReason error
	Kind          Kind
	Type          Type
	SessionID     string
	RemoteIP      string
	Field         string
	PublicReason  string
	StatusCode    int
}

func (e *Error) Error() string {
	if e.PrivateReason == nil {
		return fmt.Sprintf("challenge: %s: %s", e.Type, e.Kind)
	}
	return fmt.Sprintf("challenge: %s: %s: %v", e.Type, e.Kind, e.PrivateReason)
}

func (e *Error) Unwrap() error {
	return e.PrivateReason
}

// Is matches the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// WithField records the offending parameter name.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithRequest fills the audit context from r without overwriting values that
// are already set.
func (e *Error) WithRequest(r *http.Request) *Error {
	if r == nil {
		return e
	}

	if e.RemoteIP == "" {
		e.RemoteIP = internal.RemoteIP(r)
	}

	if e.SessionID == "" {
		if sess, ok := session.FromContext(r.Context()); ok {
			e.SessionID = sess.ID()
		}
	}

	return e
}

func (e *Error) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("kind", string(e.Kind)),
		slog.String("type", string(e.Type)),
		slog.String("session", internal.SessionRef(e.SessionID)),
		slog.String("remote_ip", e.RemoteIP),
	}

	if e.Field != "" {
		attrs = append(attrs, slog.String("field", e.Field))
	}

	if e.PrivateReason != nil {
		attrs = append(attrs, slog.String("reason", e.PrivateReason.Error()))
	}

	return slog.GroupValue(attrs...)
}

// AsError converts any error into an *Error. Errors that already are one are
// returned as is; everything else becomes kind fallback.
func AsError(err error, t Type, fallback Kind) *Error {
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr
	}

	return NewError(fallback, t, err)
}
