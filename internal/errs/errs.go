// Package errs holds the error taxonomy shared by the gateway client and the controllers.
package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind int

const (
	// KindNetworkOrServer covers transport failures and any status without a dedicated kind.
	KindNetworkOrServer Kind = iota
	// KindValidation is a client-side, field-level failure. It never reaches the network.
	KindValidation
	KindUnauthorized
	KindConflict
	KindBadRequest
	KindPaymentRequired
	// KindInvalidScore means the backend returned a score outside [0, 1].
	KindInvalidScore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindBadRequest:
		return "bad_request"
	case KindPaymentRequired:
		return "payment_required"
	case KindInvalidScore:
		return "invalid_score"
	default:
		return "network_or_server"
	}
}

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrUnauthorized    = &Error{Kind: KindUnauthorized}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrBadRequest      = &Error{Kind: KindBadRequest}
	ErrPaymentRequired = &Error{Kind: KindPaymentRequired}
	ErrNetworkOrServer = &Error{Kind: KindNetworkOrServer}
	ErrInvalidScore    = &Error{Kind: KindInvalidScore}
)

type Error struct {
	Kind Kind
	// Status is the HTTP status code when the error came from a response.
	Status  int
	Message string
	// Fields maps a field name to its validation message.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && len(e.Fields) > 0 {
		msg = e.fieldSummary()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func (e *Error) fieldSummary() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return strings.Join(parts, "; ")
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a client-side validation error. fields may be nil.
func Validation(message string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf reports the kind of err. Errors outside the taxonomy count as KindNetworkOrServer.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNetworkOrServer
}

// Message returns the human-readable part of err without the wrapped cause.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if len(e.Fields) > 0 {
			return e.fieldSummary()
		}
	}
	return err.Error()
}
