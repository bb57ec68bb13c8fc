package cookieauth

import (
	"errors"
	"net/http"
)

// Kind classifies an Engine failure. Each kind maps to one HTTP status.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindConflict
	KindNotFound
	KindTooManyRequests
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindTooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}

// HTTPStatus is the response status for errors of this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels matching any *Error of the corresponding kind with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrTooManyRequests = errors.New("too many requests")
	ErrInternal        = errors.New("internal error")
)

// Machine-readable error codes carried in Error.Code.
const (
	CodeInvalidAccessToken      = "InvalidAccessToken"
	CodeExpiredVerificationCode = "ExpiredVerificationCode"
)

// FieldViolation names one invalid input field.
type FieldViolation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error is the typed failure returned by every Engine operation.
//
// Message is safe to show to end users except for KindInternal, whose message
// is meant for logs only.
type Error struct {
	Kind    Kind
	Message string
	Code    string
	Fields  []FieldViolation
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindUnauthorized:
		return ErrUnauthorized
	case KindConflict:
		return ErrConflict
	case KindNotFound:
		return ErrNotFound
	case KindTooManyRequests:
		return ErrTooManyRequests
	default:
		return ErrInternal
	}
}

// KindOf reports the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

func validationError(fields []FieldViolation) *Error {
	return &Error{Kind: KindValidation, Message: "Invalid request", Fields: fields}
}

func unauthorized(message string, cause error) *Error {
	return newError(KindUnauthorized, message, cause)
}

func notFound(message string, cause error) *Error {
	return newError(KindNotFound, message, cause)
}

func internal(message string, cause error) *Error {
	return newError(KindInternal, message, cause)
}

func (e *Error) withCode(code string) *Error {
	e.Code = code
	return e
}
