// Package errs defines the error taxonomy shared by the session core and the
// HTTP surface.
package errs

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAlreadyExists
	KindCapacity
	KindProtocol
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "VALIDATION"
	case KindNotFound:
		return "NOT_FOUND"
	case KindAlreadyExists:
		return "ALREADY_EXISTS"
	case KindCapacity:
		return "CAPACITY"
	case KindProtocol:
		return "PROTOCOL"
	case KindPersistence:
		return "PERSISTENCE"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps the kind to the status code returned by the admin API.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists:
		return http.StatusConflict
	case KindCapacity:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Cause may be nil.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind Kind, cause error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func Validation(format string, args ...interface{}) error {
	return newError(KindValidation, nil, format, args...)
}

func NotFound(format string, args ...interface{}) error {
	return newError(KindNotFound, nil, format, args...)
}

func AlreadyExists(id string) error {
	return newError(KindAlreadyExists, nil, "instance %s already exists", id)
}

func Capacity(limit int) error {
	return newError(KindCapacity, nil, "instance limit of %d reached", limit)
}

func Protocol(cause error, format string, args ...interface{}) error {
	return newError(KindProtocol, errors.WithStack(cause), format, args...)
}

func Persistence(cause error, format string, args ...interface{}) error {
	return newError(KindPersistence, errors.WithStack(cause), format, args...)
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
