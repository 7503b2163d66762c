package api

import (
	"errors"
	"net/http"

	"github.com/okian/sessiontrack/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	errInvalidID   = errors.New("id must be an integer")
	errInvalidJSON = errors.New("request body must be a JSON object")
)

// Error codes written in error bodies.
const (
	codeBadRequest   = "bad_request"
	codeValidation   = "validation_error"
	codeNotFound     = "not_found"
	codeUnauthorized = "unauthorized"
	codeForbidden    = "forbidden"
	codeInternal     = "internal_error"
)

// opError ties an error to the handler operation that produced it. Kind is
// the sentinel used for status mapping; Err is the underlying cause.
type opError struct {
	Op   string
	Kind error
	Err  error
}

func (e *opError) Error() string {
	switch {
	case e.Err != nil:
		return e.Err.Error()
	case e.Kind != nil:
		return e.Kind.Error()
	default:
		return e.Op
	}
}

func (e *opError) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Wrap attaches op to err, keeping err's own kind.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{Op: op, Err: err}
}

// WrapKind attaches op and kind to err.
func WrapKind(op string, kind, err error) error {
	return &opError{Op: op, Kind: kind, Err: err}
}

// NewKind builds an error of kind for op with no further cause.
func NewKind(op string, kind error) error {
	return &opError{Op: op, Kind: kind}
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, codeBadRequest
	case errors.Is(err, types.ErrValidation):
		return http.StatusBadRequest, codeValidation
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, codeUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, codeForbidden
	default:
		return http.StatusInternalServerError, codeInternal
	}
}
