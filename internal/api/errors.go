package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lib/pq"
	"github.com/npezzotti/isupipe/internal/reservation"
	"github.com/npezzotti/isupipe/internal/session"
)

type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}

	return e.Message
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

// WithMessage replaces the generic status text with msg.
func (e *ApiError) WithMessage(msg string) *ApiError {
	e.Message = msg
	return e
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NewBadRequestError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusBadRequest,
		Message:    lower(http.StatusText(http.StatusBadRequest)),
	}
}

func NewNotFoundError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusNotFound,
		Message:    lower(http.StatusText(http.StatusNotFound)),
	}
}

func NewInternalServerError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewUnauthorizedError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusUnauthorized,
		Message:    lower(http.StatusText(http.StatusUnauthorized)),
	}
}

func NewForbiddenError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusForbidden,
		Message:    lower(http.StatusText(http.StatusForbidden)),
	}
}

func NewConflictError() *ApiError {
	return &ApiError{
		StatusCode: http.StatusConflict,
		Message:    lower(http.StatusText(http.StatusConflict)),
	}
}

func NewServiceUnavailableError(err error) *ApiError {
	return &ApiError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    lower(http.StatusText(http.StatusServiceUnavailable)),
		Err:        err,
	}
}

// toApiError maps an error returned from the store or a domain package to
// the response the client sees. Anything unrecognised, including data
// integrity errors, is an internal error.
func toApiError(err error) *ApiError {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var pqErr *pq.Error
	switch {
	case errors.Is(err, reservation.ErrOutOfTerm),
		errors.Is(err, reservation.ErrPartialSlot),
		errors.Is(err, reservation.ErrSlotExhausted):
		return NewBadRequestError().WithMessage(err.Error())
	case errors.Is(err, session.ErrSessionExpired):
		return NewForbiddenError().WithMessage(session.ErrSessionExpired.Error())
	case errors.Is(err, session.ErrUnauthenticated):
		return NewForbiddenError().WithMessage(strings.TrimSuffix(err.Error(), ": "+session.ErrUnauthenticated.Error()))
	case errors.Is(err, sql.ErrNoRows):
		return NewNotFoundError()
	case errors.As(err, &pqErr) && pqErr.Code == "23505":
		return NewConflictError()
	default:
		return NewInternalServerError(err)
	}
}
