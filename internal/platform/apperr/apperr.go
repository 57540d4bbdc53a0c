// Package apperr defines the closed set of failure codes returned by the
// repository layer and the mapping from Postgres errors onto them.
package apperr

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Code is a stable, client-safe failure classification.
type Code string

const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeConflict               Code = "CONFLICT"
	CodeUnauthorized           Code = "UNAUTHORIZED"
	CodeUnknown                Code = "UNKNOWN"
	CodeNotImplemented         Code = "NOT_IMPLEMENTED"
	CodeUniqueViolationPrimary Code = "UNIQUE_VIOLATION_PRIMARY"
	CodeCheckViolation         Code = "CHECK_VIOLATION"
)

// GenericMessage is the only message ever shown to an end user for a failed
// load or save.
const GenericMessage = "Something went wrong. Please try again."

// Error is the error type returned across the repository boundary. The
// message carries only the operation and code; the driver error is kept as
// the cause for server-side logging.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return string(e.Code)
	}
	return e.Op + ": " + string(e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error with no underlying cause.
func New(op string, code Code) *Error {
	return &Error{Code: code, Op: op}
}

// Wrap returns an error classified as code that keeps err as its cause.
func Wrap(op string, code Code, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// NotFound is shorthand for New(op, CodeNotFound).
func NotFound(op string) *Error {
	return New(op, CodeNotFound)
}

// FromDB classifies a driver error. Errors that are already *Error keep
// their code. A nil error maps to nil.
func FromDB(op string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return Wrap(op, CodeNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if strings.Contains(pgErr.ConstraintName, "primary") {
				return Wrap(op, CodeUniqueViolationPrimary, err)
			}
			return Wrap(op, CodeConflict, err)
		case "23503":
			return Wrap(op, CodeConflict, err)
		case "23514":
			return Wrap(op, CodeCheckViolation, err)
		case "42501":
			return Wrap(op, CodeUnauthorized, err)
		case "P0002":
			return Wrap(op, CodeNotFound, err)
		case "0A000", "42883":
			return Wrap(op, CodeNotImplemented, err)
		}
	}

	return Wrap(op, CodeUnknown, err)
}

// CodeOf returns the code carried by err, CodeUnknown for foreign errors and
// the empty code for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps a code onto the response status used by the API.
func HTTPStatus(code Code) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeUniqueViolationPrimary:
		return http.StatusConflict
	case CodeCheckViolation:
		return http.StatusUnprocessableEntity
	case CodeUnauthorized:
		return http.StatusForbidden
	case CodeNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}
