package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/intake/internal/platform/apperr"
)

// ErrorBody is the JSON error envelope returned by the API.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// fieldErrors is implemented by validation failures.
type fieldErrors interface {
	FieldErrors() map[string]string
}

// ErrorHandler renders handler errors. Repository errors become the generic
// message with a status derived from their code, validation failures list
// the offending fields, and echo errors keep their status. Causes are logged
// server-side only.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := describe(err)
		if status >= 500 {
			rid, _ := c.Get("request_id").(string)
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("route", c.Path()).
				Str("code", body.Error.Code).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

func describe(err error) (int, ErrorBody) {
	var fe fieldErrors
	if errors.As(err, &fe) {
		return http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
			Code:    "VALIDATION",
			Message: "Please correct the highlighted fields.",
			Fields:  fe.FieldErrors(),
		}}
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return apperr.HTTPStatus(appErr.Code), ErrorBody{Error: ErrorDetail{
			Code:    string(appErr.Code),
			Message: apperr.GenericMessage,
		}}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg, ok := httpErr.Message.(string)
		if !ok || httpErr.Code >= 500 {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, ErrorBody{Error: ErrorDetail{
			Code:    statusCode(httpErr.Code),
			Message: msg,
		}}
	}

	return http.StatusInternalServerError, ErrorBody{Error: ErrorDetail{
		Code:    string(apperr.CodeUnknown),
		Message: apperr.GenericMessage,
	}}
}

func statusCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "BAD_REQUEST"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return string(apperr.CodeUnauthorized)
	case http.StatusNotFound:
		return string(apperr.CodeNotFound)
	case http.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	case http.StatusGatewayTimeout:
		return "TIMEOUT"
	default:
		return string(apperr.CodeUnknown)
	}
}
