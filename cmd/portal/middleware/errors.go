package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/logger"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    apperr.Code    `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusFor maps an error code to its HTTP status
func StatusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidTransition, apperr.CodeInvalidSelectionSize, apperr.CodeInvalidArgument:
		return http.StatusUnprocessableEntity
	case apperr.CodeUnauthorized:
		return http.StatusForbidden
	case apperr.CodeObjectionsPending, apperr.CodeConcurrencyConflict:
		return http.StatusConflict
	case apperr.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders errors returned by handlers. Untyped errors are
// classified with apperr.CodeOf; internal failures are logged and masked.
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			body ErrorResponse
			he   *echo.HTTPError
			ae   *apperr.Error
		)
		switch {
		case errors.As(err, &ae):
			body = ErrorResponse{Error: ae.Message, Code: ae.Code, Details: apperr.DetailsOf(err)}
		case errors.As(err, &he):
			body = ErrorResponse{Error: http.StatusText(he.Code), Code: codeForStatus(he.Code)}
			if msg, ok := he.Message.(string); ok {
				body.Error = msg
			}
		default:
			// wrapped store sentinels or plain failures
			body = ErrorResponse{Error: err.Error(), Code: apperr.CodeOf(err)}
		}

		status := StatusFor(body.Code)
		if he != nil && ae == nil {
			status = he.Code
		}

		if status >= http.StatusInternalServerError {
			log.ErrorContext(c.Request().Context(), "request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"status", status,
				"error", err,
			)
			if body.Code == apperr.CodeInternal {
				body.Error = "internal error"
				body.Details = nil
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("failed to write error response", "error", err)
		}
	}
}

func codeForStatus(status int) apperr.Code {
	switch status {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return apperr.CodeNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusUnsupportedMediaType:
		return apperr.CodeInvalidArgument
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.CodeUnauthorized
	default:
		return apperr.CodeInternal
	}
}
