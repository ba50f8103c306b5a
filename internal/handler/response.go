package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "ticketing/internal/errors"
)

// Response is the envelope of every successful JSON reply.
type Response struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Timestamp  string      `json:"timestamp"`
}

func timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, Response{
		Success:    status < http.StatusBadRequest,
		StatusCode: status,
		Message:    message,
		Data:       data,
		Timestamp:  timestamp(),
	})
}

// NewHTTPErrorHandler renders every error returned by a handler or middleware as an
// apperrors.ErrorResponse. Internal failures are logged with their cause.
func NewHTTPErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		resp := ErrorResponseFor(err)
		if resp.StatusCode >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(resp.StatusCode)
		} else {
			err = c.JSON(resp.StatusCode, resp)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

// ErrorResponseFor converts err into the error envelope.
func ErrorResponseFor(err error) apperrors.ErrorResponse {
	var (
		httpErr *apperrors.HTTPError
		echoErr *echo.HTTPError
		h       *apperrors.HTTPError
	)
	switch {
	case errors.As(err, &httpErr):
		h = httpErr
	case errors.As(err, &echoErr):
		h = apperrors.NewHTTPError(echoErr.Code, echoMessage(echoErr), apperrors.KindInternal)
	default:
		h = apperrors.MapErrorToHTTP(err)
	}
	return apperrors.ErrorResponse{
		Success:    false,
		StatusCode: h.StatusCode,
		Message:    h.Message,
		Errors:     h.Fields,
		Timestamp:  timestamp(),
	}
}

func echoMessage(e *echo.HTTPError) string {
	switch m := e.Message.(type) {
	case string:
		return m
	case nil:
		return http.StatusText(e.Code)
	default:
		return fmt.Sprint(m)
	}
}
