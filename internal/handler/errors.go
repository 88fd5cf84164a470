package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/apperr"
)

// errorBody is the envelope of every failed request.
type errorBody struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
	Stack   string   `json:"stack,omitempty"`
}

// ErrorHandler renders every error returned by handlers or middleware.
// Classified errors keep their message; anything else becomes a 500 with
// the cause listed in errors. When dev is set, internal errors carry the
// stack recorded where they were built.
func ErrorHandler(dev bool, log *zap.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := classify(err)
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.Error(err),
			)
		}
		if dev {
			body.Stack = stackOf(err)
		}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

func classify(err error) (int, errorBody) {
	body := errorBody{Errors: []string{}}

	var ae *apperr.Error
	if errors.As(err, &ae) {
		body.Message = ae.Message
		if len(ae.Errors) > 0 {
			body.Errors = ae.Errors
		}
		if ae.Kind == apperr.KindInternal && ae.Err != nil {
			body.Errors = append(body.Errors, ae.Err.Error())
		}
		return ae.Kind.Status(), body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		body.Message = fmt.Sprint(he.Message)
		if he.Internal != nil {
			body.Errors = append(body.Errors, he.Internal.Error())
		}
		return he.Code, body
	}

	body.Message = "Internal Server Error"
	body.Errors = append(body.Errors, err.Error())
	return http.StatusInternalServerError, body
}

func stackOf(err error) string {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return string(ae.Stack)
	}
	return ""
}
