package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/middleware"
)

// dbTimeout bounds the store work of a single request.
const dbTimeout = 5 * time.Second

// envelope wraps every successful response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func respond(c echo.Context, status int, data any, msg string) error {
	return c.JSON(status, envelope{StatusCode: status, Data: data, Message: msg, Success: status < http.StatusBadRequest})
}

func ok(c echo.Context, data any, msg string) error {
	return respond(c, http.StatusOK, data, msg)
}

func created(c echo.Context, data any, msg string) error {
	return respond(c, http.StatusCreated, data, msg)
}

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// actor returns the authenticated caller.
func actor(c echo.Context) (uint64, error) {
	id, ok := middleware.UserID(c)
	if !ok {
		return 0, apperr.Unauthenticated("Unauthorized: no token provided")
	}
	return id, nil
}

// paramID parses a positive numeric path parameter.
func paramID(c echo.Context, name, label string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.InvalidArgument("Invalid " + label + " ID")
	}
	return id, nil
}

// bind decodes the request body, reporting malformed input as 400.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return apperr.InvalidArgument("Invalid request body")
	}
	return nil
}
