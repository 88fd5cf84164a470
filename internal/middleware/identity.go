package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	userIDKey = "user_id"
	tokenKey  = "token"
)

// UserID returns the authenticated user id stored by Auth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(userIDKey).(uint64)
	return id, ok && id != 0
}

// RawToken returns the access token the request was authenticated with.
func RawToken(c echo.Context) string {
	s, _ := c.Get(tokenKey).(string)
	return s
}

// identity names the caller for rate limit and cache keys; "anon" when the
// request is not authenticated.
func identity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
