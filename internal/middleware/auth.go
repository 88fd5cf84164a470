// Package middleware contains the echo middleware shared by the API routes:
// the auth gate, the redis token bucket and the redis response cache.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// TokenCookie is the cookie carrying the access token for browser clients.
const TokenCookie = "token"

// Authenticator verifies a raw access token and returns its user id.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (uint64, error)
}

// Auth returns a middleware that requires a valid access token from the
// Authorization header or the token cookie. The header wins when both are
// present. On success the user id is stored under "user_id" and the raw
// token under "token".
func Auth(authn Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// An empty token still goes to the authenticator, which
			// answers with the unauthorized error the envelope expects.
			raw := TokenFromRequest(c.Request())
			uid, err := authn.Authenticate(c.Request().Context(), raw)
			if err != nil {
				return err
			}
			// Handlers read these back through UserID and Token.
			c.Set(userIDKey, uid)
			c.Set(tokenKey, raw)
			return next(c)
		}
	}
}

// TokenFromRequest extracts the bearer token or, failing that, the token
// cookie. It returns "" when neither is present.
func TokenFromRequest(r *http.Request) string {
	// Authorization: Bearer <token>
	if auth := r.Header.Get(echo.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		if raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); raw != "" {
			return raw
		}
	}
	// Browser clients send the cookie set at login.
	if ck, err := r.Cookie(TokenCookie); err == nil {
		return ck.Value
	}
	return ""
}
