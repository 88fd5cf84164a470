package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/config"
)

type stubAuth map[string]uint64

func (s stubAuth) Authenticate(_ context.Context, raw string) (uint64, error) {
	if id, ok := s[raw]; ok {
		return id, nil
	}
	return 0, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		id, ok := UserID(c)
		if !ok {
			return errors.New("no user")
		}
		return c.JSON(http.StatusOK, map[string]any{"id": id, "token": RawToken(c)})
	}, Auth(stubAuth{"good": 7, "cookie": 9}))

	cases := []struct {
		name   string
		header string
		cookie string
		status int
		body   string
	}{
		{name: "bearer", header: "Bearer good", status: http.StatusOK, body: `{"id":7,"token":"good"}`},
		{name: "cookie", cookie: "cookie", status: http.StatusOK, body: `{"id":9,"token":"cookie"}`},
		{name: "header wins", header: "Bearer good", cookie: "cookie", status: http.StatusOK, body: `{"id":7,"token":"good"}`},
		{name: "missing", status: http.StatusUnauthorized},
		{name: "invalid", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic good", status: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tc.cookie})
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.JSONEq(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		Prefix:         "test:rl",
	}
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RateLimit(cfg, rdb, zap.NewNop()))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}
	first := do()
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, do().Code)

	blocked := do()
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set(echo.HeaderXRealIP, "198.51.100.7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	e.POST("/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) },
		RateLimit(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, zap.NewNop()))
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestCache(t *testing.T) {
	rdb := newRedis(t)
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      []string{"GET"},
		TTL:          time.Minute,
		Prefix:       "test:cache",
		MaxBodyBytes: 1 << 20,
	}
	calls := 0
	e := echo.New()
	e.GET("/search", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, map[string]any{"q": c.QueryParam("q"), "n": calls})
	}, Cache(cfg, rdb, zap.NewNop()))

	get := func(q string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/search?q="+q, nil))
		return rec
	}
	miss := get("ali")
	require.Equal(t, http.StatusOK, miss.Code)
	assert.Equal(t, "MISS", miss.Header().Get("X-Cache"))

	hit := get("ali")
	require.Equal(t, http.StatusOK, hit.Code)
	assert.Equal(t, "HIT", hit.Header().Get("X-Cache"))
	assert.Equal(t, miss.Body.String(), hit.Body.String())
	assert.Contains(t, hit.Header().Get(echo.HeaderContentType), "application/json")

	other := get("bob")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
}

func TestPayloadRejectsShortInput(t *testing.T) {
	_, _, _, ok := decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
