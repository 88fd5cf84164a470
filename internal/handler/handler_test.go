package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/memstore"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/service"
)

func serveError(t *testing.T, dev bool, log *zap.Logger, err error) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(dev, log)
	e.GET("/boom", func(echo.Context) error { return err })
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestErrorHandlerClassifiedErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.InvalidArgument("Board title is required"), http.StatusBadRequest, "Board title is required"},
		{apperr.Unauthenticated("Unauthorized: no token provided"), http.StatusUnauthorized, "Unauthorized: no token provided"},
		{apperr.Forbidden("Access denied: You are not a member of this board"), http.StatusForbidden, "Access denied: You are not a member of this board"},
		{apperr.NotFound("Card not found"), http.StatusNotFound, "Card not found"},
		{apperr.Conflict("stale"), http.StatusConflict, "stale"},
		{echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, slow down"), http.StatusTooManyRequests, "Too many requests, slow down"},
	}
	for _, tc := range cases {
		rec, body := serveError(t, false, nil, tc.err)
		assert.Equal(t, tc.status, rec.Code)
		assert.False(t, body.Success)
		assert.Equal(t, tc.msg, body.Message)
		assert.Empty(t, body.Stack)
	}
}

func TestErrorHandlerInternalIsLoggedWithCause(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	rec, body := serveError(t, true, zap.New(core), errors.New("db exploded"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", body.Message)
	assert.Equal(t, []string{"db exploded"}, body.Errors)
	assert.Empty(t, body.Stack)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "request failed", logs.All()[0].Message)
}

func failingLookup() error {
	return apperr.Internal("Internal server error", errors.New("db exploded"))
}

func TestErrorHandlerStackPointsAtOrigin(t *testing.T) {
	err := failingLookup()

	_, body := serveError(t, true, nil, err)
	assert.Contains(t, body.Stack, "failingLookup")
	assert.Equal(t, []string{"db exploded"}, body.Errors)

	_, body = serveError(t, false, nil, err)
	assert.Empty(t, body.Stack)
}

func TestErrorHandlerDetails(t *testing.T) {
	_, body := serveError(t, false, nil, apperr.InvalidArgument("bad order").WithDetails("card 9 is not in list 2"))
	assert.Equal(t, []string{"card 9 is not in list 2"}, body.Errors)
}

func TestParamID(t *testing.T) {
	e := echo.New()
	for _, tc := range []struct {
		raw string
		ok  bool
	}{{"12", true}, {"0", false}, {"-1", false}, {"abc", false}, {"", false}} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("boardId")
		c.SetParamValues(tc.raw)
		id, err := paramID(c, "boardId", "board")
		if tc.ok {
			require.NoError(t, err)
			assert.Equal(t, uint64(12), id)
			continue
		}
		assert.True(t, apperr.Is(err, apperr.KindInvalidArgument), tc.raw)
		assert.Equal(t, "Invalid board ID", err.Error())
	}
}

func TestUpdateCardDueDate(t *testing.T) {
	var req updateCardReq
	require.NoError(t, json.Unmarshal([]byte(`{"title":"x"}`), &req))
	p, err := req.patch()
	require.NoError(t, err)
	assert.Nil(t, p.DueDate)
	assert.False(t, p.ClearDueDate)

	req = updateCardReq{}
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":null}`), &req))
	p, err = req.patch()
	require.NoError(t, err)
	assert.True(t, p.ClearDueDate)

	req = updateCardReq{}
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":"2026-03-01T12:00:00Z"}`), &req))
	p, err = req.patch()
	require.NoError(t, err)
	require.NotNil(t, p.DueDate)
	assert.Equal(t, 2026, p.DueDate.Year())

	req = updateCardReq{}
	require.NoError(t, json.Unmarshal([]byte(`{"dueDate":"tomorrow"}`), &req))
	_, err = req.patch()
	assert.True(t, apperr.Is(err, apperr.KindInvalidArgument))
}

func TestCheckOrigin(t *testing.T) {
	h := &StreamHandler{Origins: []string{"http://localhost:5173"}}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, h.checkOrigin(r))
	r.Header.Set("Origin", "http://localhost:5173")
	assert.True(t, h.checkOrigin(r))
	r.Header.Set("Origin", "http://evil.test")
	assert.False(t, h.checkOrigin(r))
}

func TestHealthCheck(t *testing.T) {
	h := &HealthHandler{
		Deps: map[string]Pinger{
			"mysql": PingFunc(func(context.Context) error { return nil }),
			"redis": PingFunc(func(context.Context) error { return errors.New("refused") }),
			"minio": nil,
		},
		Required: map[string]bool{"mysql": true},
	}
	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, h.Check(e.NewContext(httptest.NewRequest(http.MethodGet, "/check-health", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"redis":"down: refused"`))
	assert.Contains(t, rec.Body.String(), `"minio":"disabled"`)

	h.Required["redis"] = true
	rec = httptest.NewRecorder()
	require.NoError(t, h.Check(e.NewContext(httptest.NewRequest(http.MethodGet, "/check-health", nil), rec)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamMembershipRecheck(t *testing.T) {
	ctx := context.Background()
	db := memstore.New()
	users := memstore.Users{DB: db}
	boards := service.NewBoardService(memstore.Boards{DB: db}, users, nil, nil)
	alice, err := users.Create(ctx, "Alice", "alice@example.com", "x")
	require.NoError(t, err)
	bob, err := users.Create(ctx, "Bob", "bob@example.com", "x")
	require.NoError(t, err)
	b, err := boards.Create(ctx, alice.ID, service.NewBoard{Title: "Sprint 1", Members: []uint64{bob.ID}})
	require.NoError(t, err)

	h := NewStreamHandler(boards, nil, nil, nil)
	assert.True(t, h.stillMember(b.ID, bob.ID))

	none := []uint64{}
	_, err = boards.Update(ctx, b.ID, alice.ID, model.BoardPatch{Members: &none})
	require.NoError(t, err)
	assert.False(t, h.stillMember(b.ID, bob.ID))
	assert.True(t, h.stillMember(b.ID, alice.ID))

	require.NoError(t, boards.Delete(ctx, b.ID, alice.ID))
	assert.False(t, h.stillMember(b.ID, alice.ID))
}
