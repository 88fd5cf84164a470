package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/memstore"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/service"
)

type reply struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	db := memstore.New()
	log := zap.NewNop()
	users, boards, lists, cards := memstore.Users{DB: db}, memstore.Boards{DB: db}, memstore.Lists{DB: db}, memstore.Cards{DB: db}
	us := service.NewUserService(users, memstore.Tokens{DB: db}, nil, service.AuthConfig{Secret: "router-secret", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}, log)
	bs := service.NewBoardService(boards, users, nil, log)
	return New(Deps{
		Users:  handler.NewUserHandler(us, false),
		Boards: handler.NewBoardHandler(bs),
		Lists:  handler.NewListHandler(service.NewListService(lists, boards, nil, log)),
		Cards:  handler.NewCardHandler(service.NewCardService(cards, lists, boards, nil, log)),
		Auth:   us,
		Log:    log,
	})
}

func call(t *testing.T, e *echo.Echo, method, path, token string, body any) (int, reply) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var r reply
	if rec.Body.Len() > 0 && rec.Header().Get(echo.HeaderContentType) != echo.MIMETextPlainCharsetUTF8 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	}
	return rec.Code, r
}

func login(t *testing.T, e *echo.Echo, name string) (uint64, string) {
	t.Helper()
	email := name + "@example.com"
	code, r := call(t, e, http.MethodPost, "/api/v1/user/register", "", echo.Map{"name": name, "email": email, "password": "secret1"})
	require.Equal(t, http.StatusCreated, code, r.Message)
	code, r = call(t, e, http.MethodPost, "/api/v1/user/login", "", echo.Map{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusOK, code, r.Message)
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID uint64 `json:"id"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(r.Data, &out))
	return out.User.ID, out.Token
}

func TestHealthz(t *testing.T) {
	e := newServer(t)
	for _, p := range []string{"/healthz", "/check-health"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, p, nil))
		assert.Equal(t, http.StatusOK, rec.Code, p)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newServer(t)
	code, r := call(t, e, http.MethodGet, "/api/v1/board", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, r.Success)
	assert.NotEmpty(t, r.Message)

	code, _ = call(t, e, http.MethodGet, "/api/v1/board", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLoginSetsCookieAndLogoutRevokes(t *testing.T) {
	e := newServer(t)
	_, token := login(t, e, "carol")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/login", bytes.NewBufferString(`{"email":"carol@example.com","password":"secret1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	code, _ := call(t, e, http.MethodGet, "/api/v1/user/me", token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, e, http.MethodPost, "/api/v1/user/logout", token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, e, http.MethodGet, "/api/v1/user/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestInvalidCredentialsIsBadRequest(t *testing.T) {
	e := newServer(t)
	login(t, e, "dave")
	code, r := call(t, e, http.MethodPost, "/api/v1/user/login", "", echo.Map{"email": "dave@example.com", "password": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid credentials", r.Message)
	assert.Equal(t, []string{}, r.Errors)
}

func TestMalformedIDsAreBadRequest(t *testing.T) {
	e := newServer(t)
	_, token := login(t, e, "erin")
	for _, p := range []string{"/api/v1/board/abc", "/api/v1/list/0", "/api/v1/card/x1"} {
		code, r := call(t, e, http.MethodGet, p, token, nil)
		assert.Equal(t, http.StatusBadRequest, code, p)
		assert.Contains(t, r.Message, "Invalid", p)
	}
}

func TestBoardFlow(t *testing.T) {
	e := newServer(t)
	aliceID, alice := login(t, e, "alice")
	bobID, bob := login(t, e, "bob")

	code, r := call(t, e, http.MethodPost, "/api/v1/board/create", alice, echo.Map{"title": "Sprint 1"})
	require.Equal(t, http.StatusCreated, code, r.Message)
	var board model.Board
	require.NoError(t, json.Unmarshal(r.Data, &board))
	assert.Equal(t, aliceID, board.CreatedBy)
	assert.Equal(t, []uint64{aliceID}, board.Members)

	code, _ = call(t, e, http.MethodGet, fmt.Sprintf("/api/v1/board/%d", board.ID), bob, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, r = call(t, e, http.MethodGet, "/api/v1/board", bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(r.Data))

	code, _ = call(t, e, http.MethodPost, "/api/v1/board/add-members", alice, echo.Map{"boardId": board.ID, "userId": bobID})
	require.Equal(t, http.StatusOK, code)
	code, r = call(t, e, http.MethodPost, "/api/v1/board/add-members", alice, echo.Map{"boardId": board.ID, "userId": bobID})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "User is already a member of this board", r.Message)

	code, r = call(t, e, http.MethodGet, fmt.Sprintf("/api/v1/card/%d/search-members?query=zzz", board.ID), bob, nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(r.Data))

	code, r = call(t, e, http.MethodGet, fmt.Sprintf("/api/v1/card/%d/search-members?query=BOB", board.ID), alice, nil)
	require.Equal(t, http.StatusOK, code)
	var found []model.MemberSummary
	require.NoError(t, json.Unmarshal(r.Data, &found))
	require.Len(t, found, 1)
	assert.Equal(t, bobID, found[0].ID)
}

func TestCardReorderFlow(t *testing.T) {
	e := newServer(t)
	_, alice := login(t, e, "alice")

	_, r := call(t, e, http.MethodPost, "/api/v1/board/create", alice, echo.Map{"title": "Sprint 1"})
	var board model.Board
	require.NoError(t, json.Unmarshal(r.Data, &board))

	code, r := call(t, e, http.MethodPost, fmt.Sprintf("/api/v1/list/%d", board.ID), alice, echo.Map{"title": "Todo"})
	require.Equal(t, http.StatusCreated, code, r.Message)
	var todo model.List
	require.NoError(t, json.Unmarshal(r.Data, &todo))

	var ids []uint64
	for _, title := range []string{"Write spec", "Review"} {
		code, r = call(t, e, http.MethodPost, fmt.Sprintf("/api/v1/card/%d", todo.ID), alice, echo.Map{"title": title})
		require.Equal(t, http.StatusCreated, code, r.Message)
		var c model.Card
		require.NoError(t, json.Unmarshal(r.Data, &c))
		ids = append(ids, c.ID)
	}

	reorder := fmt.Sprintf("/api/v1/card/reorder/%d", ids[1])
	code, r = call(t, e, http.MethodPut, reorder, alice, echo.Map{
		"sourceListId": todo.ID, "destinationListId": todo.ID,
		"sourceCardOrder": []uint64{ids[1], 999},
	})
	assert.Equal(t, http.StatusBadRequest, code, r.Message)

	code, r = call(t, e, http.MethodPut, reorder, alice, echo.Map{
		"sourceListId": todo.ID, "destinationListId": todo.ID,
		"sourceCardOrder": []uint64{ids[1], ids[0]}, "sourceVersion": todo.Version + 100,
	})
	assert.Equal(t, http.StatusConflict, code, r.Message)

	code, r = call(t, e, http.MethodPut, reorder, alice, echo.Map{
		"sourceListId": todo.ID, "destinationListId": todo.ID,
		"sourceCardOrder": []uint64{ids[1], ids[0]},
	})
	require.Equal(t, http.StatusOK, code, r.Message)

	code, r = call(t, e, http.MethodGet, fmt.Sprintf("/api/v1/card/%d", todo.ID), alice, nil)
	require.Equal(t, http.StatusOK, code)
	var cards []model.Card
	require.NoError(t, json.Unmarshal(r.Data, &cards))
	require.Len(t, cards, 2)
	assert.Equal(t, "Review", cards[0].Title)
	assert.Equal(t, "Write spec", cards[1].Title)
	assert.Equal(t, 0, cards[0].Position)

	code, r = call(t, e, http.MethodGet, fmt.Sprintf("/api/v1/card/%d/assigned-members", ids[0]), alice, nil)
	require.Equal(t, http.StatusOK, code, r.Message)
	assert.JSONEq(t, `[]`, string(r.Data))

	code, _ = call(t, e, http.MethodDelete, fmt.Sprintf("/api/v1/card/delete/%d", ids[0]), alice, nil)
	require.Equal(t, http.StatusOK, code)
	_, r = call(t, e, http.MethodGet, fmt.Sprintf("/api/v1/list/%d", board.ID), alice, nil)
	var lists []model.ListWithCards
	require.NoError(t, json.Unmarshal(r.Data, &lists))
	require.Len(t, lists, 1)
	require.Len(t, lists[0].Cards, 1)
	assert.Equal(t, ids[1], lists[0].Cards[0].ID)
}
