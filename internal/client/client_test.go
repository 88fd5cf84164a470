package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/memstore"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/router"
	"github.com/iliyamo/taskboard/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db := memstore.New()
	log := zap.NewNop()
	users, boards, lists, cards := memstore.Users{DB: db}, memstore.Boards{DB: db}, memstore.Lists{DB: db}, memstore.Cards{DB: db}
	us := service.NewUserService(users, memstore.Tokens{DB: db}, nil, service.AuthConfig{Secret: "client-secret", TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost}, log)
	e := router.New(router.Deps{
		Users:  handler.NewUserHandler(us, false),
		Boards: handler.NewBoardHandler(service.NewBoardService(boards, users, nil, log)),
		Lists:  handler.NewListHandler(service.NewListService(lists, boards, nil, log)),
		Cards:  handler.NewCardHandler(service.NewCardService(cards, lists, boards, nil, log)),
		Auth:   us,
		Log:    log,
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

func loggedIn(t *testing.T, srv *httptest.Server, name string) (*Client, model.User) {
	t.Helper()
	ctx := context.Background()
	c := New(srv.URL)
	_, err := c.Register(ctx, name, name+"@example.com", "secret1")
	require.NoError(t, err)
	u, err := c.Login(ctx, name+"@example.com", "secret1")
	require.NoError(t, err)
	require.NotEmpty(t, c.Token())
	return c, u
}

// seed builds "Sprint 1" with lists Todo [Write spec, Review] and Done [].
func seed(t *testing.T, c *Client) (model.Board, model.List, model.List, []model.Card) {
	t.Helper()
	ctx := context.Background()
	b, err := c.CreateBoard(ctx, BoardInput{Title: "Sprint 1"})
	require.NoError(t, err)
	todo, err := c.CreateList(ctx, b.ID, "Todo")
	require.NoError(t, err)
	done, err := c.CreateList(ctx, b.ID, "Done")
	require.NoError(t, err)
	var cards []model.Card
	for _, title := range []string{"Write spec", "Review"} {
		card, err := c.CreateCard(ctx, todo.ID, CardInput{Title: title})
		require.NoError(t, err)
		cards = append(cards, card)
	}
	return b, todo, done, cards
}

func titles(col Column) []string {
	out := make([]string, len(col.Cards))
	for i, c := range col.Cards {
		out[i] = c.Title
	}
	return out
}

func TestClientErrorsCarryServerMessage(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	c := New(srv.URL)

	_, err := c.Login(ctx, "nobody@example.com", "secret1")
	require.Error(t, err)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "Invalid credentials", ae.Message)

	_, err = c.Boards(ctx)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestClientBoardsAndMembers(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice, _ := loggedIn(t, srv, "alice")
	bob, bobUser := loggedIn(t, srv, "bob")

	b, _, _, _ := seed(t, alice)

	boards, err := bob.Boards(ctx)
	require.NoError(t, err)
	assert.Empty(t, boards)
	_, err = bob.Board(ctx, b.ID)
	assert.Equal(t, http.StatusForbidden, StatusOf(err))

	members, err := alice.AddMember(ctx, b.ID, bobUser.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	boards, err = bob.Boards(ctx)
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, "Sprint 1", boards[0].Title)

	found, err := bob.SearchMembers(ctx, b.ID, "nobody")
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, alice.Logout(ctx))
	_, err = alice.Boards(ctx)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestSessionMoveCardWithinList(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice, _ := loggedIn(t, srv, "alice")
	b, _, _, cards := seed(t, alice)

	s := NewSession(alice, b.ID)
	require.NoError(t, s.Refresh(ctx))
	require.NoError(t, s.MoveCard(ctx, cards[1].ID, cards[1].ListID, 0))

	local := s.State()
	assert.Equal(t, []string{"Review", "Write spec"}, titles(local.Columns[0]))

	require.NoError(t, s.Refresh(ctx))
	server := s.State()
	assert.Equal(t, []string{"Review", "Write spec"}, titles(server.Columns[0]))
	assert.Equal(t, local.Columns[0].List.Version, server.Columns[0].List.Version)
}

func TestSessionMoveCardAcrossLists(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice, _ := loggedIn(t, srv, "alice")
	b, _, done, cards := seed(t, alice)

	s := NewSession(alice, b.ID)
	require.NoError(t, s.Refresh(ctx))
	require.NoError(t, s.MoveCard(ctx, cards[0].ID, done.ID, 5))

	require.NoError(t, s.Refresh(ctx))
	st := s.State()
	assert.Equal(t, []string{"Review"}, titles(st.Columns[0]))
	assert.Equal(t, []string{"Write spec"}, titles(st.Columns[1]))
	assert.Equal(t, 0, st.Columns[0].Cards[0].Position)
}

func TestSessionRollsBackRejectedMove(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice, _ := loggedIn(t, srv, "alice")
	b, todo, _, cards := seed(t, alice)

	s := NewSession(alice, b.ID)
	require.NoError(t, s.Refresh(ctx))
	before := s.State()

	// someone else adds a card, so the session's list version is stale
	_, err := alice.CreateCard(ctx, todo.ID, CardInput{Title: "Deploy"})
	require.NoError(t, err)

	err = s.MoveCard(ctx, cards[1].ID, todo.ID, 0)
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Equal(t, before, s.State())
}

func TestSessionMoveColumn(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	alice, _ := loggedIn(t, srv, "alice")
	b, todo, done, _ := seed(t, alice)

	s := NewSession(alice, b.ID)
	require.NoError(t, s.Refresh(ctx))
	require.NoError(t, s.MoveColumn(ctx, done.ID, 0))
	assert.Equal(t, done.ID, s.State().Columns[0].List.ID)

	require.NoError(t, s.Refresh(ctx))
	st := s.State()
	assert.Equal(t, []uint64{done.ID, todo.ID}, []uint64{st.Columns[0].List.ID, st.Columns[1].List.ID})

	// a stale board version is rejected and the local order restored
	_, err := alice.CreateList(ctx, b.ID, "Later")
	require.NoError(t, err)
	err = s.MoveColumn(ctx, todo.ID, 0)
	assert.True(t, IsConflict(err))
	assert.Equal(t, done.ID, s.State().Columns[0].List.ID)
}

func TestSessionUnknownIDs(t *testing.T) {
	s := NewSession(New("http://unused.invalid"), 1)
	assert.ErrorIs(t, s.MoveCard(context.Background(), 9, 1, 0), ErrUnknownCard)
	assert.ErrorIs(t, s.MoveColumn(context.Background(), 9, 0), ErrUnknownList)
}
