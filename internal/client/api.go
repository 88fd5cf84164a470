package client

import (
	"context"
	"net/http"
	"time"

	"github.com/iliyamo/taskboard/internal/model"
)

// ----- users -----

// Register creates an account; it does not log in.
func (c *Client) Register(ctx context.Context, name, email, password string) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodPost, "/user/register", map[string]string{"name": name, "email": email, "password": password}, &u)
	return u, err
}

// Login authenticates and keeps the returned token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	var out struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/user/login", map[string]string{"email": email, "password": password}, &out); err != nil {
		return model.User{}, err
	}
	c.token = out.Token
	return out.User, nil
}

// Logout revokes the current token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/user/logout", nil, nil)
	c.token = ""
	return err
}

func (c *Client) Me(ctx context.Context) (model.User, error) {
	var u model.User
	err := c.do(ctx, http.MethodGet, "/user/me", nil, &u)
	return u, err
}

func (c *Client) SearchUsers(ctx context.Context, q string) ([]model.MemberSummary, error) {
	var out []model.MemberSummary
	err := c.do(ctx, http.MethodGet, query("/user/search", "query", q), nil, &out)
	return out, err
}

// ----- boards -----

// BoardInput is the body of CreateBoard.
type BoardInput struct {
	Title    string   `json:"title"`
	Color    string   `json:"color,omitempty"`
	Position int      `json:"position,omitempty"`
	Members  []uint64 `json:"members,omitempty"`
}

func (c *Client) CreateBoard(ctx context.Context, in BoardInput) (model.Board, error) {
	var b model.Board
	err := c.do(ctx, http.MethodPost, "/board/create", in, &b)
	return b, err
}

func (c *Client) Boards(ctx context.Context) ([]model.Board, error) {
	var out []model.Board
	err := c.do(ctx, http.MethodGet, "/board", nil, &out)
	return out, err
}

func (c *Client) Board(ctx context.Context, boardID uint64) (model.Board, error) {
	var b model.Board
	err := c.do(ctx, http.MethodGet, "/board/"+id(boardID), nil, &b)
	return b, err
}

// BoardUpdate is a partial board update; nil fields are left unchanged.
type BoardUpdate struct {
	Title   *string   `json:"title,omitempty"`
	Color   *string   `json:"color,omitempty"`
	Members *[]uint64 `json:"members,omitempty"`
}

func (c *Client) UpdateBoard(ctx context.Context, boardID uint64, in BoardUpdate) (model.Board, error) {
	var b model.Board
	err := c.do(ctx, http.MethodPut, "/board/"+id(boardID), in, &b)
	return b, err
}

func (c *Client) DeleteBoard(ctx context.Context, boardID uint64) error {
	return c.do(ctx, http.MethodDelete, "/board/"+id(boardID), nil, nil)
}

func (c *Client) SetBoardPositions(ctx context.Context, items []model.BoardPosition) ([]model.Board, error) {
	var out []model.Board
	err := c.do(ctx, http.MethodPut, "/board/position", map[string]any{"boards": items}, &out)
	return out, err
}

func (c *Client) AddMember(ctx context.Context, boardID, userID uint64) ([]model.MemberSummary, error) {
	var out []model.MemberSummary
	err := c.do(ctx, http.MethodPost, "/board/add-members", map[string]uint64{"boardId": boardID, "userId": userID}, &out)
	return out, err
}

func (c *Client) Members(ctx context.Context, boardID uint64) ([]model.MemberSummary, error) {
	var out []model.MemberSummary
	err := c.do(ctx, http.MethodGet, "/board/"+id(boardID)+"/members", nil, &out)
	return out, err
}

func (c *Client) SearchMembers(ctx context.Context, boardID uint64, q string) ([]model.MemberSummary, error) {
	var out []model.MemberSummary
	err := c.do(ctx, http.MethodGet, query("/card/"+id(boardID)+"/search-members", "query", q), nil, &out)
	return out, err
}

// ----- lists -----

func (c *Client) CreateList(ctx context.Context, boardID uint64, title string) (model.List, error) {
	var l model.List
	err := c.do(ctx, http.MethodPost, "/list/"+id(boardID), map[string]string{"title": title}, &l)
	return l, err
}

// Lists returns the board's lists with their cards, both by position.
func (c *Client) Lists(ctx context.Context, boardID uint64) ([]model.ListWithCards, error) {
	var out []model.ListWithCards
	err := c.do(ctx, http.MethodGet, "/list/"+id(boardID), nil, &out)
	return out, err
}

func (c *Client) RenameList(ctx context.Context, listID uint64, title string) (model.List, error) {
	var l model.List
	err := c.do(ctx, http.MethodPut, "/list/"+id(listID), map[string]string{"title": title}, &l)
	return l, err
}

func (c *Client) DeleteList(ctx context.Context, listID uint64) error {
	return c.do(ctx, http.MethodDelete, "/list/"+id(listID), nil, nil)
}

// MoveList moves a list to target. boardVersion, when non-nil, must match
// the server's board version or the call fails with a conflict.
func (c *Client) MoveList(ctx context.Context, listID uint64, source, target int, boardVersion *int64) (model.ColumnMove, error) {
	var mv model.ColumnMove
	body := map[string]any{"sourcePosition": source, "targetPosition": target}
	if boardVersion != nil {
		body["version"] = *boardVersion
	}
	err := c.do(ctx, http.MethodPatch, "/list/move/"+id(listID), body, &mv)
	return mv, err
}

// ----- cards -----

// CardInput is the body of CreateCard.
type CardInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
	AssignedTo  []uint64   `json:"assignedTo,omitempty"`
}

func (c *Client) CreateCard(ctx context.Context, listID uint64, in CardInput) (model.Card, error) {
	var card model.Card
	err := c.do(ctx, http.MethodPost, "/card/"+id(listID), in, &card)
	return card, err
}

func (c *Client) Cards(ctx context.Context, listID uint64) ([]model.Card, error) {
	var out []model.Card
	err := c.do(ctx, http.MethodGet, "/card/"+id(listID), nil, &out)
	return out, err
}

func (c *Client) Card(ctx context.Context, cardID uint64) (model.Card, error) {
	var card model.Card
	err := c.do(ctx, http.MethodGet, "/card/detail/"+id(cardID), nil, &card)
	return card, err
}

// CardUpdate is a partial card update; nil fields are left unchanged.
type CardUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Labels      *[]string  `json:"labels,omitempty"`
	AssignedTo  *[]uint64  `json:"assignedTo,omitempty"`
	ListID      *uint64    `json:"listId,omitempty"`
}

func (c *Client) UpdateCard(ctx context.Context, cardID uint64, in CardUpdate) (model.Card, error) {
	var card model.Card
	err := c.do(ctx, http.MethodPut, "/card/update/"+id(cardID), in, &card)
	return card, err
}

func (c *Client) DeleteCard(ctx context.Context, cardID uint64) error {
	return c.do(ctx, http.MethodDelete, "/card/delete/"+id(cardID), nil, nil)
}

// Reorder is the body of ReorderCard: the complete card orders of the
// touched lists after the move, plus the list versions they were based on.
type Reorder struct {
	SourceListID         uint64   `json:"sourceListId"`
	DestinationListID    uint64   `json:"destinationListId"`
	SourceCardOrder      []uint64 `json:"sourceCardOrder"`
	DestinationCardOrder []uint64 `json:"destinationCardOrder"`
	SourceVersion        *int64   `json:"sourceVersion,omitempty"`
	DestinationVersion   *int64   `json:"destinationVersion,omitempty"`
}

func (c *Client) ReorderCard(ctx context.Context, cardID uint64, in Reorder) (model.ReorderResult, error) {
	var res model.ReorderResult
	err := c.do(ctx, http.MethodPut, "/card/reorder/"+id(cardID), in, &res)
	return res, err
}

func (c *Client) AssignUsers(ctx context.Context, cardID uint64, userIDs []uint64) (model.Card, error) {
	var card model.Card
	err := c.do(ctx, http.MethodPost, "/card/assign-users", map[string]any{"cardId": cardID, "userIds": userIDs}, &card)
	return card, err
}

func (c *Client) AssignedMembers(ctx context.Context, cardID uint64) ([]model.MemberSummary, error) {
	var out []model.MemberSummary
	err := c.do(ctx, http.MethodGet, "/card/"+id(cardID)+"/assigned-members", nil, &out)
	return out, err
}
