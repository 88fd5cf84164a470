package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/repository"
)

// BoardService manages boards and their membership. Only the creator may
// update or delete a board or add members; any member may read it.
type BoardService struct {
	boards BoardStore
	users  UserStore
	events Publisher
	log    *zap.Logger
}

func NewBoardService(boards BoardStore, users UserStore, events Publisher, log *zap.Logger) *BoardService {
	if events == nil {
		events = NopPublisher{}
	}
	return &BoardService{boards: boards, users: users, events: events, log: orNop(log)}
}

// NewBoard is the input of Create.
type NewBoard struct {
	Title    string
	Color    string
	Position int
	Members  []uint64
}

// Create makes a board owned by actor. The actor is always a member; the
// other members must exist.
func (s *BoardService) Create(ctx context.Context, actor uint64, in NewBoard) (model.Board, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Board{}, apperr.InvalidArgument("Board title is required")
	}
	members := dedupIDs(append([]uint64{actor}, in.Members...))
	if err := s.requireUsers(ctx, members); err != nil {
		return model.Board{}, err
	}
	b, err := s.boards.Create(ctx, model.Board{
		Title:     title,
		Color:     strings.TrimSpace(in.Color),
		Position:  in.Position,
		CreatedBy: actor,
		Members:   members,
	})
	if err != nil {
		return model.Board{}, storeErr(err, "Board not found")
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventBoardCreated, BoardID: b.ID, ActorID: actor, Payload: b})
	return b, nil
}

// requireUsers fails with NotFound when any id is not a registered user.
func (s *BoardService) requireUsers(ctx context.Context, ids []uint64) error {
	found, err := s.users.Summaries(ctx, ids)
	if err != nil {
		return storeErr(err, "User not found")
	}
	if len(found) != len(ids) {
		return apperr.NotFound("User not found")
	}
	return nil
}

// List returns the boards actor belongs to ordered by position then id.
func (s *BoardService) List(ctx context.Context, actor uint64) ([]model.Board, error) {
	out, err := s.boards.ListForUser(ctx, actor)
	if err != nil {
		return nil, storeErr(err, "Board not found")
	}
	return out, nil
}

// Authorize loads a board and checks that actor is a member of it.
func (s *BoardService) Authorize(ctx context.Context, boardID, actor uint64) (model.Board, error) {
	return authorizeBoard(ctx, s.boards, boardID, actor)
}

func authorizeBoard(ctx context.Context, boards BoardStore, boardID, actor uint64) (model.Board, error) {
	if boardID == 0 {
		return model.Board{}, apperr.InvalidArgument("Invalid board ID")
	}
	b, err := boards.Get(ctx, boardID)
	if err != nil {
		return model.Board{}, storeErr(err, "Board not found")
	}
	if !b.HasMember(actor) {
		return model.Board{}, apperr.Forbidden("Access denied: You are not a member of this board")
	}
	return b, nil
}

// Get returns a board the actor is a member of.
func (s *BoardService) Get(ctx context.Context, boardID, actor uint64) (model.Board, error) {
	return s.Authorize(ctx, boardID, actor)
}

// Update applies a partial update. Only the creator may update; a new
// member set always keeps the creator.
func (s *BoardService) Update(ctx context.Context, boardID, actor uint64, patch model.BoardPatch) (model.Board, error) {
	b, err := s.ownedBoard(ctx, boardID, actor, "You are not authorized to update this board")
	if err != nil {
		return model.Board{}, err
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return model.Board{}, apperr.InvalidArgument("Board title is required")
		}
		patch.Title = &t
	}
	if patch.Members != nil {
		members := dedupIDs(append([]uint64{b.CreatedBy}, *patch.Members...))
		if err := s.requireUsers(ctx, members); err != nil {
			return model.Board{}, err
		}
		patch.Members = &members
	}
	updated, err := s.boards.Update(ctx, boardID, patch)
	if err != nil {
		return model.Board{}, storeErr(err, "Board not found")
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventBoardUpdated, BoardID: boardID, ActorID: actor, Payload: updated})
	return updated, nil
}

func (s *BoardService) ownedBoard(ctx context.Context, boardID, actor uint64, forbidden string) (model.Board, error) {
	if boardID == 0 {
		return model.Board{}, apperr.InvalidArgument("Invalid board ID")
	}
	b, err := s.boards.Get(ctx, boardID)
	if err != nil {
		return model.Board{}, storeErr(err, "Board not found")
	}
	if b.CreatedBy != actor {
		return model.Board{}, apperr.Forbidden(forbidden)
	}
	return b, nil
}

// Delete removes a board with all of its lists and cards. Only the creator
// may delete.
func (s *BoardService) Delete(ctx context.Context, boardID, actor uint64) error {
	if _, err := s.ownedBoard(ctx, boardID, actor, "You are not authorized to delete this board"); err != nil {
		return err
	}
	if err := s.boards.Delete(ctx, boardID); err != nil {
		return storeErr(err, "Board not found")
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventBoardDeleted, BoardID: boardID, ActorID: actor})
	return nil
}

// UpdatePositions assigns user-chosen sort keys to boards the actor is a
// member of. Duplicate positions are allowed.
func (s *BoardService) UpdatePositions(ctx context.Context, actor uint64, items []model.BoardPosition) ([]model.Board, error) {
	if len(items) == 0 {
		return nil, apperr.InvalidArgument("Boards array is required")
	}
	for _, it := range items {
		if it.ID == 0 || it.Position < 0 {
			return nil, apperr.InvalidArgument("Invalid board ID or position in array")
		}
	}
	out, err := s.boards.SetPositions(ctx, actor, items)
	if err != nil {
		return nil, storeErr(err, "Board not found")
	}
	return out, nil
}

// AddMember adds userID to the board. Only the creator may add members.
func (s *BoardService) AddMember(ctx context.Context, boardID, userID, actor uint64) ([]model.MemberSummary, error) {
	if boardID == 0 || userID == 0 {
		return nil, apperr.InvalidArgument("Board ID and User ID are required")
	}
	b, err := s.ownedBoard(ctx, boardID, actor, "You don't have permission to add members to this board")
	if err != nil {
		return nil, err
	}
	if err := s.requireUsers(ctx, []uint64{userID}); err != nil {
		return nil, err
	}
	if b.HasMember(userID) {
		return nil, apperr.InvalidArgument("User is already a member of this board")
	}
	if err := s.boards.AddMember(ctx, boardID, userID); err != nil {
		return nil, storeErr(err, "Board not found")
	}
	members, err := s.boards.Members(ctx, boardID)
	if err != nil {
		return nil, storeErr(err, "Board not found")
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventMemberAdded, BoardID: boardID, ActorID: actor, Payload: map[string]uint64{"userId": userID}})
	return members, nil
}

// Members lists the board's members.
func (s *BoardService) Members(ctx context.Context, boardID, actor uint64) ([]model.MemberSummary, error) {
	if _, err := s.Authorize(ctx, boardID, actor); err != nil {
		if apperr.Is(err, apperr.KindForbidden) {
			return nil, apperr.Forbidden("You don't have permission to view this board's members")
		}
		return nil, err
	}
	out, err := s.boards.Members(ctx, boardID)
	if err != nil {
		return nil, storeErr(err, "Board not found")
	}
	return out, nil
}

// SearchMembers filters the board's members by name or email substring.
// No match is an empty result.
func (s *BoardService) SearchMembers(ctx context.Context, boardID, actor uint64, query string) ([]model.MemberSummary, error) {
	if _, err := s.Authorize(ctx, boardID, actor); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		out, err := s.boards.Members(ctx, boardID)
		return out, storeErr(err, "Board not found")
	}
	out, err := s.boards.SearchMembers(ctx, boardID, query)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, storeErr(err, "Board not found")
	}
	if out == nil {
		out = []model.MemberSummary{}
	}
	return out, nil
}
