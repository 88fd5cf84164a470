package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/model"
)

// ListService manages the columns of a board. Every operation requires
// board membership.
type ListService struct {
	lists  ListStore
	boards BoardStore
	events Publisher
	log    *zap.Logger
}

func NewListService(lists ListStore, boards BoardStore, events Publisher, log *zap.Logger) *ListService {
	if events == nil {
		events = NopPublisher{}
	}
	return &ListService{lists: lists, boards: boards, events: events, log: orNop(log)}
}

// authorizeList loads a list and checks that actor belongs to its board.
func authorizeList(ctx context.Context, lists ListStore, boards BoardStore, listID, actor uint64) (model.List, error) {
	if listID == 0 {
		return model.List{}, apperr.InvalidArgument("Invalid list ID")
	}
	l, err := lists.Get(ctx, listID)
	if err != nil {
		return model.List{}, storeErr(err, "List not found")
	}
	if _, err := authorizeBoard(ctx, boards, l.BoardID, actor); err != nil {
		return model.List{}, err
	}
	return l, nil
}

// Create appends a list to the board.
func (s *ListService) Create(ctx context.Context, actor, boardID uint64, title string) (model.List, error) {
	title = strings.TrimSpace(title)
	if title == "" || boardID == 0 {
		return model.List{}, apperr.InvalidArgument("Title and boardId are required")
	}
	if _, err := authorizeBoard(ctx, s.boards, boardID, actor); err != nil {
		return model.List{}, err
	}
	l, err := s.lists.Create(ctx, boardID, title)
	if err != nil {
		return model.List{}, storeErr(err, "Board not found")
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventListCreated, BoardID: boardID, ListID: l.ID, ActorID: actor, Payload: l})
	return l, nil
}

// ByBoard returns the board's lists with nested cards, both by position.
func (s *ListService) ByBoard(ctx context.Context, actor, boardID uint64) ([]model.ListWithCards, error) {
	if _, err := authorizeBoard(ctx, s.boards, boardID, actor); err != nil {
		return nil, err
	}
	out, err := s.lists.ListByBoard(ctx, boardID)
	if err != nil {
		return nil, storeErr(err, "Board not found")
	}
	return out, nil
}

// ListPatch is the input of Update. A position change is executed as a
// column move.
type ListPatch struct {
	Title           *string
	Position        *int
	ExpectedVersion *int64
}

// Update renames and/or repositions a list.
func (s *ListService) Update(ctx context.Context, actor, listID uint64, patch ListPatch) (model.List, error) {
	l, err := authorizeList(ctx, s.lists, s.boards, listID, actor)
	if err != nil {
		return model.List{}, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return model.List{}, apperr.InvalidArgument("Title is required")
		}
		if l, err = s.lists.Rename(ctx, listID, title); err != nil {
			return model.List{}, storeErr(err, "List not found")
		}
	}
	if patch.Position != nil && *patch.Position != l.Position {
		if _, err := s.move(ctx, actor, l, l.Position, *patch.Position, patch.ExpectedVersion); err != nil {
			return model.List{}, err
		}
		if l, err = s.lists.Get(ctx, listID); err != nil {
			return model.List{}, storeErr(err, "List not found")
		}
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventListUpdated, BoardID: l.BoardID, ListID: l.ID, ActorID: actor, Payload: l})
	return l, nil
}

// Delete removes a list and its cards; the remaining lists are renumbered.
func (s *ListService) Delete(ctx context.Context, actor, listID uint64) error {
	l, err := authorizeList(ctx, s.lists, s.boards, listID, actor)
	if err != nil {
		return err
	}
	if err := s.lists.Delete(ctx, listID); err != nil {
		return storeErr(err, "List not found")
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventListDeleted, BoardID: l.BoardID, ListID: listID, ActorID: actor})
	return nil
}

// MoveColumn moves a list to target within its board. sourcePosition is
// advisory; a mismatch with the stored index is only logged.
func (s *ListService) MoveColumn(ctx context.Context, actor, listID uint64, sourcePosition, target int, expectedVersion *int64) (model.ColumnMove, error) {
	l, err := authorizeList(ctx, s.lists, s.boards, listID, actor)
	if err != nil {
		return model.ColumnMove{}, err
	}
	return s.move(ctx, actor, l, sourcePosition, target, expectedVersion)
}

func (s *ListService) move(ctx context.Context, actor uint64, l model.List, sourcePosition, target int, expectedVersion *int64) (model.ColumnMove, error) {
	if target < 0 {
		return model.ColumnMove{}, apperr.InvalidArgument("Invalid target position")
	}
	mv, err := s.lists.Move(ctx, l.ID, target, expectedVersion)
	if err != nil {
		return model.ColumnMove{}, storeErr(err, "Column not found")
	}
	if mv.FromIndex != sourcePosition {
		s.log.Debug("column source position differs from stored index",
			zap.Uint64("list_id", l.ID), zap.Int("submitted", sourcePosition), zap.Int("stored", mv.FromIndex))
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventListMoved, BoardID: l.BoardID, ListID: l.ID, ActorID: actor, Payload: mv})
	return mv, nil
}
