// Package service holds the business rules of the task board: input
// validation, authorization by board membership and translation of store
// errors into apperr kinds. Services depend on the store interfaces below;
// the MySQL repositories implement them.
package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/repository"
)

// UserStore is the credential store.
type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, name, email string) (model.User, error)
	SetAvatar(ctx context.Context, id uint64, url string) (model.User, error)
	Search(ctx context.Context, q string, limit int) ([]model.MemberSummary, error)
	Summaries(ctx context.Context, ids []uint64) ([]model.MemberSummary, error)
}

// TokenStore records revoked access tokens.
type TokenStore interface {
	Revoke(ctx context.Context, tokenHash string, userID uint64, exp time.Time) error
	IsRevoked(ctx context.Context, tokenHash string) (bool, error)
}

// BoardStore persists boards and membership.
type BoardStore interface {
	Create(ctx context.Context, b model.Board) (model.Board, error)
	Get(ctx context.Context, id uint64) (model.Board, error)
	ListForUser(ctx context.Context, userID uint64) ([]model.Board, error)
	Update(ctx context.Context, id uint64, patch model.BoardPatch) (model.Board, error)
	Delete(ctx context.Context, id uint64) error
	SetPositions(ctx context.Context, userID uint64, items []model.BoardPosition) ([]model.Board, error)
	AddMember(ctx context.Context, boardID, userID uint64) error
	Members(ctx context.Context, boardID uint64) ([]model.MemberSummary, error)
	SearchMembers(ctx context.Context, boardID uint64, q string) ([]model.MemberSummary, error)
}

// ListStore persists lists; every method keeps positions at 0..n-1.
type ListStore interface {
	Create(ctx context.Context, boardID uint64, title string) (model.List, error)
	Get(ctx context.Context, id uint64) (model.List, error)
	ListByBoard(ctx context.Context, boardID uint64) ([]model.ListWithCards, error)
	Rename(ctx context.Context, id uint64, title string) (model.List, error)
	Delete(ctx context.Context, id uint64) error
	Move(ctx context.Context, listID uint64, target int, expectedVersion *int64) (model.ColumnMove, error)
}

// CardStore persists cards and assignees.
type CardStore interface {
	Create(ctx context.Context, listID uint64, nc model.NewCard) (model.Card, error)
	Get(ctx context.Context, id uint64) (model.Card, error)
	ListByList(ctx context.Context, listID uint64) ([]model.Card, error)
	Update(ctx context.Context, id uint64, patch model.CardPatch) (model.Card, error)
	Delete(ctx context.Context, id uint64) (uint64, error)
	Reorder(ctx context.Context, in model.CardReorder) (model.ReorderResult, error)
	AddAssignees(ctx context.Context, cardID uint64, userIDs []uint64) error
	Assignees(ctx context.Context, cardID uint64) ([]model.MemberSummary, error)
}

// AvatarStore uploads avatar images and returns their URL.
type AvatarStore interface {
	PutAvatar(ctx context.Context, userID uint64, contentType string, body io.Reader, size int64) (string, error)
}

// Publisher receives board events after successful mutations.
type Publisher interface {
	Publish(ctx context.Context, ev model.BoardEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, model.BoardEvent) error { return nil }

// emit publishes ev without failing the caller; errors are only logged.
func emit(ctx context.Context, pub Publisher, log *zap.Logger, ev model.BoardEvent) {
	if pub == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn("publish board event", zap.String("type", ev.Type), zap.Uint64("board_id", ev.BoardID), zap.Error(err))
	}
}

// storeErr translates repository sentinels into apperr kinds. notFound is
// the message used for repository.ErrNotFound.
func storeErr(err error, notFound string) error {
	var ae *apperr.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ae):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound(notFound)
	case errors.Is(err, repository.ErrForbidden):
		return apperr.Forbidden("Access denied: You are not a member of this board")
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperr.InvalidArgument("User already exists")
	case errors.Is(err, repository.ErrAlreadyMember):
		return apperr.InvalidArgument("User is already a member of this board")
	case errors.Is(err, repository.ErrVersionConflict):
		return apperr.Conflict("Board changed since it was loaded, refresh and retry")
	case errors.Is(err, repository.ErrInvalidOrder):
		return apperr.Wrap(apperr.KindInvalidArgument, "Submitted order does not match the stored cards", err).
			WithDetails(strings.TrimPrefix(err.Error(), repository.ErrInvalidOrder.Error()+": "))
	case errors.Is(err, repository.ErrConflict):
		return apperr.Conflict("Lists belong to different boards")
	default:
		return apperr.Internal("Internal server error", err)
	}
}

// dedupIDs removes zero and repeated ids, keeping first occurrences.
func dedupIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// dedupLabels trims labels and drops empty or repeated ones.
func dedupLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func contains(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
