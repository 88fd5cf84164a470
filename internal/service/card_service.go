package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/model"
)

// CardService manages cards, their order and their assignees. Every
// operation requires membership of the card's board.
type CardService struct {
	cards  CardStore
	lists  ListStore
	boards BoardStore
	events Publisher
	log    *zap.Logger
}

func NewCardService(cards CardStore, lists ListStore, boards BoardStore, events Publisher, log *zap.Logger) *CardService {
	if events == nil {
		events = NopPublisher{}
	}
	return &CardService{cards: cards, lists: lists, boards: boards, events: events, log: orNop(log)}
}

// cardScope is a card with the list and board it lives on.
type cardScope struct {
	card  model.Card
	list  model.List
	board model.Board
}

func (s *CardService) authorizeCard(ctx context.Context, cardID, actor uint64) (cardScope, error) {
	if cardID == 0 {
		return cardScope{}, apperr.InvalidArgument("Invalid card ID")
	}
	c, err := s.cards.Get(ctx, cardID)
	if err != nil {
		return cardScope{}, storeErr(err, "Card not found")
	}
	l, err := s.lists.Get(ctx, c.ListID)
	if err != nil {
		return cardScope{}, storeErr(err, "List not found")
	}
	b, err := authorizeBoard(ctx, s.boards, l.BoardID, actor)
	if err != nil {
		return cardScope{}, err
	}
	return cardScope{card: c, list: l, board: b}, nil
}

// requireMembers fails with InvalidArgument unless every id is a member of b.
func requireMembers(b model.Board, ids []uint64) error {
	for _, id := range ids {
		if !b.HasMember(id) {
			return apperr.InvalidArgument("Assignees must be members of the board")
		}
	}
	return nil
}

// Create appends a card to a list.
func (s *CardService) Create(ctx context.Context, actor, listID uint64, nc model.NewCard) (model.Card, error) {
	nc.Title = strings.TrimSpace(nc.Title)
	if nc.Title == "" {
		return model.Card{}, apperr.InvalidArgument("Title is required")
	}
	l, err := authorizeList(ctx, s.lists, s.boards, listID, actor)
	if err != nil {
		return model.Card{}, err
	}
	b, err := s.boards.Get(ctx, l.BoardID)
	if err != nil {
		return model.Card{}, storeErr(err, "Board not found")
	}
	nc.Labels = dedupLabels(nc.Labels)
	nc.AssignedTo = dedupIDs(nc.AssignedTo)
	if err := requireMembers(b, nc.AssignedTo); err != nil {
		return model.Card{}, err
	}
	c, err := s.cards.Create(ctx, listID, nc)
	if err != nil {
		return model.Card{}, storeErr(err, "List not found")
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventCardCreated, BoardID: l.BoardID, ListID: listID, CardID: c.ID, ActorID: actor, Payload: c})
	return c, nil
}

// ByList returns a list's cards ordered by position.
func (s *CardService) ByList(ctx context.Context, actor, listID uint64) ([]model.Card, error) {
	if _, err := authorizeList(ctx, s.lists, s.boards, listID, actor); err != nil {
		return nil, err
	}
	out, err := s.cards.ListByList(ctx, listID)
	if err != nil {
		return nil, storeErr(err, "List not found")
	}
	return out, nil
}

// Get returns one card with its assignees populated.
func (s *CardService) Get(ctx context.Context, actor, cardID uint64) (model.Card, error) {
	sc, err := s.authorizeCard(ctx, cardID, actor)
	if err != nil {
		return model.Card{}, err
	}
	return s.populate(ctx, sc.card)
}

func (s *CardService) populate(ctx context.Context, c model.Card) (model.Card, error) {
	users, err := s.cards.Assignees(ctx, c.ID)
	if err != nil {
		return model.Card{}, storeErr(err, "Card not found")
	}
	c.AssignedUsers = users
	return c, nil
}

// Update applies a partial update. A listId change appends the card to
// the target list, which must be on the same board.
func (s *CardService) Update(ctx context.Context, actor, cardID uint64, patch model.CardPatch) (model.Card, error) {
	sc, err := s.authorizeCard(ctx, cardID, actor)
	if err != nil {
		return model.Card{}, err
	}
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		if t == "" {
			return model.Card{}, apperr.InvalidArgument("Title is required")
		}
		patch.Title = &t
	}
	if patch.Labels != nil {
		labels := dedupLabels(*patch.Labels)
		patch.Labels = &labels
	}
	if patch.AssignedTo != nil {
		ids := dedupIDs(*patch.AssignedTo)
		if err := requireMembers(sc.board, ids); err != nil {
			return model.Card{}, err
		}
		patch.AssignedTo = &ids
	}
	moved := false
	if patch.ListID != nil && *patch.ListID != sc.card.ListID {
		target, err := s.lists.Get(ctx, *patch.ListID)
		if err != nil {
			return model.Card{}, storeErr(err, "Target list not found")
		}
		if target.BoardID != sc.board.ID {
			return model.Card{}, apperr.InvalidArgument("Target list belongs to another board")
		}
		moved = true
	}
	c, err := s.cards.Update(ctx, cardID, patch)
	if err != nil {
		return model.Card{}, storeErr(err, "Card not found")
	}
	typ := model.EventCardUpdated
	if moved {
		typ = model.EventCardMoved
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: typ, BoardID: sc.board.ID, ListID: c.ListID, CardID: c.ID, ActorID: actor, Payload: c})
	return c, nil
}

// Delete removes a card and renumbers its list.
func (s *CardService) Delete(ctx context.Context, actor, cardID uint64) error {
	sc, err := s.authorizeCard(ctx, cardID, actor)
	if err != nil {
		return err
	}
	if _, err := s.cards.Delete(ctx, cardID); err != nil {
		return storeErr(err, "Card not found")
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventCardDeleted, BoardID: sc.board.ID, ListID: sc.list.ID, CardID: cardID, ActorID: actor})
	return nil
}

// Reorder applies a client-submitted card move. Authorization uses the
// destination list's board; the source list must be on the same board.
// The submitted orders must be permutations of the stored cards.
func (s *CardService) Reorder(ctx context.Context, actor uint64, in model.CardReorder) (model.ReorderResult, error) {
	if in.CardID == 0 || in.SourceListID == 0 || in.DestinationListID == 0 {
		return model.ReorderResult{}, apperr.InvalidArgument("Card ID, source list ID and destination list ID are required")
	}
	dst, err := authorizeList(ctx, s.lists, s.boards, in.DestinationListID, actor)
	if err != nil {
		return model.ReorderResult{}, err
	}
	if in.CrossList() {
		src, err := s.lists.Get(ctx, in.SourceListID)
		if err != nil {
			return model.ReorderResult{}, storeErr(err, "Source or target list not found")
		}
		if src.BoardID != dst.BoardID {
			return model.ReorderResult{}, apperr.InvalidArgument("Source and destination lists belong to different boards")
		}
	}
	res, err := s.cards.Reorder(ctx, in)
	if err != nil {
		return model.ReorderResult{}, storeErr(err, "Source or target list not found")
	}
	emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventCardMoved, BoardID: dst.BoardID, ListID: in.DestinationListID, CardID: in.CardID, ActorID: actor, Payload: res})
	return res, nil
}

// MoveTask is the task-board flavour of Reorder with the same semantics.
func (s *CardService) MoveTask(ctx context.Context, actor uint64, in model.CardReorder) (model.ReorderResult, error) {
	return s.Reorder(ctx, actor, in)
}

// Assign adds board members to a card's assignees, keeping existing ones,
// and returns the card with assignees populated.
func (s *CardService) Assign(ctx context.Context, actor, cardID uint64, userIDs []uint64) (model.Card, error) {
	ids := dedupIDs(userIDs)
	if cardID == 0 || len(ids) == 0 {
		return model.Card{}, apperr.InvalidArgument("Card ID and user IDs are required")
	}
	sc, err := s.authorizeCard(ctx, cardID, actor)
	if err != nil {
		return model.Card{}, err
	}
	if err := requireMembers(sc.board, ids); err != nil {
		return model.Card{}, err
	}
	var added []uint64
	for _, id := range ids {
		if !contains(sc.card.AssignedTo, id) {
			added = append(added, id)
		}
	}
	if len(added) > 0 {
		if err := s.cards.AddAssignees(ctx, cardID, added); err != nil {
			return model.Card{}, storeErr(err, "Card not found")
		}
	}
	c, err := s.cards.Get(ctx, cardID)
	if err != nil {
		return model.Card{}, storeErr(err, "Card not found")
	}
	c, err = s.populate(ctx, c)
	if err != nil {
		return model.Card{}, err
	}
	if len(added) > 0 {
		emit(ctx, s.events, s.log, model.BoardEvent{Type: model.EventCardAssigned, BoardID: sc.board.ID, ListID: c.ListID, CardID: c.ID, ActorID: actor, Payload: map[string][]uint64{"userIds": added}})
	}
	return c, nil
}

// AssignedMembers returns the populated assignees of a card.
func (s *CardService) AssignedMembers(ctx context.Context, actor, cardID uint64) ([]model.MemberSummary, error) {
	if _, err := s.authorizeCard(ctx, cardID, actor); err != nil {
		return nil, err
	}
	out, err := s.cards.Assignees(ctx, cardID)
	if err != nil {
		return nil, storeErr(err, "Card not found")
	}
	return out, nil
}
