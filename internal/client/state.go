package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/iliyamo/taskboard/internal/model"
)

// ErrUnknownCard and ErrUnknownList report ids that are not in the local
// state; no request is sent in that case.
var (
	ErrUnknownCard = errors.New("card is not on this board")
	ErrUnknownList = errors.New("list is not on this board")
)

// Column is one list with its cards in display order.
type Column struct {
	List  model.List
	Cards []model.Card
}

// BoardState is a local copy of one board: columns in order, each with
// its cards in order. Positions are kept at 0..n-1 after every change.
type BoardState struct {
	Board   model.Board
	Columns []Column
}

// Clone returns a deep copy.
func (s *BoardState) Clone() *BoardState {
	cp := &BoardState{Board: s.Board, Columns: make([]Column, len(s.Columns))}
	cp.Board.Members = append([]uint64(nil), s.Board.Members...)
	for i, col := range s.Columns {
		cp.Columns[i] = Column{List: col.List, Cards: append([]model.Card(nil), col.Cards...)}
		cp.Columns[i].List.Cards = append([]uint64(nil), col.List.Cards...)
	}
	return cp
}

func (s *BoardState) column(listID uint64) int {
	for i, col := range s.Columns {
		if col.List.ID == listID {
			return i
		}
	}
	return -1
}

// findCard returns the column and index of a card, or -1, -1.
func (s *BoardState) findCard(cardID uint64) (int, int) {
	for ci, col := range s.Columns {
		for i, c := range col.Cards {
			if c.ID == cardID {
				return ci, i
			}
		}
	}
	return -1, -1
}

// CardOrder returns the card ids of a list in display order.
func (s *BoardState) CardOrder(listID uint64) []uint64 {
	ci := s.column(listID)
	if ci < 0 {
		return nil
	}
	out := make([]uint64, len(s.Columns[ci].Cards))
	for i, c := range s.Columns[ci].Cards {
		out[i] = c.ID
	}
	return out
}

func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func (col *Column) renumber() {
	col.List.Cards = col.List.Cards[:0]
	for i := range col.Cards {
		col.Cards[i].Position = i
		col.Cards[i].ListID = col.List.ID
		col.List.Cards = append(col.List.Cards, col.Cards[i].ID)
	}
}

// moveCard moves a card to index toIndex (clamped) of list toListID and
// returns the source list id.
func (s *BoardState) moveCard(cardID, toListID uint64, toIndex int) (uint64, error) {
	from, idx := s.findCard(cardID)
	if from < 0 {
		return 0, ErrUnknownCard
	}
	to := s.column(toListID)
	if to < 0 {
		return 0, ErrUnknownList
	}
	src := &s.Columns[from]
	card := src.Cards[idx]
	src.Cards = append(src.Cards[:idx], src.Cards[idx+1:]...)

	dst := &s.Columns[to]
	toIndex = clamp(toIndex, len(dst.Cards))
	dst.Cards = append(dst.Cards, model.Card{})
	copy(dst.Cards[toIndex+1:], dst.Cards[toIndex:])
	dst.Cards[toIndex] = card

	src.renumber()
	if from != to {
		dst.renumber()
	}
	return src.List.ID, nil
}

// moveColumn moves a list to toIndex (clamped) and returns its old index.
func (s *BoardState) moveColumn(listID uint64, toIndex int) (int, error) {
	from := s.column(listID)
	if from < 0 {
		return 0, ErrUnknownList
	}
	col := s.Columns[from]
	s.Columns = append(s.Columns[:from], s.Columns[from+1:]...)
	toIndex = clamp(toIndex, len(s.Columns))
	s.Columns = append(s.Columns, Column{})
	copy(s.Columns[toIndex+1:], s.Columns[toIndex:])
	s.Columns[toIndex] = col
	for i := range s.Columns {
		s.Columns[i].List.Position = i
	}
	return from, nil
}

// Session holds the optimistic state of one board. Moves are applied
// locally first and then sent to the server; a rejected move restores the
// state as it was before the move.
type Session struct {
	api     *Client
	boardID uint64

	mu    sync.Mutex
	state *BoardState
	gen   uint64 // bumped by every local change
}

func NewSession(api *Client, boardID uint64) *Session {
	return &Session{api: api, boardID: boardID, state: &BoardState{}}
}

// State returns a copy of the current local state.
func (s *Session) State() *BoardState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Refresh replaces the local state with the server's.
func (s *Session) Refresh(ctx context.Context) error {
	b, err := s.api.Board(ctx, s.boardID)
	if err != nil {
		return err
	}
	lists, err := s.api.Lists(ctx, s.boardID)
	if err != nil {
		return err
	}
	st := &BoardState{Board: b, Columns: make([]Column, len(lists))}
	for i, l := range lists {
		st.Columns[i] = Column{List: l.List, Cards: l.Cards}
		st.Columns[i].renumber()
	}
	s.mu.Lock()
	s.state = st
	s.gen++
	s.mu.Unlock()
	return nil
}

// apply runs fn on the state under the lock and returns a snapshot taken
// before the change together with the generation after it.
func (s *Session) apply(fn func(*BoardState) error) (*BoardState, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.state.Clone()
	if err := fn(s.state); err != nil {
		s.state = snap
		return nil, 0, err
	}
	s.gen++
	return snap, s.gen, nil
}

// rollback restores snap when no other change happened since gen;
// otherwise the local state can no longer be trusted and is reloaded.
func (s *Session) rollback(ctx context.Context, snap *BoardState, gen uint64) {
	s.mu.Lock()
	if s.gen == gen {
		s.state = snap
		s.gen++
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	_ = s.Refresh(ctx)
}

// MoveCard moves a card to position toIndex of list toListID.
func (s *Session) MoveCard(ctx context.Context, cardID, toListID uint64, toIndex int) error {
	var req Reorder
	snap, gen, err := s.apply(func(st *BoardState) error {
		from, err := st.moveCard(cardID, toListID, toIndex)
		if err != nil {
			return err
		}
		req = Reorder{
			SourceListID:      from,
			DestinationListID: toListID,
			SourceCardOrder:   st.CardOrder(from),
		}
		if from != toListID {
			req.DestinationCardOrder = st.CardOrder(toListID)
		}
		// versions the move is based on, before the optimistic change
		if ci := st.column(from); ci >= 0 {
			v := st.Columns[ci].List.Version
			req.SourceVersion = &v
		}
		if ci := st.column(toListID); ci >= 0 && from != toListID {
			v := st.Columns[ci].List.Version
			req.DestinationVersion = &v
		}
		return nil
	})
	if err != nil {
		return err
	}

	res, err := s.api.ReorderCard(ctx, cardID, req)
	if err != nil {
		s.rollback(ctx, snap, gen)
		return fmt.Errorf("move card %d: %w", cardID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.adoptList(res.Source)
	if res.Destination != nil {
		s.adoptList(*res.Destination)
	}
	return nil
}

// adoptList takes the server's version for a list. Callers hold s.mu.
func (s *Session) adoptList(l model.List) {
	if ci := s.state.column(l.ID); ci >= 0 {
		s.state.Columns[ci].List.Version = l.Version
	}
}

// MoveColumn moves a list to position toIndex.
func (s *Session) MoveColumn(ctx context.Context, listID uint64, toIndex int) error {
	var (
		from, to int
		version  int64
	)
	snap, gen, err := s.apply(func(st *BoardState) error {
		var err error
		if from, err = st.moveColumn(listID, toIndex); err != nil {
			return err
		}
		to = st.column(listID)
		version = st.Board.Version
		return nil
	})
	if err != nil {
		return err
	}

	mv, err := s.api.MoveList(ctx, listID, from, to, &version)
	if err != nil {
		s.rollback(ctx, snap, gen)
		return fmt.Errorf("move list %d: %w", listID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Board.Version = mv.BoardVersion
	for _, l := range mv.Lists {
		s.adoptList(l)
	}
	return nil
}
