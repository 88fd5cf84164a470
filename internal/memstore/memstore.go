// Package memstore is an in-memory implementation of the service store
// interfaces, used by the service, router and client tests in place of
// MySQL.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/ordering"
	"github.com/iliyamo/taskboard/internal/repository"
)

// DB holds all state. It keeps the invariants of the MySQL repositories:
// positions are 0..n-1 and versions bump on order changes.
type DB struct {
	mu      sync.Mutex
	next    uint64
	users   map[uint64]model.User
	boards  map[uint64]model.Board
	lists   map[uint64]model.List
	cards   map[uint64]model.Card
	revoked map[string]time.Time
}

func New() *DB {
	return &DB{
		users:   map[uint64]model.User{},
		boards:  map[uint64]model.Board{},
		lists:   map[uint64]model.List{},
		cards:   map[uint64]model.Card{},
		revoked: map[string]time.Time{},
	}
}

// Counts reports how many lists and cards are stored.
func (db *DB) Counts() (lists, cards int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.lists), len(db.cards)
}

func (db *DB) id() uint64 {
	db.next++
	return db.next
}

func (db *DB) listIDs(boardID uint64) []uint64 {
	var ls []model.List
	for _, l := range db.lists {
		if l.BoardID == boardID {
			ls = append(ls, l)
		}
	}
	sort.Slice(ls, func(i, j int) bool {
		if ls[i].Position != ls[j].Position {
			return ls[i].Position < ls[j].Position
		}
		return ls[i].ID < ls[j].ID
	})
	out := []uint64{}
	for _, l := range ls {
		out = append(out, l.ID)
	}
	return out
}

func (db *DB) cardIDs(listID uint64) []uint64 {
	var cs []model.Card
	for _, c := range db.cards {
		if c.ListID == listID {
			cs = append(cs, c)
		}
	}
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Position != cs[j].Position {
			return cs[i].Position < cs[j].Position
		}
		return cs[i].ID < cs[j].ID
	})
	out := []uint64{}
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func (db *DB) renumberLists(order []uint64) {
	for i, id := range order {
		l := db.lists[id]
		l.Position = i
		db.lists[id] = l
	}
}

func (db *DB) renumberCards(listID uint64, order []uint64) {
	for i, id := range order {
		c := db.cards[id]
		c.ListID = listID
		c.Position = i
		db.cards[id] = c
	}
}

func (db *DB) bumpList(id uint64) {
	l := db.lists[id]
	l.Version++
	db.lists[id] = l
}

func (db *DB) bumpBoard(id uint64) {
	b := db.boards[id]
	b.Version++
	db.boards[id] = b
}

func (db *DB) list(id uint64) model.List {
	l := db.lists[id]
	l.Cards = db.cardIDs(id)
	return l
}

func (db *DB) card(id uint64) model.Card {
	c := db.cards[id]
	c.Labels = append([]string{}, c.Labels...)
	c.AssignedTo = append([]uint64{}, c.AssignedTo...)
	return c
}

func (db *DB) board(id uint64) model.Board {
	b := db.boards[id]
	b.Members = append([]uint64{}, b.Members...)
	return b
}

func (db *DB) summaries(ids []uint64) []model.MemberSummary {
	out := []model.MemberSummary{}
	for _, id := range ids {
		if u, ok := db.users[id]; ok {
			out = append(out, u.Summary())
		}
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

func matches(u model.User, q string) bool {
	q = strings.ToLower(q)
	return strings.Contains(strings.ToLower(u.Name), q) || strings.Contains(strings.ToLower(u.Email), q)
}

// Users implements the credential store.
type Users struct{ *DB }

func (s Users) Create(_ context.Context, name, email, hash string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return model.User{}, repository.ErrDuplicateEmail
		}
	}
	u := model.User{ID: s.id(), Name: name, Email: email, PasswordHash: hash, CreatedAt: time.Now()}
	s.users[u.ID] = u
	return u, nil
}

func (s Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	u.Boards = []uint64{}
	for _, b := range s.boards {
		if b.HasMember(id) {
			u.Boards = append(u.Boards, b.ID)
		}
	}
	sort.Slice(u.Boards, func(i, j int) bool { return u.Boards[i] < u.Boards[j] })
	return u, nil
}

func (s Users) UpdateProfile(ctx context.Context, id uint64, name, email string) (model.User, error) {
	s.mu.Lock()
	email = repository.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email && u.ID != id {
			s.mu.Unlock()
			return model.User{}, repository.ErrDuplicateEmail
		}
	}
	u, ok := s.users[id]
	if !ok {
		s.mu.Unlock()
		return model.User{}, repository.ErrNotFound
	}
	u.Name, u.Email = name, email
	s.users[id] = u
	s.mu.Unlock()
	return s.GetByID(ctx, id)
}

func (s Users) SetAvatar(ctx context.Context, id uint64, url string) (model.User, error) {
	s.mu.Lock()
	u, ok := s.users[id]
	if ok {
		u.Avatar = url
		s.users[id] = u
	}
	s.mu.Unlock()
	return s.GetByID(ctx, id)
}

func (s Users) Search(_ context.Context, q string, limit int) ([]model.MemberSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.MemberSummary{}
	for id := uint64(1); id <= s.next && len(out) < limit; id++ {
		if u, ok := s.users[id]; ok && matches(u, q) {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (s Users) Summaries(_ context.Context, ids []uint64) ([]model.MemberSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries(ids), nil
}

// Tokens records revoked tokens.
type Tokens struct{ *DB }

func (s Tokens) Revoke(_ context.Context, hash string, _ uint64, exp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[hash] = exp
	return nil
}

func (s Tokens) IsRevoked(_ context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[hash]
	return ok && time.Now().Before(exp), nil
}

// PurgeExpired drops revocations whose token has expired anyway.
func (s Tokens) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for h, exp := range s.revoked {
		if !now.Before(exp) {
			delete(s.revoked, h)
			n++
		}
	}
	return n, nil
}

type Boards struct{ *DB }

func (s Boards) Create(_ context.Context, b model.Board) (model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.id()
	b.Members = append([]uint64{}, b.Members...)
	s.boards[b.ID] = b
	return s.board(b.ID), nil
}

func (s Boards) Get(_ context.Context, id uint64) (model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[id]; !ok {
		return model.Board{}, repository.ErrNotFound
	}
	return s.board(id), nil
}

func (s Boards) ListForUser(_ context.Context, userID uint64) ([]model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Board{}
	for _, b := range s.boards {
		if b.HasMember(userID) {
			out = append(out, s.board(b.ID))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s Boards) Update(_ context.Context, id uint64, patch model.BoardPatch) (model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[id]
	if !ok {
		return model.Board{}, repository.ErrNotFound
	}
	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Color != nil {
		b.Color = *patch.Color
	}
	if patch.Members != nil {
		b.Members = append([]uint64{}, *patch.Members...)
		s.pruneAssignees(id, b.Members)
	}
	s.boards[id] = b
	return s.board(id), nil
}

// pruneAssignees drops assignees of the board's cards who are not in members.
func (db *DB) pruneAssignees(boardID uint64, members []uint64) {
	for _, lid := range db.listIDs(boardID) {
		for _, cid := range db.cardIDs(lid) {
			c := db.cards[cid]
			kept := []uint64{}
			for _, uid := range c.AssignedTo {
				if contains(members, uid) {
					kept = append(kept, uid)
				}
			}
			c.AssignedTo = kept
			db.cards[cid] = c
		}
	}
}

func (s Boards) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[id]; !ok {
		return repository.ErrNotFound
	}
	for _, lid := range s.listIDs(id) {
		for _, cid := range s.cardIDs(lid) {
			delete(s.cards, cid)
		}
		delete(s.lists, lid)
	}
	delete(s.boards, id)
	return nil
}

func (s Boards) SetPositions(_ context.Context, userID uint64, items []model.BoardPosition) ([]model.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		b, ok := s.boards[it.ID]
		if !ok {
			return nil, repository.ErrNotFound
		}
		if !b.HasMember(userID) {
			return nil, repository.ErrForbidden
		}
	}
	out := []model.Board{}
	for _, it := range items {
		b := s.boards[it.ID]
		b.Position = it.Position
		s.boards[it.ID] = b
		out = append(out, s.board(it.ID))
	}
	return out, nil
}

func (s Boards) AddMember(_ context.Context, boardID, userID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.boards[boardID]
	if !ok {
		return repository.ErrNotFound
	}
	if b.HasMember(userID) {
		return repository.ErrAlreadyMember
	}
	b.Members = append(b.Members, userID)
	s.boards[boardID] = b
	return nil
}

func (s Boards) Members(_ context.Context, boardID uint64) ([]model.MemberSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries(s.boards[boardID].Members), nil
}

func (s Boards) SearchMembers(_ context.Context, boardID uint64, q string) ([]model.MemberSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.MemberSummary{}
	for _, id := range s.boards[boardID].Members {
		if u, ok := s.users[id]; ok && matches(u, q) {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

type Lists struct{ *DB }

func (s Lists) Create(_ context.Context, boardID uint64, title string) (model.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[boardID]; !ok {
		return model.List{}, repository.ErrNotFound
	}
	l := model.List{ID: s.id(), BoardID: boardID, Title: title, Position: len(s.listIDs(boardID))}
	s.lists[l.ID] = l
	s.bumpBoard(boardID)
	return s.list(l.ID), nil
}

func (s Lists) Get(_ context.Context, id uint64) (model.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[id]; !ok {
		return model.List{}, repository.ErrNotFound
	}
	return s.list(id), nil
}

func (s Lists) ListByBoard(_ context.Context, boardID uint64) ([]model.ListWithCards, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.ListWithCards{}
	for _, lid := range s.listIDs(boardID) {
		lw := model.ListWithCards{List: s.list(lid), Cards: []model.Card{}}
		for _, cid := range lw.List.Cards {
			lw.Cards = append(lw.Cards, s.card(cid))
		}
		out = append(out, lw)
	}
	return out, nil
}

func (s Lists) Rename(_ context.Context, id uint64, title string) (model.List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	if !ok {
		return model.List{}, repository.ErrNotFound
	}
	l.Title = title
	s.lists[id] = l
	return s.list(id), nil
}

func (s Lists) Delete(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[id]
	if !ok {
		return repository.ErrNotFound
	}
	for _, cid := range s.cardIDs(id) {
		delete(s.cards, cid)
	}
	delete(s.lists, id)
	s.renumberLists(s.listIDs(l.BoardID))
	s.bumpBoard(l.BoardID)
	return nil
}

func (s Lists) Move(_ context.Context, listID uint64, target int, expected *int64) (model.ColumnMove, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lists[listID]
	if !ok {
		return model.ColumnMove{}, repository.ErrNotFound
	}
	b := s.boards[l.BoardID]
	if expected != nil && *expected != b.Version {
		return model.ColumnMove{}, repository.ErrVersionConflict
	}
	current := s.listIDs(l.BoardID)
	order, err := ordering.Move(current, listID, target)
	if err != nil {
		return model.ColumnMove{}, err
	}
	s.renumberLists(order)
	s.bumpBoard(l.BoardID)
	mv := model.ColumnMove{FromIndex: ordering.IndexOf(current, listID), BoardVersion: s.boards[l.BoardID].Version}
	for _, id := range order {
		mv.Lists = append(mv.Lists, s.lists[id])
	}
	return mv, nil
}

type Cards struct{ *DB }

func (s Cards) Create(_ context.Context, listID uint64, nc model.NewCard) (model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lists[listID]; !ok {
		return model.Card{}, repository.ErrNotFound
	}
	c := model.Card{
		ID:          s.id(),
		Title:       nc.Title,
		Description: nc.Description,
		ListID:      listID,
		Position:    len(s.cardIDs(listID)),
		DueDate:     nc.DueDate,
		Labels:      append([]string{}, nc.Labels...),
		AssignedTo:  append([]uint64{}, nc.AssignedTo...),
	}
	s.cards[c.ID] = c
	s.bumpList(listID)
	return s.card(c.ID), nil
}

func (s Cards) Get(_ context.Context, id uint64) (model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[id]; !ok {
		return model.Card{}, repository.ErrNotFound
	}
	return s.card(id), nil
}

func (s Cards) ListByList(_ context.Context, listID uint64) ([]model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Card{}
	for _, id := range s.cardIDs(listID) {
		out = append(out, s.card(id))
	}
	return out, nil
}

func (s Cards) Update(_ context.Context, id uint64, p model.CardPatch) (model.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return model.Card{}, repository.ErrNotFound
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.ClearDueDate {
		c.DueDate = nil
	} else if p.DueDate != nil {
		c.DueDate = p.DueDate
	}
	if p.Labels != nil {
		c.Labels = append([]string{}, *p.Labels...)
	}
	if p.AssignedTo != nil {
		c.AssignedTo = append([]uint64{}, *p.AssignedTo...)
	}
	source := c.ListID
	if p.ListID != nil && *p.ListID != source {
		target, ok := s.lists[*p.ListID]
		if !ok {
			return model.Card{}, repository.ErrNotFound
		}
		if target.BoardID != s.lists[source].BoardID {
			return model.Card{}, repository.ErrConflict
		}
		c.Position = len(s.cardIDs(target.ID))
		c.ListID = target.ID
		s.cards[id] = c
		s.renumberCards(source, s.cardIDs(source))
		s.bumpList(source)
		s.bumpList(target.ID)
		return s.card(id), nil
	}
	s.cards[id] = c
	return s.card(id), nil
}

func (s Cards) Delete(_ context.Context, id uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[id]
	if !ok {
		return 0, repository.ErrNotFound
	}
	delete(s.cards, id)
	s.renumberCards(c.ListID, s.cardIDs(c.ListID))
	s.bumpList(c.ListID)
	return c.ListID, nil
}

func (s Cards) Reorder(_ context.Context, in model.CardReorder) (model.ReorderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.lists[in.SourceListID]
	if !ok {
		return model.ReorderResult{}, repository.ErrNotFound
	}
	dst, ok := s.lists[in.DestinationListID]
	if !ok {
		return model.ReorderResult{}, repository.ErrNotFound
	}
	if src.BoardID != dst.BoardID {
		return model.ReorderResult{}, repository.ErrConflict
	}
	cross := in.CrossList()
	if in.SourceVersion != nil && *in.SourceVersion != src.Version {
		return model.ReorderResult{}, repository.ErrVersionConflict
	}
	if cross && in.DestinationVersion != nil && *in.DestinationVersion != dst.Version {
		return model.ReorderResult{}, repository.ErrVersionConflict
	}
	plan, err := ordering.PlanReorder(in.CardID, s.cardIDs(src.ID), s.cardIDs(dst.ID), in.SourceOrder, in.DestinationOrder, cross)
	if err != nil {
		return model.ReorderResult{}, fmt.Errorf("%w: %v", repository.ErrInvalidOrder, err)
	}
	s.renumberCards(src.ID, plan.Source)
	s.bumpList(src.ID)
	res := model.ReorderResult{}
	if cross {
		s.renumberCards(dst.ID, plan.Destination)
		s.bumpList(dst.ID)
		d := s.list(dst.ID)
		res.Destination = &d
	}
	res.Source = s.list(src.ID)
	return res, nil
}

func (s Cards) AddAssignees(_ context.Context, cardID uint64, ids []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cards[cardID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, id := range ids {
		if !contains(c.AssignedTo, id) {
			c.AssignedTo = append(c.AssignedTo, id)
		}
	}
	s.cards[cardID] = c
	return nil
}

func (s Cards) Assignees(_ context.Context, cardID uint64) ([]model.MemberSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries(s.cards[cardID].AssignedTo), nil
}
