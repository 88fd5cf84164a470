package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/ordering"
)

// CardRepo stores cards and their assignees. Positions of a list's cards
// are kept at 0..n-1; every change to the set or order of a list's cards
// bumps the list version.
type CardRepo struct{ DB *sql.DB }

func NewCardRepo(db *sql.DB) *CardRepo { return &CardRepo{DB: db} }

const cardColumns = "c.id, c.title, c.description, c.list_id, c.position, c.due_date, c.labels, c.created_at, c.updated_at"

func scanCard(row interface{ Scan(...any) error }) (model.Card, error) {
	var (
		c      model.Card
		due    sql.NullTime
		labels []byte
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.ListID, &c.Position, &due, &labels, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	if due.Valid {
		t := due.Time
		c.DueDate = &t
	}
	c.Labels = []string{}
	if len(labels) > 0 {
		if err := json.Unmarshal(labels, &c.Labels); err != nil {
			return c, fmt.Errorf("card %d labels: %w", c.ID, err)
		}
	}
	c.AssignedTo = []uint64{}
	return c, nil
}

func encodeLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	b, err := json.Marshal(labels)
	return string(b), err
}

// loadCards runs query, which must select cardColumns, and attaches the
// assignee ids of every returned card.
func loadCards(ctx context.Context, q queryer, query string, args ...any) ([]model.Card, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := []model.Card{}
	index := map[uint64]int{}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]uint64, len(out))
	for i, c := range out {
		ids[i] = c.ID
	}
	in, inArgs := inClause(ids)
	arows, err := q.QueryContext(ctx,
		"SELECT card_id, user_id FROM card_assignees WHERE card_id IN ("+in+") ORDER BY card_id, user_id", inArgs...)
	if err != nil {
		return nil, err
	}
	defer arows.Close()
	for arows.Next() {
		var cid, uid uint64
		if err := arows.Scan(&cid, &uid); err != nil {
			return nil, err
		}
		if i, ok := index[cid]; ok {
			out[i].AssignedTo = append(out[i].AssignedTo, uid)
		}
	}
	return out, arows.Err()
}

// cardIDs returns the card ids of a list in position order.
func cardIDs(ctx context.Context, q queryer, listID uint64) ([]uint64, error) {
	return queryIDs(ctx, q, "SELECT id FROM cards WHERE list_id=? ORDER BY position, id", listID)
}

type lockedList struct {
	ID      uint64
	BoardID uint64
	Version int64
}

// lockLists takes row locks on the given lists in ascending id order so
// that two concurrent moves between the same lists cannot deadlock.
func lockLists(ctx context.Context, tx *sql.Tx, ids ...uint64) (map[uint64]lockedList, error) {
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := make(map[uint64]lockedList, len(sorted))
	for _, id := range sorted {
		if _, done := out[id]; done {
			continue
		}
		l := lockedList{ID: id}
		err := tx.QueryRowContext(ctx, "SELECT board_id, version FROM lists WHERE id=? FOR UPDATE", id).Scan(&l.BoardID, &l.Version)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		out[id] = l
	}
	return out, nil
}

func bumpList(ctx context.Context, tx *sql.Tx, listID uint64) error {
	_, err := tx.ExecContext(ctx, "UPDATE lists SET version = version + 1 WHERE id=?", listID)
	return err
}

func replaceAssignees(ctx context.Context, tx *sql.Tx, cardID uint64, userIDs []uint64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM card_assignees WHERE card_id=?", cardID); err != nil {
		return err
	}
	return insertAssignees(ctx, tx, cardID, userIDs)
}

func insertAssignees(ctx context.Context, q queryer, cardID uint64, userIDs []uint64) error {
	for _, uid := range userIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT IGNORE INTO card_assignees (card_id, user_id) VALUES (?,?)", cardID, uid); err != nil {
			return err
		}
	}
	return nil
}

// Create appends a card to the end of its list together with its
// assignees and bumps the list version, in one transaction.
func (r *CardRepo) Create(ctx context.Context, listID uint64, nc model.NewCard) (model.Card, error) {
	labels, err := encodeLabels(nc.Labels)
	if err != nil {
		return model.Card{}, err
	}
	var id uint64
	err = withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := lockLists(ctx, tx, listID); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM cards WHERE list_id=?", listID).Scan(&n); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO cards (list_id, title, description, position, due_date, labels)
			 VALUES (?,?,?,?,?,?)`,
			listID, nc.Title, nc.Description, n, nc.DueDate, labels)
		if err != nil {
			return err
		}
		last, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(last)
		if err := insertAssignees(ctx, tx, id, nc.AssignedTo); err != nil {
			return err
		}
		return bumpList(ctx, tx, listID)
	})
	if err != nil {
		return model.Card{}, err
	}
	return r.Get(ctx, id)
}

// Get loads one card with its assignee ids.
func (r *CardRepo) Get(ctx context.Context, id uint64) (model.Card, error) {
	cards, err := loadCards(ctx, r.DB, "SELECT "+cardColumns+" FROM cards c WHERE c.id=?", id)
	if err != nil {
		return model.Card{}, err
	}
	if len(cards) == 0 {
		return model.Card{}, ErrNotFound
	}
	return cards[0], nil
}

// ListByList returns the cards of a list in position order.
func (r *CardRepo) ListByList(ctx context.Context, listID uint64) ([]model.Card, error) {
	return loadCards(ctx, r.DB,
		"SELECT "+cardColumns+" FROM cards c WHERE c.list_id=? ORDER BY c.position, c.id", listID)
}

// Update applies patch in one transaction. When ListID names another list
// of the same board, the card is appended to that list and its former
// list is renumbered; a list on another board yields ErrConflict.
func (r *CardRepo) Update(ctx context.Context, id uint64, patch model.CardPatch) (model.Card, error) {
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var current uint64
		if err := tx.QueryRowContext(ctx, "SELECT list_id FROM cards WHERE id=?", id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		var sets []string
		var args []any
		if patch.Title != nil {
			sets, args = append(sets, "title=?"), append(args, *patch.Title)
		}
		if patch.Description != nil {
			sets, args = append(sets, "description=?"), append(args, *patch.Description)
		}
		switch {
		case patch.ClearDueDate:
			sets = append(sets, "due_date=NULL")
		case patch.DueDate != nil:
			sets, args = append(sets, "due_date=?"), append(args, *patch.DueDate)
		}
		if patch.Labels != nil {
			labels, err := encodeLabels(*patch.Labels)
			if err != nil {
				return err
			}
			sets, args = append(sets, "labels=?"), append(args, labels)
		}

		if patch.ListID != nil && *patch.ListID != current {
			target := *patch.ListID
			locked, err := lockLists(ctx, tx, current, target)
			if err != nil {
				return err
			}
			if locked[current].BoardID != locked[target].BoardID {
				return ErrConflict
			}
			// Append at the end of the target list.
			var n int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM cards WHERE list_id=?", target).Scan(&n); err != nil {
				return err
			}
			sets, args = append(sets, "list_id=?", "position=?"), append(args, target, n)
			if err := execCardSet(ctx, tx, id, sets, args); err != nil {
				return err
			}
			// Close the gap left in the old list.
			rest, err := cardIDs(ctx, tx, current)
			if err != nil {
				return err
			}
			if err := setPositions(ctx, tx, "cards", rest); err != nil {
				return err
			}
			// Both lists changed shape.
			if err := bumpList(ctx, tx, current); err != nil {
				return err
			}
			if err := bumpList(ctx, tx, target); err != nil {
				return err
			}
		} else if err := execCardSet(ctx, tx, id, sets, args); err != nil {
			return err
		}

		if patch.AssignedTo != nil {
			return replaceAssignees(ctx, tx, id, *patch.AssignedTo)
		}
		return nil
	})
	if err != nil {
		return model.Card{}, err
	}
	return r.Get(ctx, id)
}

func execCardSet(ctx context.Context, tx *sql.Tx, id uint64, sets []string, args []any) error {
	if len(sets) == 0 {
		return nil
	}
	_, err := tx.ExecContext(ctx, "UPDATE cards SET "+strings.Join(sets, ", ")+" WHERE id=?", append(args, id)...)
	return err
}

// Delete removes a card and renumbers the rest of its list, in one
// transaction. It returns the id of the list the card was in.
func (r *CardRepo) Delete(ctx context.Context, id uint64) (uint64, error) {
	var listID uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT list_id FROM cards WHERE id=?", id).Scan(&listID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := lockLists(ctx, tx, listID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM card_assignees WHERE card_id=?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM cards WHERE id=?", id); err != nil {
			return err
		}
		rest, err := cardIDs(ctx, tx, listID)
		if err != nil {
			return err
		}
		if err := setPositions(ctx, tx, "cards", rest); err != nil {
			return err
		}
		return bumpList(ctx, tx, listID)
	})
	return listID, err
}

// Reorder validates and applies a client-submitted card move in one
// transaction. Both lists are locked; stale versions yield
// ErrVersionConflict and orders that are not permutations of the stored
// cards yield ErrInvalidOrder.
func (r *CardRepo) Reorder(ctx context.Context, in model.CardReorder) (model.ReorderResult, error) {
	cross := in.CrossList()
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		// Lock both lists first; everything below reads under those locks.
		locked, err := lockLists(ctx, tx, in.SourceListID, in.DestinationListID)
		if err != nil {
			return err
		}
		src, dst := locked[in.SourceListID], locked[in.DestinationListID]
		// Cards never leave their board.
		if src.BoardID != dst.BoardID {
			return ErrConflict
		}
		// Versions are optional; when sent they must match what is stored.
		if in.SourceVersion != nil && *in.SourceVersion != src.Version {
			return ErrVersionConflict
		}
		if cross && in.DestinationVersion != nil && *in.DestinationVersion != dst.Version {
			return ErrVersionConflict
		}

		sourceCurrent, err := queryIDs(ctx, tx,
			"SELECT id FROM cards WHERE list_id=? ORDER BY position, id FOR UPDATE", in.SourceListID)
		if err != nil {
			return err
		}
		destCurrent := sourceCurrent
		if cross {
			if destCurrent, err = queryIDs(ctx, tx,
				"SELECT id FROM cards WHERE list_id=? ORDER BY position, id FOR UPDATE", in.DestinationListID); err != nil {
				return err
			}
		}
		// The submitted orders must be exact permutations of the stored ones.
		plan, err := ordering.PlanReorder(in.CardID, sourceCurrent, destCurrent, in.SourceOrder, in.DestinationOrder, cross)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
		}

		if err := setPositions(ctx, tx, "cards", plan.Source); err != nil {
			return err
		}
		if err := bumpList(ctx, tx, in.SourceListID); err != nil {
			return err
		}
		if !cross {
			return nil
		}
		// Reparent the card, then number the destination densely.
		if _, err := tx.ExecContext(ctx, "UPDATE cards SET list_id=? WHERE id=?", in.DestinationListID, in.CardID); err != nil {
			return err
		}
		if err := setPositions(ctx, tx, "cards", plan.Destination); err != nil {
			return err
		}
		return bumpList(ctx, tx, in.DestinationListID)
	})
	if err != nil {
		return model.ReorderResult{}, err
	}

	// Read back outside the transaction so the reply shows committed state.
	var res model.ReorderResult
	if res.Source, err = getList(ctx, r.DB, in.SourceListID); err != nil {
		return model.ReorderResult{}, err
	}
	if cross {
		dst, err := getList(ctx, r.DB, in.DestinationListID)
		if err != nil {
			return model.ReorderResult{}, err
		}
		res.Destination = &dst
	}
	return res, nil
}

// AddAssignees adds userIDs to a card's assignees; existing ones are kept.
func (r *CardRepo) AddAssignees(ctx context.Context, cardID uint64, userIDs []uint64) error {
	return insertAssignees(ctx, r.DB, cardID, userIDs)
}

// Assignees returns the summaries of a card's assignees.
func (r *CardRepo) Assignees(ctx context.Context, cardID uint64) ([]model.MemberSummary, error) {
	return querySummaries(ctx, r.DB,
		`SELECT u.id, u.name, u.email, u.avatar FROM card_assignees a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.card_id = ?
		 ORDER BY u.name, u.id`, cardID)
}
