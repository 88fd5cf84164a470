package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/ordering"
)

// ListRepo stores board columns. Positions of a board's lists are kept
// at 0..n-1 by every mutating method.
type ListRepo struct{ DB *sql.DB }

func NewListRepo(db *sql.DB) *ListRepo { return &ListRepo{DB: db} }

const listColumns = "id, title, board_id, position, version, created_at, updated_at"

func scanList(row interface{ Scan(...any) error }) (model.List, error) {
	var l model.List
	err := row.Scan(&l.ID, &l.Title, &l.BoardID, &l.Position, &l.Version, &l.CreatedAt, &l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return l, ErrNotFound
	}
	return l, err
}

// lockBoard takes the board row lock that serializes changes to the
// board's list order and returns its version.
func lockBoard(ctx context.Context, tx *sql.Tx, boardID uint64) (int64, error) {
	var version int64
	err := tx.QueryRowContext(ctx, "SELECT version FROM boards WHERE id=? FOR UPDATE", boardID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return version, err
}

func bumpBoard(ctx context.Context, tx *sql.Tx, boardID uint64) error {
	_, err := tx.ExecContext(ctx, "UPDATE boards SET version = version + 1 WHERE id=?", boardID)
	return err
}

// listIDs returns the ids of a board's lists ordered by position.
func listIDs(ctx context.Context, q queryer, boardID uint64) ([]uint64, error) {
	return queryIDs(ctx, q, "SELECT id FROM lists WHERE board_id=? ORDER BY position, id", boardID)
}

func queryIDs(ctx context.Context, q queryer, query string, args ...any) ([]uint64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []uint64{}
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Create appends a list to the end of its board and bumps the board
// version.
func (r *ListRepo) Create(ctx context.Context, boardID uint64, title string) (model.List, error) {
	var id uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if _, err := lockBoard(ctx, tx, boardID); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM lists WHERE board_id=?", boardID).Scan(&n); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"INSERT INTO lists (board_id, title, position) VALUES (?,?,?)", boardID, title, n)
		if err != nil {
			return err
		}
		last, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(last)
		return bumpBoard(ctx, tx, boardID)
	})
	if err != nil {
		return model.List{}, err
	}
	return r.Get(ctx, id)
}

// Get loads a list with its card ids in position order.
func (r *ListRepo) Get(ctx context.Context, id uint64) (model.List, error) {
	return getList(ctx, r.DB, id)
}

func getList(ctx context.Context, q queryer, id uint64) (model.List, error) {
	l, err := scanList(q.QueryRowContext(ctx, "SELECT "+listColumns+" FROM lists WHERE id=?", id))
	if err != nil {
		return l, err
	}
	l.Cards, err = cardIDs(ctx, q, id)
	return l, err
}

// ListByBoard returns a board's lists ordered by position, each with its
// cards ordered by position. Cards are fetched in one query and grouped.
func (r *ListRepo) ListByBoard(ctx context.Context, boardID uint64) ([]model.ListWithCards, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+listColumns+" FROM lists WHERE board_id=? ORDER BY position, id", boardID)
	if err != nil {
		return nil, err
	}
	out := []model.ListWithCards{}
	index := map[uint64]int{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		l.Cards = []uint64{}
		index[l.ID] = len(out)
		out = append(out, model.ListWithCards{List: l, Cards: []model.Card{}})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	cards, err := loadCards(ctx, r.DB,
		`SELECT `+cardColumns+` FROM cards c
		 JOIN lists l ON l.id = c.list_id
		 WHERE l.board_id = ?
		 ORDER BY c.list_id, c.position, c.id`, boardID)
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		i, ok := index[c.ListID]
		if !ok {
			continue
		}
		out[i].Cards = append(out[i].Cards, c)
		out[i].List.Cards = append(out[i].List.Cards, c.ID)
	}
	return out, nil
}

// Rename sets a list's title.
func (r *ListRepo) Rename(ctx context.Context, id uint64, title string) (model.List, error) {
	if _, err := r.DB.ExecContext(ctx, "UPDATE lists SET title=? WHERE id=?", title, id); err != nil {
		return model.List{}, err
	}
	return r.Get(ctx, id)
}

// Delete removes a list with its cards and renumbers the remaining lists
// of the board, in one transaction.
func (r *ListRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var boardID uint64
		if err := tx.QueryRowContext(ctx, "SELECT board_id FROM lists WHERE id=?", id).Scan(&boardID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if _, err := lockBoard(ctx, tx, boardID); err != nil {
			return err
		}
		steps := []string{
			"DELETE ca FROM card_assignees ca JOIN cards c ON c.id = ca.card_id WHERE c.list_id = ?",
			"DELETE FROM cards WHERE list_id = ?",
			"DELETE FROM lists WHERE id = ?",
		}
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		rest, err := listIDs(ctx, tx, boardID)
		if err != nil {
			return err
		}
		if err := setPositions(ctx, tx, "lists", rest); err != nil {
			return err
		}
		return bumpBoard(ctx, tx, boardID)
	})
}

// Move takes a list out of its board's order and reinserts it at target,
// clamped to the board's bounds, then renumbers all lists. When
// expectedVersion is set it must match the board version or
// ErrVersionConflict is returned.
func (r *ListRepo) Move(ctx context.Context, listID uint64, target int, expectedVersion *int64) (model.ColumnMove, error) {
	var mv model.ColumnMove
	var boardID uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT board_id FROM lists WHERE id=?", listID).Scan(&boardID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		// The board row lock serializes every change to this board's list order.
		version, err := lockBoard(ctx, tx, boardID)
		if err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != version {
			return ErrVersionConflict
		}
		current, err := queryIDs(ctx, tx,
			"SELECT id FROM lists WHERE board_id=? ORDER BY position, id FOR UPDATE", boardID)
		if err != nil {
			return err
		}
		mv.FromIndex = ordering.IndexOf(current, listID)
		// Out of range targets are clamped to the first or last slot.
		order, err := ordering.Move(current, listID, target)
		if err != nil {
			return err
		}
		if err := setPositions(ctx, tx, "lists", order); err != nil {
			return err
		}
		if err := bumpBoard(ctx, tx, boardID); err != nil {
			return err
		}
		mv.BoardVersion = version + 1 // matches the bump above
		return nil
	})
	if err != nil {
		return model.ColumnMove{}, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+listColumns+" FROM lists WHERE board_id=? ORDER BY position, id", boardID)
	if err != nil {
		return model.ColumnMove{}, err
	}
	defer rows.Close()
	mv.Lists = []model.List{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return model.ColumnMove{}, err
		}
		mv.Lists = append(mv.Lists, l)
	}
	return mv, rows.Err()
}
