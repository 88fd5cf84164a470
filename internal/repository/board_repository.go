package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/taskboard/internal/model"
)

// BoardRepo stores boards and their membership.
type BoardRepo struct{ DB *sql.DB }

func NewBoardRepo(db *sql.DB) *BoardRepo { return &BoardRepo{DB: db} }

const boardColumns = "b.id, b.title, b.color, b.position, b.created_by, b.version, b.created_at, b.updated_at"

func scanBoard(row interface{ Scan(...any) error }) (model.Board, error) {
	var b model.Board
	err := row.Scan(&b.ID, &b.Title, &b.Color, &b.Position, &b.CreatedBy, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrNotFound
	}
	return b, err
}

// Create inserts the board and one membership row per member in a single
// transaction. b.Members must already contain b.CreatedBy.
func (r *BoardRepo) Create(ctx context.Context, b model.Board) (model.Board, error) {
	var id uint64
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO boards (title, color, position, created_by) VALUES (?,?,?,?)",
			b.Title, b.Color, b.Position, b.CreatedBy)
		if err != nil {
			return err
		}
		last, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(last)
		return insertMembers(ctx, tx, id, b.Members)
	})
	if err != nil {
		return model.Board{}, err
	}
	return r.Get(ctx, id)
}

func insertMembers(ctx context.Context, tx *sql.Tx, boardID uint64, userIDs []uint64) error {
	for _, uid := range userIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT IGNORE INTO board_members (board_id, user_id) VALUES (?,?)", boardID, uid); err != nil {
			return err
		}
	}
	return nil
}

// Get loads a board with its member ids.
func (r *BoardRepo) Get(ctx context.Context, id uint64) (model.Board, error) {
	b, err := scanBoard(r.DB.QueryRowContext(ctx, "SELECT "+boardColumns+" FROM boards b WHERE b.id=?", id))
	if err != nil {
		return b, err
	}
	members, err := memberIDs(ctx, r.DB, []uint64{id})
	if err != nil {
		return b, err
	}
	b.Members = members[id]
	return b, nil
}

// memberIDs returns member ids per board, creator included, in join order.
func memberIDs(ctx context.Context, q queryer, boardIDs []uint64) (map[uint64][]uint64, error) {
	out := make(map[uint64][]uint64, len(boardIDs))
	if len(boardIDs) == 0 {
		return out, nil
	}
	in, args := inClause(boardIDs)
	rows, err := q.QueryContext(ctx,
		"SELECT board_id, user_id FROM board_members WHERE board_id IN ("+in+") ORDER BY added_at, user_id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var bid, uid uint64
		if err := rows.Scan(&bid, &uid); err != nil {
			return nil, err
		}
		out[bid] = append(out[bid], uid)
	}
	return out, rows.Err()
}

// ListForUser returns every board userID is a member of, ordered by
// position then id.
func (r *BoardRepo) ListForUser(ctx context.Context, userID uint64) ([]model.Board, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+boardColumns+` FROM boards b
		 JOIN board_members m ON m.board_id = b.id
		 WHERE m.user_id = ?
		 ORDER BY b.position, b.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Board{}
	var ids []uint64
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	members, err := memberIDs(ctx, r.DB, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Members = members[out[i].ID]
	}
	return out, nil
}

// Update applies patch in one transaction. A non-nil Members replaces the
// membership set; the caller guarantees it still contains the creator.
func (r *BoardRepo) Update(ctx context.Context, id uint64, patch model.BoardPatch) (model.Board, error) {
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked uint64
		if err := tx.QueryRowContext(ctx, "SELECT id FROM boards WHERE id=? FOR UPDATE", id).Scan(&locked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if patch.Title != nil {
			if _, err := tx.ExecContext(ctx, "UPDATE boards SET title=? WHERE id=?", *patch.Title, id); err != nil {
				return err
			}
		}
		if patch.Color != nil {
			if _, err := tx.ExecContext(ctx, "UPDATE boards SET color=? WHERE id=?", *patch.Color, id); err != nil {
				return err
			}
		}
		if patch.Members != nil {
			if err := replaceMembers(ctx, tx, id, *patch.Members); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.Board{}, err
	}
	return r.Get(ctx, id)
}

// replaceMembers makes keep the board's member set. Card assignments of
// removed members go with them.
func replaceMembers(ctx context.Context, tx *sql.Tx, boardID uint64, keep []uint64) error {
	memberQ := "DELETE FROM board_members WHERE board_id=?"
	assigneeQ := `DELETE ca FROM card_assignees ca
		 JOIN cards c ON c.id = ca.card_id
		 JOIN lists l ON l.id = c.list_id
		 WHERE l.board_id = ?`
	args := []any{boardID}
	// An empty keep set clears the board entirely.
	if len(keep) > 0 {
		in, inArgs := inClause(keep)
		memberQ += " AND user_id NOT IN (" + in + ")"
		assigneeQ += " AND ca.user_id NOT IN (" + in + ")"
		args = append(args, inArgs...)
	}
	// Assignments go before memberships so no card keeps a non-member.
	if _, err := tx.ExecContext(ctx, assigneeQ, args...); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, memberQ, args...); err != nil {
		return err
	}
	return insertMembers(ctx, tx, boardID, keep)
}

// Delete removes a board and everything under it: card assignments, cards,
// lists and memberships, in one transaction.
func (r *BoardRepo) Delete(ctx context.Context, id uint64) error {
	return withTx(ctx, r.DB, func(tx *sql.Tx) error {
		var locked uint64
		if err := tx.QueryRowContext(ctx, "SELECT id FROM boards WHERE id=? FOR UPDATE", id).Scan(&locked); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		// Children first: assignments, cards, lists, memberships, then the board.
		steps := []string{
			`DELETE ca FROM card_assignees ca
			 JOIN cards c ON c.id = ca.card_id
			 JOIN lists l ON l.id = c.list_id
			 WHERE l.board_id = ?`,
			`DELETE c FROM cards c JOIN lists l ON l.id = c.list_id WHERE l.board_id = ?`,
			`DELETE FROM lists WHERE board_id = ?`,
			`DELETE FROM board_members WHERE board_id = ?`,
			`DELETE FROM boards WHERE id = ?`,
		}
		for _, q := range steps {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetPositions assigns the given positions in one transaction. Every board
// must exist (ErrNotFound) and have userID as a member (ErrForbidden).
func (r *BoardRepo) SetPositions(ctx context.Context, userID uint64, items []model.BoardPosition) ([]model.Board, error) {
	err := withTx(ctx, r.DB, func(tx *sql.Tx) error {
		for _, it := range items {
			// A NULL member column means the board exists but userID is not on it.
			var member sql.NullInt64
			err := tx.QueryRowContext(ctx,
				`SELECT m.user_id FROM boards b
				 LEFT JOIN board_members m ON m.board_id = b.id AND m.user_id = ?
				 WHERE b.id = ? FOR UPDATE`, userID, it.ID).Scan(&member)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			if !member.Valid {
				return ErrForbidden
			}
			if _, err := tx.ExecContext(ctx, "UPDATE boards SET position=? WHERE id=?", it.Position, it.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Board, 0, len(items))
	for _, it := range items {
		b, err := r.Get(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// AddMember inserts one membership row.
func (r *BoardRepo) AddMember(ctx context.Context, boardID, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO board_members (board_id, user_id) VALUES (?,?)", boardID, userID)
	if isDuplicate(err) {
		return ErrAlreadyMember
	}
	return err
}

// Members returns the summaries of a board's members.
func (r *BoardRepo) Members(ctx context.Context, boardID uint64) ([]model.MemberSummary, error) {
	return querySummaries(ctx, r.DB,
		`SELECT u.id, u.name, u.email, u.avatar FROM board_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.board_id = ?
		 ORDER BY m.added_at, u.id`, boardID)
}

// SearchMembers returns members whose name or email contains q,
// case-insensitively.
func (r *BoardRepo) SearchMembers(ctx context.Context, boardID uint64, q string) ([]model.MemberSummary, error) {
	p := likePattern(q)
	return querySummaries(ctx, r.DB,
		`SELECT u.id, u.name, u.email, u.avatar FROM board_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.board_id = ? AND (LOWER(u.name) LIKE ? OR LOWER(u.email) LIKE ?)
		 ORDER BY u.name, u.id`, boardID, p, p)
}
