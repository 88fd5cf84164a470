package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/taskboard/internal/model"
)

// UserRepo is the credential store backed by the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id, name, email, password_hash, avatar, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Avatar, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// NormalizeEmail lower-cases and trims an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a user with an already hashed password.
func (r *UserRepo) Create(ctx context.Context, name, email, passwordHash string) (model.User, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash) VALUES (?,?,?)",
		strings.TrimSpace(name), NormalizeEmail(email), passwordHash)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email)))
}

// GetByID fetches a user by id together with the ids of the boards the
// user belongs to.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
	if err != nil {
		return u, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT board_id FROM board_members WHERE user_id=? ORDER BY board_id", id)
	if err != nil {
		return u, err
	}
	defer rows.Close()
	u.Boards = []uint64{}
	for rows.Next() {
		var b uint64
		if err := rows.Scan(&b); err != nil {
			return u, err
		}
		u.Boards = append(u.Boards, b)
	}
	return u, rows.Err()
}

// UpdateProfile sets name and email.
func (r *UserRepo) UpdateProfile(ctx context.Context, id uint64, name, email string) (model.User, error) {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET name=?, email=? WHERE id=?",
		strings.TrimSpace(name), NormalizeEmail(email), id)
	if err != nil {
		if isDuplicate(err) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, err
	}
	// affected rows is 0 for an unchanged profile; existence is checked by the read
	return r.GetByID(ctx, id)
}

// SetAvatar stores the avatar URL of a user.
func (r *UserRepo) SetAvatar(ctx context.Context, id uint64, url string) (model.User, error) {
	if _, err := r.DB.ExecContext(ctx, "UPDATE users SET avatar=? WHERE id=?", url, id); err != nil {
		return model.User{}, err
	}
	return r.GetByID(ctx, id)
}

// Search returns up to limit users whose name or email contains q,
// case-insensitively.
func (r *UserRepo) Search(ctx context.Context, q string, limit int) ([]model.MemberSummary, error) {
	p := likePattern(q)
	return querySummaries(ctx, r.DB,
		`SELECT id, name, email, avatar FROM users
		 WHERE LOWER(name) LIKE ? OR LOWER(email) LIKE ?
		 ORDER BY name, id LIMIT ?`, p, p, limit)
}

// Summaries returns the summaries of the given user ids that exist, in id
// order.
func (r *UserRepo) Summaries(ctx context.Context, ids []uint64) ([]model.MemberSummary, error) {
	if len(ids) == 0 {
		return []model.MemberSummary{}, nil
	}
	in, args := inClause(ids)
	return querySummaries(ctx, r.DB,
		"SELECT id, name, email, avatar FROM users WHERE id IN ("+in+") ORDER BY id", args...)
}

func querySummaries(ctx context.Context, q queryer, query string, args ...any) ([]model.MemberSummary, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.MemberSummary{}
	for rows.Next() {
		var m model.MemberSummary
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Avatar); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
