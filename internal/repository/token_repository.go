package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo records revoked access tokens by their SHA-256 digest until
// they expire.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Revoke stores a token digest. Revoking the same token twice is a no-op.
func (r *TokenRepo) Revoke(ctx context.Context, tokenHash string, userID uint64, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT IGNORE INTO revoked_tokens (token_hash, user_id, expires_at) VALUES (?,?,?)",
		tokenHash, userID, exp.UTC())
	return err
}

// IsRevoked reports whether a digest was revoked and has not expired yet.
func (r *TokenRepo) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var expiresAt time.Time
	err := r.DB.QueryRowContext(ctx,
		"SELECT expires_at FROM revoked_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return time.Now().UTC().Before(expiresAt), nil
}

// PurgeExpired deletes digests of tokens that have expired anyway.
func (r *TokenRepo) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at < ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
