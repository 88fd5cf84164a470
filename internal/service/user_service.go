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
	"github.com/iliyamo/taskboard/internal/utils"
)

const (
	minPasswordLen  = 6
	userSearchLimit = 20
)

// AuthConfig holds token and hashing settings.
type AuthConfig struct {
	Secret     string
	TokenTTL   time.Duration
	BcryptCost int
}

// UserService implements registration, login/logout, profile management
// and token verification.
type UserService struct {
	users   UserStore
	tokens  TokenStore
	avatars AvatarStore
	cfg     AuthConfig
	log     *zap.Logger
}

// NewUserService wires a UserService. avatars may be nil when object
// storage is not configured.
func NewUserService(users UserStore, tokens TokenStore, avatars AvatarStore, cfg AuthConfig, log *zap.Logger) *UserService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &UserService{users: users, tokens: tokens, avatars: avatars, cfg: cfg, log: orNop(log)}
}

// TokenTTL is the lifetime of issued tokens and of the auth cookie.
func (s *UserService) TokenTTL() time.Duration { return s.cfg.TokenTTL }

// Session is the result of a successful login or credential change.
type Session struct {
	Token utils.AccessToken
	User  model.User
}

// Register creates a user account.
func (s *UserService) Register(ctx context.Context, name, email, password string) (model.User, error) {
	name, email = strings.TrimSpace(name), repository.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return model.User{}, apperr.InvalidArgument("All fields are required")
	}
	if !strings.Contains(email, "@") {
		return model.User{}, apperr.InvalidArgument("Invalid email address")
	}
	if len(password) < minPasswordLen {
		return model.User{}, apperr.InvalidArgument("Password must be at least 6 characters")
	}
	hash, err := utils.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return model.User{}, apperr.Internal("Failed to hash password", err)
	}
	u, err := s.users.Create(ctx, name, email, hash)
	if err != nil {
		return model.User{}, storeErr(err, "User not found")
	}
	s.log.Info("user registered", zap.Uint64("user_id", u.ID))
	return u, nil
}

// Login verifies credentials and issues an access token. Unknown email and
// wrong password produce the same error.
func (s *UserService) Login(ctx context.Context, email, password string) (Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return Session{}, apperr.InvalidArgument("Email and password are required")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, apperr.InvalidArgument("Invalid credentials")
	}
	if err != nil {
		return Session{}, storeErr(err, "User not found")
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return Session{}, apperr.InvalidArgument("Invalid credentials")
	}
	return s.issue(u)
}

func (s *UserService) issue(u model.User) (Session, error) {
	tok, err := utils.NewAccessToken(s.cfg.Secret, u.ID, s.cfg.TokenTTL)
	if err != nil {
		return Session{}, apperr.Internal("Failed to issue token", err)
	}
	return Session{Token: tok, User: u}, nil
}

// Authenticate verifies a raw token and returns its user id. Revoked
// tokens are rejected.
func (s *UserService) Authenticate(ctx context.Context, raw string) (uint64, error) {
	if raw == "" {
		return 0, apperr.Unauthenticated("Unauthorized: no token provided")
	}
	claims, err := utils.ParseAccessToken(s.cfg.Secret, raw)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindUnauthenticated, "Unauthorized: invalid token", err)
	}
	if s.tokens != nil {
		revoked, err := s.tokens.IsRevoked(ctx, utils.HashToken(raw))
		if err != nil {
			return 0, apperr.Internal("Failed to check token", err)
		}
		if revoked {
			return 0, apperr.Unauthenticated("Unauthorized: token revoked")
		}
	}
	return claims.UserID, nil
}

// Logout revokes raw until its expiry. Missing or already invalid tokens
// are ignored so logout always succeeds for the client.
func (s *UserService) Logout(ctx context.Context, raw string) error {
	if raw == "" || s.tokens == nil {
		return nil
	}
	claims, err := utils.ParseAccessToken(s.cfg.Secret, raw)
	if err != nil {
		return nil
	}
	if err := s.tokens.Revoke(ctx, utils.HashToken(raw), claims.UserID, claims.Exp); err != nil {
		return apperr.Internal("Failed to revoke token", err)
	}
	return nil
}

// Me returns the caller's profile including board ids.
func (s *UserService) Me(ctx context.Context, userID uint64) (model.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	return u, storeErr(err, "User not found")
}

// UpdateProfile changes name and email. When the email changes a fresh
// session is returned alongside the user.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint64, name, email string) (model.User, *Session, error) {
	name, email = strings.TrimSpace(name), repository.NormalizeEmail(email)
	if name == "" || email == "" {
		return model.User{}, nil, apperr.InvalidArgument("Name and email are required")
	}
	if !strings.Contains(email, "@") {
		return model.User{}, nil, apperr.InvalidArgument("Invalid email address")
	}
	before, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.User{}, nil, storeErr(err, "User not found")
	}
	u, err := s.users.UpdateProfile(ctx, userID, name, email)
	if err != nil {
		return model.User{}, nil, storeErr(err, "User not found")
	}
	if before.Email == u.Email {
		return u, nil, nil
	}
	sess, err := s.issue(u)
	if err != nil {
		return model.User{}, nil, err
	}
	return u, &sess, nil
}

// Search finds users by name or email substring.
func (s *UserService) Search(ctx context.Context, query string) ([]model.MemberSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.InvalidArgument("Search query is required")
	}
	out, err := s.users.Search(ctx, query, userSearchLimit)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}
	return out, nil
}

// UploadAvatar stores an image and saves its URL on the user.
func (s *UserService) UploadAvatar(ctx context.Context, userID uint64, contentType string, body io.Reader, size int64) (model.User, error) {
	if s.avatars == nil {
		return model.User{}, apperr.Unavailable("Avatar storage is not configured")
	}
	if !strings.HasPrefix(contentType, "image/") {
		return model.User{}, apperr.InvalidArgument("Avatar must be an image")
	}
	url, err := s.avatars.PutAvatar(ctx, userID, contentType, body, size)
	if err != nil {
		return model.User{}, apperr.Internal("Failed to store avatar", err)
	}
	u, err := s.users.SetAvatar(ctx, userID, url)
	return u, storeErr(err, "User not found")
}
