package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/taskboard/internal/apperr"
	"github.com/iliyamo/taskboard/internal/middleware"
	"github.com/iliyamo/taskboard/internal/model"
	"github.com/iliyamo/taskboard/internal/service"
)

// MaxAvatarBytes caps uploaded avatar images.
const MaxAvatarBytes = 5 << 20

// UserHandler bundles dependencies for account endpoints.
type UserHandler struct {
	Users        *service.UserService
	SecureCookie bool
}

func NewUserHandler(users *service.UserService, secureCookie bool) *UserHandler {
	return &UserHandler{Users: users, SecureCookie: secureCookie}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileReq struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userPart struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
	User    userPart  `json:"user"`
}

type profileResp struct {
	User  model.User `json:"user"`
	Token string     `json:"token,omitempty"`
}

func (h *UserHandler) setTokenCookie(c echo.Context, token string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(h.Users.TokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Register: create the account; the client logs in separately.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		return err
	}
	return created(c, userPart{ID: u.ID, Name: u.Name, Email: u.Email}, "User registered successfully")
}

// Login: verify credentials, set the token cookie and return the token.
func (h *UserHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	sess, err := h.Users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	h.setTokenCookie(c, sess.Token.Token, sess.Token.Exp)
	return ok(c, loginResp{
		Token:   sess.Token.Token,
		Expires: sess.Token.Exp,
		User:    userPart{ID: sess.User.ID, Name: sess.User.Name, Email: sess.User.Email},
	}, "Login successful")
}

// Logout: revoke the presented token (if any) and expire the cookie.
func (h *UserHandler) Logout(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Logout(ctx, middleware.TokenFromRequest(c.Request())); err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return ok(c, nil, "Logged out successfully")
}

// Me returns the caller's profile.
func (h *UserHandler) Me(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Me(ctx, uid)
	if err != nil {
		return err
	}
	return ok(c, u, "User profile fetched")
}

// UpdateProfile changes name/email; a changed email re-issues the token.
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	var req profileReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	u, sess, err := h.Users.UpdateProfile(ctx, uid, req.Name, req.Email)
	if err != nil {
		return err
	}
	resp := profileResp{User: u}
	if sess != nil {
		h.setTokenCookie(c, sess.Token.Token, sess.Token.Exp)
		resp.Token = sess.Token.Token
	}
	return ok(c, resp, "Profile updated successfully")
}

// UploadAvatar accepts a multipart "avatar" image.
func (h *UserHandler) UploadAvatar(c echo.Context) error {
	uid, err := actor(c)
	if err != nil {
		return err
	}
	fh, err := c.FormFile("avatar")
	if err != nil {
		return apperr.InvalidArgument("Avatar file is required")
	}
	if fh.Size > MaxAvatarBytes {
		return apperr.InvalidArgument("Avatar is too large")
	}
	f, err := fh.Open()
	if err != nil {
		return apperr.InvalidArgument("Avatar file is unreadable")
	}
	defer f.Close()

	// no dbTimeout: the upload streams the whole file
	u, err := h.Users.UploadAvatar(c.Request().Context(), uid, fh.Header.Get(echo.HeaderContentType), f, fh.Size)
	if err != nil {
		return err
	}
	return ok(c, u, "Avatar updated successfully")
}

// Search finds users by name or email (?query=).
func (h *UserHandler) Search(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	out, err := h.Users.Search(ctx, c.QueryParam("query"))
	if err != nil {
		return err
	}
	return ok(c, out, "Users fetched successfully")
}
