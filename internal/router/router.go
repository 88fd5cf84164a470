// Package router builds the echo instance: the middleware stack, the
// error handler and every route of the API.
package router

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/config"
	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/logger"
	"github.com/iliyamo/taskboard/internal/middleware"
)

const (
	apiPrefix  = "/api/v1"
	avatarPath = apiPrefix + "/user/avatar"
	bodyLimit  = "16KB"
)

// Deps carries everything the routes need. Redis may be nil, which turns
// the rate limiter and the response cache into pass-throughs.
type Deps struct {
	Users  *handler.UserHandler
	Boards *handler.BoardHandler
	Lists  *handler.ListHandler
	Cards  *handler.CardHandler
	Stream *handler.StreamHandler
	Health *handler.HealthHandler

	Auth      middleware.Authenticator
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig

	CORSOrigins []string
	Dev         bool
	Log         *zap.Logger
}

// New returns a fully wired echo instance.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler(d.Dev, d.Log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(logger.RequestLogger(d.Log))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     d.CORSOrigins,
		AllowCredentials: true,
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	}))
	e.Use(echomw.BodyLimitWithConfig(echomw.BodyLimitConfig{
		Limit:   bodyLimit,
		Skipper: func(c echo.Context) bool { return c.Path() == avatarPath },
	}))

	RegisterRoutes(e, d.Health)
	RegisterAPI(e, d)
	return e
}

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", handler.Health)
	if h != nil {
		e.GET("/check-health", h.Check)
	} else {
		e.GET("/check-health", handler.Health)
	}
}

// RegisterAPI registers the /api/v1 resources. Only register, login and
// logout are reachable without a token.
func RegisterAPI(e *echo.Echo, d Deps) {
	auth := middleware.Auth(d.Auth)
	limit := middleware.RateLimit(d.RateLimit, d.Redis, d.Log)
	cache := middleware.Cache(d.Cache, d.Redis, d.Log)

	u := e.Group(apiPrefix + "/user")
	u.POST("/register", d.Users.Register, limit)
	u.POST("/login", d.Users.Login, limit)
	u.POST("/logout", d.Users.Logout)
	u.GET("/search", d.Users.Search, auth, cache)
	u.GET("/me", d.Users.Me, auth)
	u.PUT("/profile", d.Users.UpdateProfile, auth)
	u.PUT("/avatar", d.Users.UploadAvatar, auth, echomw.BodyLimit("6MB"))

	b := e.Group(apiPrefix+"/board", auth)
	b.POST("/create", d.Boards.Create)
	b.GET("", d.Boards.List)
	b.PUT("/position", d.Boards.UpdatePositions)
	b.POST("/add-members", d.Boards.AddMember)
	b.GET("/:boardId", d.Boards.Get)
	b.PUT("/:boardId", d.Boards.Update)
	b.DELETE("/:boardId", d.Boards.Delete)
	b.GET("/:boardId/members", d.Boards.Members)
	if d.Stream != nil {
		b.GET("/:boardId/ws", d.Stream.Board)
	}

	l := e.Group(apiPrefix+"/list", auth)
	l.POST("/:boardId", d.Lists.Create)
	l.GET("/:boardId", d.Lists.ByBoard)
	l.PUT("/:listId", d.Lists.Update)
	l.DELETE("/:listId", d.Lists.Delete)
	l.PATCH("/move/:listId", d.Lists.Move)

	c := e.Group(apiPrefix+"/card", auth)
	c.POST("/assign-users", d.Cards.Assign)
	c.GET("/detail/:cardId", d.Cards.Get)
	c.PUT("/update/:cardId", d.Cards.Update)
	c.PATCH("/move/:cardId", d.Cards.Move)
	c.PUT("/reorder/:cardId", d.Cards.Reorder)
	c.DELETE("/delete/:cardId", d.Cards.Delete)
	c.GET("/:boardId/search-members", d.Boards.SearchMembers)
	c.GET("/:cardId/assigned-members", d.Cards.AssignedMembers)
	c.POST("/:listId", d.Cards.Create)
	c.GET("/:listId", d.Cards.ByList)
}
