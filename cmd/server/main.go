package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/taskboard/internal/config"
	"github.com/iliyamo/taskboard/internal/database"
	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/logger"
	"github.com/iliyamo/taskboard/internal/queue"
	"github.com/iliyamo/taskboard/internal/realtime"
	"github.com/iliyamo/taskboard/internal/repository"
	"github.com/iliyamo/taskboard/internal/router"
	"github.com/iliyamo/taskboard/internal/service"
	"github.com/iliyamo/taskboard/internal/storage"
)

const (
	purgeInterval = time.Hour
	eventBuffer   = 1024
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load before the environment")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		// no logger yet; the config decides its shape
		zap.NewExample().Fatal("load config", zap.Error(err))
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		zap.NewExample().Fatal("build logger", zap.Error(err))
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	if cfg.DB.Migrate {
		if err := database.Migrate(db, cfg.DB.Name, log); err != nil {
			log.Fatal("migrate database", zap.Error(err))
		}
	}

	rdb := config.NewRedisClient(cfg.Redis, log)
	var hub *realtime.Hub
	if rdb != nil {
		hub = realtime.NewHub(rdb, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink, broker := eventSink(ctx, cfg, hub, log)
	events := service.NewAsyncPublisher(sink, eventBuffer, log)

	var avatars service.AvatarStore
	var minioPing handler.Pinger
	if cfg.MinIO.Endpoint != "" {
		av, err := storage.NewAvatars(ctx, cfg.MinIO)
		if err != nil {
			log.Warn("avatar storage unavailable", zap.Error(err))
		} else {
			avatars = av
			minioPing = handler.PingFunc(av.Ping)
		}
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	boards := repository.NewBoardRepo(db)
	lists := repository.NewListRepo(db)
	cards := repository.NewCardRepo(db)

	userSvc := service.NewUserService(users, tokens, avatars, service.AuthConfig{
		Secret:     cfg.JWTSecret,
		TokenTTL:   cfg.TokenTTL,
		BcryptCost: cfg.BcryptCost,
	}, log)
	boardSvc := service.NewBoardService(boards, users, events, log)
	listSvc := service.NewListService(lists, boards, events, log)
	cardSvc := service.NewCardService(cards, lists, boards, events, log)

	deps := map[string]handler.Pinger{"mysql": db, "redis": nil, "rabbitmq": nil, "minio": minioPing}
	if rdb != nil {
		deps["redis"] = handler.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	if broker != nil {
		deps["rabbitmq"] = handler.PingFunc(func(context.Context) error { return broker.Ping() })
	}

	e := router.New(router.Deps{
		Users:       handler.NewUserHandler(userSvc, cfg.CookieSecure),
		Boards:      handler.NewBoardHandler(boardSvc),
		Lists:       handler.NewListHandler(listSvc),
		Cards:       handler.NewCardHandler(cardSvc),
		Stream:      handler.NewStreamHandler(boardSvc, hub, cfg.CORSOrigin, log),
		Health:      &handler.HealthHandler{Deps: deps, Required: map[string]bool{"mysql": true}},
		Auth:        userSvc,
		Redis:       rdb,
		Cache:       cfg.Cache,
		RateLimit:   cfg.RateLimit,
		CORSOrigins: cfg.CORSOrigin,
		Dev:         cfg.IsDevelopment(),
		Log:         log,
	})

	go purgeRevoked(ctx, tokens, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutdown initiated")
	shutdown(srv, events, db, rdb, broker, log)
}

// eventSink picks where board events go: RabbitMQ when reachable (with a
// consumer forwarding to the hub), the hub directly when only redis is
// up, and nowhere otherwise.
func eventSink(ctx context.Context, cfg config.Config, hub *realtime.Hub, log *zap.Logger) (service.Publisher, *queue.Publisher) {
	if cfg.RabbitMQURL != "" {
		pub := queue.NewPublisher(cfg.RabbitMQURL, log)
		err := pub.Ping()
		if err == nil {
			var fwd queue.Forwarder
			if hub != nil {
				fwd = hub
			}
			go queue.NewConsumer(cfg.RabbitMQURL, cfg.LogDir, fwd, log).Run(ctx)
			log.Info("events via rabbitmq", zap.String("queue", queue.ActivityQueue))
			return pub, pub
		}
		log.Warn("rabbitmq unreachable", zap.Error(err))
	}
	if hub != nil {
		log.Info("events via redis pub/sub")
		return hub, nil
	}
	log.Warn("events disabled: neither rabbitmq nor redis is available")
	return service.NopPublisher{}, nil
}

func purgeRevoked(ctx context.Context, tokens *repository.TokenRepo, log *zap.Logger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := tokens.PurgeExpired(ctx)
			if err != nil {
				log.Warn("purge revoked tokens", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("purged revoked tokens", zap.Int64("count", n))
			}
		}
	}
}

func shutdown(srv *http.Server, events *service.AsyncPublisher, db *sql.DB, rdb *redis.Client, broker *queue.Publisher, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	// deliver what the last requests queued before the sinks go away
	if err := events.Close(ctx); err != nil {
		log.Warn("flush board events", zap.Error(err))
	}
	if broker != nil {
		if err := broker.Close(); err != nil {
			log.Warn("close rabbitmq", zap.Error(err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Warn("close redis", zap.Error(err))
		}
	}
	if err := db.Close(); err != nil {
		log.Warn("close database", zap.Error(err))
	}
	log.Info("bye")
}
