package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/pkg/database"
	pkglog "github.com/weiawesome/wes-io-live/pkg/log"
	"github.com/weiawesome/wes-io-live/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/pkg/storage"
	"github.com/weiawesome/wes-io-live/room-service/internal/cache"
	"github.com/weiawesome/wes-io-live/room-service/internal/catalog"
	"github.com/weiawesome/wes-io-live/room-service/internal/config"
	"github.com/weiawesome/wes-io-live/room-service/internal/consumer"
	"github.com/weiawesome/wes-io-live/room-service/internal/domain"
	"github.com/weiawesome/wes-io-live/room-service/internal/handler"
	"github.com/weiawesome/wes-io-live/room-service/internal/hub"
	"github.com/weiawesome/wes-io-live/room-service/internal/identity"
	"github.com/weiawesome/wes-io-live/room-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/room-service/internal/presence"
	"github.com/weiawesome/wes-io-live/room-service/internal/ratelimit"
	"github.com/weiawesome/wes-io-live/room-service/internal/relay"
	"github.com/weiawesome/wes-io-live/room-service/internal/repository"
	"github.com/weiawesome/wes-io-live/room-service/internal/scheduler"
	"github.com/weiawesome/wes-io-live/room-service/internal/service"
)

// presenceTracker is satisfied by both presence drivers.
type presenceTracker interface {
	service.Presence
	SetOnEmpty(fn presence.EmptyFunc)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty || cfg.Log.Level == "debug",
		ServiceName: "room-service",
	})
	logger := pkglog.L()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database using GORM
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db, &domain.RoomModel{}, &domain.UserModel{}, &domain.MovieModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Repositories and collaborators
	roomRepo := repository.NewGormRoomRepository(db)
	ident := identity.NewService(repository.NewGormUserRepository(db))

	var movieCache cache.MovieCache = cache.NoopMovieCache{}
	if cfg.Redis.Address != "" {
		redisCache, err := cache.NewRedisMovieCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		movieCache = redisCache
		logger.Info().Str("address", cfg.Redis.Address).Msg("redis catalog cache connected")
	}
	defer movieCache.Close()

	mediaStore, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize media storage")
	}

	movies := catalog.NewService(repository.NewGormMovieRepository(db), movieCache, mediaStore, cfg.Cache.TTL, cfg.Room.MediaURLExpiry)
	var tracker presenceTracker = presence.NewTracker(nil)
	if cfg.Room.PresenceDriver == config.PresenceRedis {
		redisTracker, err := presence.NewRedisTracker(cfg.Redis, cfg.Cache.Prefix, cfg.Room.PresenceTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect presence store")
		}
		defer redisTracker.Close()
		tracker = redisTracker
	}
	limiter := ratelimit.NewRoomLimiter(cfg.Room.HeartbeatInterval)

	// Fan-out: local hub, optionally relayed across instances
	wsHub := hub.NewHub(cfg.WebSocket)
	go wsHub.Run()

	var broadcaster relay.Broadcaster = relay.NewLocal(wsHub)
	var roomRelay *relay.Relay
	var ps pubsub.PubSub
	if cfg.PubSub.Enabled() {
		ps, err = pubsub.NewPubSub(cfg.PubSub)
		if err != nil {
			logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create pubsub")
		}
		roomRelay = relay.New(ps, wsHub, cfg.Server.InstanceID)
		if err := roomRelay.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start room relay")
		}
		broadcaster = roomRelay
	}

	// Room lifecycle events
	var events kafka.Producer = kafka.NoopProducer{}
	if cfg.Kafka.Brokers != "" {
		producer, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create kafka producer")
		}
		events = producer
		logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka room event producer ready")
	}

	// Movie updates invalidate the catalog cache
	var movieConsumer consumer.MovieUpdatedConsumer
	if cfg.Kafka.Brokers != "" && cfg.Kafka.MovieTopic != "" {
		mc, err := consumer.NewConfluentConsumer(cfg.Kafka.Brokers, cfg.Kafka.MovieTopic, cfg.Kafka.GroupID, movies)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create movie-updated consumer")
		}
		if err := mc.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start movie-updated consumer")
		}
		movieConsumer = mc
	}

	roomService := service.NewRoomService(service.Deps{
		Rooms:       roomRepo,
		Identity:    ident,
		Catalog:     movies,
		Presence:    tracker,
		Limiter:     limiter,
		Broadcaster: broadcaster,
		Events:      events,
	}, service.Options{PauseWhenEmpty: cfg.Room.PauseWhenEmpty})
	tracker.SetOnEmpty(roomService.SaveOnEmpty)

	sched := scheduler.New(roomRepo, broadcaster, events, cfg.Scheduler)
	sched.Start(ctx)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewHandler(roomService).RegisterRoutes(r)
	handler.NewStreamHandler(wsHub, roomService, cfg.WebSocket).RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	go func() {
		logger.Info().
			Str("addr", addr).
			Str("driver", cfg.Database.Driver).
			Str("pubsub", cfg.PubSub.Driver).
			Str("presence", cfg.Room.PresenceDriver).
			Dur("reconcile_interval", cfg.Scheduler.ReconcileInterval).
			Msg("room-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// 1. scheduler and consumer
		sched.Stop()
		<-sched.Done()
		cancel()
		if movieConsumer != nil {
			if err := movieConsumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing movie-updated consumer")
			}
		}

		// 2. relay
		if roomRelay != nil {
			roomRelay.Stop()
		}
		if ps != nil {
			if err := ps.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing pubsub")
			}
		}

		// 3. hub
		wsHub.Stop()

		// 4. producer
		if err := events.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing kafka producer")
		}

		// 5. HTTP server
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("room-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
