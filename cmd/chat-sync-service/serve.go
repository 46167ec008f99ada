package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocql/gocql"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/CutzuDev/itec2025/internal/cache"
	"github.com/CutzuDev/itec2025/internal/config"
	"github.com/CutzuDev/itec2025/internal/feed"
	chatgrpc "github.com/CutzuDev/itec2025/internal/grpc"
	"github.com/CutzuDev/itec2025/internal/handler"
	"github.com/CutzuDev/itec2025/internal/hub"
	"github.com/CutzuDev/itec2025/internal/idgen"
	"github.com/CutzuDev/itec2025/internal/presence"
	"github.com/CutzuDev/itec2025/internal/profile"
	"github.com/CutzuDev/itec2025/internal/repository"
	"github.com/CutzuDev/itec2025/internal/roomview"
	"github.com/CutzuDev/itec2025/internal/service"
	"github.com/CutzuDev/itec2025/pkg/database"
	"github.com/CutzuDev/itec2025/pkg/jwt"
	"github.com/CutzuDev/itec2025/pkg/log"
	"github.com/CutzuDev/itec2025/pkg/middleware"
	"github.com/CutzuDev/itec2025/pkg/pubsub"
	"github.com/CutzuDev/itec2025/pkg/storage"
)

const (
	storeCassandra = "cassandra"

	healthInterval  = 10 * time.Second
	shutdownTimeout = 30 * time.Second
	devTokenTTL     = 24 * time.Hour
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	logger := log.L()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	checks := map[string]chatgrpc.Check{
		"database": func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
	}

	messageRepo, err := newMessageRepository(ctx, cfg, db, checks)
	if err != nil {
		return err
	}
	defer messageRepo.Close()

	ps, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	defer ps.Close()
	if rp, ok := ps.(*pubsub.RedisPubSub); ok {
		checks["pubsub"] = func(ctx context.Context) error { return rp.GetClient().Ping(ctx).Err() }
	}
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("connected to pubsub")

	fanout := pubsub.NewFanout(ps)
	defer fanout.Close()
	changes := feed.New(ps, fanout)
	typing := presence.NewBroadcaster(ps, fanout, cfg.Chat.PublishTimeout)

	var profileCache cache.ProfileCache
	if cfg.Cache.Enabled {
		rc, err := cache.NewRedisProfileCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Warn().Err(err).Msg("profile cache unavailable, continuing without it")
		} else {
			defer rc.Close()
			profileCache = rc
		}
	}
	directory := profile.NewDirectory(repository.NewGormProfileRepository(db), profileCache, cfg.Cache.TTL)

	ids, err := idgen.New(cfg.ID.Strategy)
	if err != nil {
		return err
	}

	roomRepo := repository.NewGormRoomRepository(db)
	roomService := service.NewRoomService(roomRepo, ids)
	messageService := service.NewMessageService(messageRepo, roomRepo, changes, directory, ids,
		service.WithMaxAttachments(cfg.Chat.MaxAttachments),
		service.WithPublishTimeout(cfg.Chat.PublishTimeout))

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	attachmentService := service.NewAttachmentService(store, cfg.Chat.AttachmentPrefix, cfg.Chat.MaxUploadBytes)

	tokens, err := newTokenManager(cfg)
	if err != nil {
		return err
	}
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	views := roomview.NewManager(roomview.Deps{
		Messages:  messageService,
		Access:    roomService,
		Feed:      changes,
		Presence:  typing,
		Directory: directory,
		IDs:       ids,
	}, roomview.Config{
		TypingQuietPeriod: cfg.Chat.TypingQuietPeriod,
		TypingExpiry:      cfg.Chat.TypingExpiry,
	})

	wsHub := hub.NewHub()
	go wsHub.Run(ctx)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger, "/health"))

	handler.NewHandler(roomService, messageService, attachmentService, authMiddleware, wsHub, cfg.Chat.MaxUploadBytes).RegisterRoutes(router)
	handler.NewWSHandler(wsHub, views, roomService, authMiddleware, cfg.WebSocket).RegisterRoutes(router)

	grpcServer := chatgrpc.NewServer(logger, checks)
	if err := grpcServer.Start(fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)); err != nil {
		return err
	}
	defer grpcServer.Stop()
	go grpcServer.Monitor(ctx, healthInterval)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("address", addr).Msg("chat-sync-service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info().Int("connections", wsHub.ClientCount()).Msg("shutting down chat-sync-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("chat-sync-service stopped")
	return nil
}

// newMessageRepository opens the configured message store and registers its
// health check.
func newMessageRepository(ctx context.Context, cfg *config.Config, db *gorm.DB, checks map[string]chatgrpc.Check) (repository.MessageRepository, error) {
	if cfg.Store.Driver != storeCassandra {
		return repository.NewGormMessageRepository(db), nil
	}

	session, err := repository.NewCassandraSession(cfg.Cassandra)
	if err != nil {
		return nil, err
	}
	repo := repository.NewCassandraMessageRepository(session)
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("cassandra schema: %w", err)
	}

	checks["cassandra"] = func(ctx context.Context) error {
		return session.Query("SELECT now() FROM system.local").WithContext(ctx).Consistency(gocql.One).Exec()
	}
	l := log.L()
	l.Info().Strs("hosts", cfg.Cassandra.Hosts).Str("keyspace", cfg.Cassandra.Keyspace).Msg("connected to cassandra")
	return repo, nil
}

// newTokenManager returns a verifier for the configured public key, or a
// self-signing manager in development.
func newTokenManager(cfg *config.Config) (*jwt.Manager, error) {
	l := log.L()

	if !cfg.Auth.DevSigning {
		if cfg.Auth.PublicKeyPath == "" {
			return nil, errors.New("auth.public_key_path is required unless auth.dev_signing is set")
		}
		return jwt.NewVerifierFromFile(cfg.Auth.PublicKeyPath, cfg.Auth.Issuer)
	}

	m, err := jwt.NewManager(devTokenTTL, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}
	token, _, err := m.GenerateAccessToken(devUser, "", devUser, nil)
	if err != nil {
		return nil, err
	}
	l.Warn().Str(log.FieldUserID, devUser).Str("token", token).Msg("dev signing enabled, do not use in production")
	return m, nil
}

