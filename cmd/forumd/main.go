package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fanforge/forum-service/config"
	"github.com/fanforge/forum-service/internal/postgres"
	"github.com/fanforge/forum-service/internal/security"
	"github.com/fanforge/forum-service/internal/service"
	httpx "github.com/fanforge/forum-service/internal/transport/http"
	"github.com/fanforge/forum-service/internal/transport/ws"
	"github.com/fanforge/forum-service/pkg/logger"

	"github.com/rs/cors"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting forum-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Postgres.DSN, cfg.Postgres.EnsureSchema)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- repos ---
	forumRepo := postgres.NewForumRepository(db.Pool)
	communityRepo := postgres.NewCommunityRepository(db.Pool)
	messageRepo := postgres.NewMessageRepository(db.Pool)
	userRepo := postgres.NewUserRepository(db.Pool)

	// --- ws hub first: the message service publishes through it ---
	hub := ws.NewHub()

	// --- services ---
	forumSvc := service.NewForumService(forumRepo, communityRepo)
	messageSvc := service.NewMessageService(messageRepo, communityRepo, hub)
	userSvc := service.NewUserService(userRepo)

	tokens := security.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	wsServer := ws.NewServer(hub, forumSvc, userSvc, tokens)
	wsServer.SetPingInterval(cfg.PingInterval())

	// --- HTTP ---
	handler := httpx.NewHandler(forumSvc, messageSvc, userSvc)
	router := httpx.NewRouter(handler, tokens, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      cors.AllowAll().Handler(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
