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

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-board/api"
	"kanban-board/boardsync"
	"kanban-board/events"
	"kanban-board/session"
	"kanban-board/storage"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger := log.New()
	cfg.configureLogger(logger)

	store, err := storage.New(cfg.connStr, cfg.usersTable, cfg.eventsQueue)
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}
	rc := redis.NewClient(redisOptions(cfg.redisConn))
	defer rc.Close()
	cached := storage.NewCache(store, rc, cfg.cacheTTL)

	revoker := api.NewRedisRevoker(rc, cfg.signOutTTL)
	auth, err := newAuth(cfg)
	if err != nil {
		logger.Fatal(err)
	}
	auth.Revocations = revoker

	publisher := events.NewPublisher(cached, cfg.events, logger)
	syncer := boardsync.New(cached, logger, cfg.saveTimeout)
	hub := session.NewHub(syncer, revoker, publisher, logger)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentEncoding},
	}))
	e.Use(api.DecompressRequestMiddleware())
	api.Register(e, hub, auth, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := e.Start(cfg.listenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server shutdown")
	}
	hub.Shutdown()
	publisher.Close()
}

func newAuth(cfg config) (*api.Auth, error) {
	if api.LocalAuthEnabled() {
		return api.NewAuth(nil, cfg.auth0Audience, ""), nil
	}
	if cfg.auth0Audience == "" || cfg.auth0Domain == "" {
		return nil, errors.New("missing Auth0 config")
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.auth0Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, cfg.auth0Audience, "https://"+cfg.auth0Domain+"/"), nil
}
