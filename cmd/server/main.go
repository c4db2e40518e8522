package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/auth"
	"github.com/gigpilot/gigpilot-api/internal/config"
	"github.com/gigpilot/gigpilot-api/internal/db"
	"github.com/gigpilot/gigpilot-api/internal/httpapi"
	"github.com/gigpilot/gigpilot-api/internal/search"
	"github.com/gigpilot/gigpilot-api/internal/store"
	"github.com/gigpilot/gigpilot-api/internal/syncx"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "gigpilot-api").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx := context.Background()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := db.InitSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("schema init failed")
	}

	st := store.New(pool)
	strategy := syncx.ParseStrategy(cfg.ConflictStrategy)
	backend := httpapi.StoreBackend{S: st}

	srv := &httpapi.Server{
		Sync:           syncx.NewEngine(st, strategy),
		Invoices:       backend,
		Users:          backend,
		Search:         search.NewService(st),
		DB:             backend,
		Auth:           auth.Config{Secret: cfg.JWTSecret, Expiry: cfg.JWTExpiration},
		AllowedOrigins: cfg.AllowedOrigins,
		Version:        version,
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("conflict_strategy", string(strategy)).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("server stopped")
}
