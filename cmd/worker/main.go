package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gigpilot/gigpilot-api/internal/chase"
	"github.com/gigpilot/gigpilot-api/internal/config"
	"github.com/gigpilot/gigpilot-api/internal/db"
	"github.com/gigpilot/gigpilot-api/internal/mail"
	"github.com/gigpilot/gigpilot-api/internal/store"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "gigpilot-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()

	if err := db.InitSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("schema init failed")
	}

	var sender mail.Sender = mail.LogSender{}
	if cfg.EmailWebhookURL != "" {
		sender = mail.NewWebhookSender(cfg.EmailWebhookURL)
		log.Info().Str("url", cfg.EmailWebhookURL).Msg("delivering reminders via webhook")
	} else {
		log.Info().Msg("no EMAIL_WEBHOOK_URL set, reminders go to the log")
	}

	chaseStore := chase.PoolStore{S: store.New(pool)}
	executor := chase.NewExecutor(chaseStore, sender)
	scheduler := chase.NewScheduler(chaseStore, executor, cfg.PollInterval)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info().Msg("shutting down gracefully...")
		cancel()
	}()

	scheduler.Run(ctx)
	log.Info().Msg("worker stopped")
}
