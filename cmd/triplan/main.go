package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/thomasfsr/triplan/internal/config"
	"github.com/thomasfsr/triplan/internal/database"
	"github.com/thomasfsr/triplan/internal/events"
	"github.com/thomasfsr/triplan/internal/llm"
	"github.com/thomasfsr/triplan/internal/logging"
	"github.com/thomasfsr/triplan/internal/plan"
	"github.com/thomasfsr/triplan/internal/session"
	"github.com/thomasfsr/triplan/internal/web"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.OpenAIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY is not set, plan generation will fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to open database")
	}
	defer db.Close()
	store := database.NewStore(db, logger)

	sessions, closeSessions, err := newSessionStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up sessions")
	}
	defer closeSessions()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing plan events")
	}
	defer publisher.Close()

	generator := plan.NewGenerator(llm.NewClient(cfg.OpenAIKey, cfg.OpenAIBaseURL), plan.GeneratorConfig{
		Model:       cfg.OpenAIModel,
		Temperature: cfg.OpenAITemperature,
		MaxTokens:   cfg.OpenAIMaxTokens,
		Pause:       cfg.GenerationPause,
	}, logger)
	service := plan.NewService(store, generator, publisher, logger)

	templates, err := web.LoadTemplates()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load templates")
	}
	handler := web.NewHandler(service, sessions, store, templates, logger)

	server := web.NewServer(web.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}, handler.Routes())

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info().Str("address", cfg.HTTPAddress).Msg("triplan listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-shutdownCh
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func newSessionStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (session.Store, func(), error) {
	if cfg.SessionStore != "redis" {
		return session.NewCookieStore(cfg.SecretKey, cfg.SessionTTL), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	logger.Info().Str("addr", opts.Addr).Msg("using redis sessions")
	return session.NewRedisStore(client, cfg.SessionTTL, logger), func() { client.Close() }, nil
}
