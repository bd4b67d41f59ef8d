package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/giacomoarchidi/tutoring-platform/internal/auth"
	"github.com/giacomoarchidi/tutoring-platform/internal/config"
	"github.com/giacomoarchidi/tutoring-platform/internal/db"
	internalhttp "github.com/giacomoarchidi/tutoring-platform/internal/http"
	"github.com/giacomoarchidi/tutoring-platform/internal/repository"
	"github.com/giacomoarchidi/tutoring-platform/internal/video"
)

func main() {
	cfg := config.Load()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "tutoring-platform").Logger()
	if cfg.Env == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("migrations failed")
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db connection failed")
	}
	defer pool.Close()

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			logger.Fatal().Err(err).Msg("redis ping failed")
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn().Err(err).Msg("redis close error")
			}
		}()
	}

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAlgorithm, cfg.AccessTokenTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("token issuer init failed")
	}

	store := repository.NewStore(pool)
	service := auth.NewService(store, tokens)
	videoIssuer := video.NewIssuer(cfg.VideoAppID, cfg.VideoAppCertificate, cfg.VideoTokenTTL)
	if videoIssuer == nil {
		logger.Warn().Msg("video tokens disabled: no app certificate configured")
	}

	server := internalhttp.NewServer(cfg, service, tokens, videoIssuer, redisClient, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
