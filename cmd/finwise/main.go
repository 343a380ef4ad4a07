package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/finwise-app/finwise/internal/app"
	"github.com/finwise-app/finwise/internal/auth"
	"github.com/finwise-app/finwise/internal/market"
	"github.com/finwise-app/finwise/internal/platform/cache"
	"github.com/finwise-app/finwise/internal/platform/db"
	"github.com/finwise-app/finwise/jobs"
)

// resetMailNotifier hands reset links to the job queue for out-of-band
// delivery.
type resetMailNotifier struct {
	client *jobs.Client
}

func (n resetMailNotifier) SendPasswordReset(ctx context.Context, email, link string) error {
	_, err := n.client.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:      email,
		Subject: "Reset your Finwise password",
		Body:    "Use the link below to choose a new password. It expires in one hour.\r\n\r\n" + link,
	})
	return err
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	var quoteCache cache.Cache = cache.NewMemory()
	if cfg.MarketCache == "redis" {
		redisClient, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Error("connect redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		quoteCache = cache.NewRedis(redisClient)
	}

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tokens, resetMailNotifier{client: jobClient}, cfg.AppBaseURL, cfg.ResetTokenTTL, logger)
	authHandler := auth.NewHandler(logger, authService, tokens)

	provider := market.NewHTTPProvider(cfg.MarketBaseURL, cfg.MarketTimeout, logger)
	marketService := market.NewService(provider, quoteCache, logger)
	marketHandler := market.NewHandler(logger, marketService)

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		AuthHandler:   authHandler,
		MarketHandler: marketHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
