package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/finwise-app/finwise/internal/market"
)

// warmupConcurrency bounds the upstream fan-out per run.
const warmupConcurrency = 4

// QuoteFetcher is the slice of the market service the warmup needs.
type QuoteFetcher interface {
	Quote(ctx context.Context, symbol string) (*market.Quote, error)
}

// MarketWarmupJob pre-populates the quote cache for a watchlist so the
// first dashboard load after a quiet period stays fast.
type MarketWarmupJob struct {
	Quotes QuoteFetcher
	Logger *slog.Logger
}

// NewMarketWarmupJob wires dependencies for the warmup handler.
func NewMarketWarmupJob(quotes QuoteFetcher, logger *slog.Logger) *MarketWarmupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &MarketWarmupJob{Quotes: quotes, Logger: logger}
}

// Handle processes TaskTypeMarketWarmup tasks.
func (j *MarketWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Quotes == nil {
		return errors.New("market warmup: handler not configured")
	}
	var payload MarketWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if len(payload.Symbols) == 0 {
		j.Logger.Info("no symbols configured for warmup")
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmupConcurrency)
	for _, symbol := range payload.Symbols {
		g.Go(func() error {
			if _, err := j.Quotes.Quote(ctx, symbol); err != nil {
				j.Logger.Warn("warm quote", slog.String("symbol", symbol), slog.Any("error", err))
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	j.Logger.Info("market warmup complete", slog.Int("symbols", len(payload.Symbols)))
	return nil
}
