package market

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/finwise-app/finwise/internal/platform/cache"
	"github.com/finwise-app/finwise/internal/platform/httpx"
)

// Per-endpoint cache TTLs. Quotes go stale fast; search results barely
// move.
const (
	quoteTTL      = 30 * time.Second
	historicalTTL = 5 * time.Minute
	searchTTL     = 10 * time.Minute

	defaultHistoricalDays = 30
)

// Service is the cached market-data proxy. Concurrent misses for the
// same key are not deduplicated: both callers hit the idempotent
// upstream and the last write wins.
type Service struct {
	provider Provider
	cache    cache.Cache
	logger   *slog.Logger
}

// NewService constructs the proxy around a provider and a cache.
func NewService(provider Provider, store cache.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, cache: store, logger: logger}
}

// Quote returns the cached or freshly fetched snapshot for a symbol.
func (s *Service) Quote(ctx context.Context, symbol string) (*Quote, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, fmt.Errorf("%w: symbol is required", httpx.ErrValidation)
	}
	key := "quote:" + sym
	var cached Quote
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}
	quote, err := s.provider.Quote(ctx, sym)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, key, quote, quoteTTL)
	return quote, nil
}

// Historical returns up to days daily bars, most recent window last.
func (s *Service) Historical(ctx context.Context, symbol string, days int) ([]Candle, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, fmt.Errorf("%w: symbol is required", httpx.ErrValidation)
	}
	if days <= 0 {
		days = defaultHistoricalDays
	}
	key := fmt.Sprintf("historical:%s:%d", sym, days)
	var cached []Candle
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	candles, err := s.provider.Historical(ctx, sym, rangeForDays(days))
	if err != nil {
		return nil, err
	}
	if len(candles) > days {
		candles = candles[len(candles)-days:]
	}
	if candles == nil {
		candles = []Candle{}
	}
	s.cacheSet(ctx, key, candles, historicalTTL)
	return candles, nil
}

// Search looks up symbols matching the query.
func (s *Service) Search(ctx context.Context, query string) ([]SymbolMatch, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil, fmt.Errorf("%w: query is required", httpx.ErrValidation)
	}
	key := "search:" + q
	var cached []SymbolMatch
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}
	matches, err := s.provider.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []SymbolMatch{}
	}
	s.cacheSet(ctx, key, matches, searchTTL)
	return matches, nil
}

// rangeForDays picks the upstream range tier covering the requested
// window.
func rangeForDays(days int) string {
	switch {
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	default:
		return "1y"
	}
}

// Cache failures degrade to upstream fetches rather than failing the
// request.
func (s *Service) cacheGet(ctx context.Context, key string, dest any) bool {
	ok, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("cache get", slog.String("key", key), slog.Any("error", err))
		return false
	}
	return ok
}

func (s *Service) cacheSet(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache set", slog.String("key", key), slog.Any("error", err))
	}
}
