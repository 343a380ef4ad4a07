package market_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/finwise-app/finwise/internal/market"
	"github.com/finwise-app/finwise/internal/platform/cache"
	"github.com/finwise-app/finwise/internal/platform/httpx"
	_ "github.com/finwise-app/finwise/testing"
)

type stubProvider struct {
	quoteCalls      []string
	historicalCalls []string
	rangeSeen       []string
	searchCalls     []string

	quote   *market.Quote
	candles []market.Candle
	matches []market.SymbolMatch
	err     error
}

func (p *stubProvider) Quote(_ context.Context, symbol string) (*market.Quote, error) {
	p.quoteCalls = append(p.quoteCalls, symbol)
	if p.err != nil {
		return nil, p.err
	}
	quote := *p.quote
	quote.Symbol = symbol
	return &quote, nil
}

func (p *stubProvider) Historical(_ context.Context, symbol, rng string) ([]market.Candle, error) {
	p.historicalCalls = append(p.historicalCalls, symbol)
	p.rangeSeen = append(p.rangeSeen, rng)
	return p.candles, p.err
}

func (p *stubProvider) Search(_ context.Context, query string) ([]market.SymbolMatch, error) {
	p.searchCalls = append(p.searchCalls, query)
	return p.matches, p.err
}

func dailyCandles(n int) []market.Candle {
	candles := make([]market.Candle, n)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = market.Candle{
			Date:   start.AddDate(0, 0, i).Format("2006-01-02"),
			Close:  100 + float64(i),
			Volume: int64(1000 * (i + 1)),
		}
	}
	return candles
}

type serviceFixture struct {
	provider *stubProvider
	service  *market.Service
	now      time.Time
}

func newServiceFixture(provider *stubProvider) *serviceFixture {
	f := &serviceFixture{provider: provider, now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	store := cache.NewMemory().WithClock(func() time.Time { return f.now })
	f.service = market.NewService(provider, store, nil)
	return f
}

func TestQuoteValidation(t *testing.T) {
	f := newServiceFixture(&stubProvider{})

	for _, symbol := range []string{"", "   "} {
		_, err := f.service.Quote(context.Background(), symbol)
		require.True(t, errors.Is(err, httpx.ErrValidation))
	}
	require.Empty(t, f.provider.quoteCalls, "validation must reject before any upstream call")
}

func TestQuoteNormalizesAndCaches(t *testing.T) {
	provider := &stubProvider{quote: &market.Quote{Name: "Apple Inc.", Price: 212.5, Currency: "USD"}}
	f := newServiceFixture(provider)
	ctx := context.Background()

	first, err := f.service.Quote(ctx, " aapl ")
	require.NoError(t, err)
	require.Equal(t, "AAPL", first.Symbol)

	second, err := f.service.Quote(ctx, "AAPL")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, provider.quoteCalls, 1, "second lookup must come from cache")
}

func TestQuoteCacheExpiresAfterThirtySeconds(t *testing.T) {
	provider := &stubProvider{quote: &market.Quote{Price: 100}}
	f := newServiceFixture(provider)
	ctx := context.Background()

	_, err := f.service.Quote(ctx, "AAPL")
	require.NoError(t, err)

	f.now = f.now.Add(29 * time.Second)
	_, err = f.service.Quote(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, provider.quoteCalls, 1)

	f.now = f.now.Add(2 * time.Second)
	_, err = f.service.Quote(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, provider.quoteCalls, 2, "quote entry must expire after 30s")
}

func TestQuoteUpstreamErrorsPassThrough(t *testing.T) {
	provider := &stubProvider{err: fmt.Errorf("%w: boom", httpx.ErrUpstream)}
	f := newServiceFixture(provider)

	_, err := f.service.Quote(context.Background(), "AAPL")
	require.True(t, errors.Is(err, httpx.ErrUpstream))
}

func TestHistoricalTrimsToRequestedWindow(t *testing.T) {
	provider := &stubProvider{candles: dailyCandles(35)}
	f := newServiceFixture(provider)

	candles, err := f.service.Historical(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, candles, 30, "only the trailing window is kept")

	// Chronological order preserved, most recent entries retained.
	require.Equal(t, "2026-06-06", candles[0].Date)
	require.Equal(t, "2026-07-05", candles[29].Date)
	for i := 1; i < len(candles); i++ {
		require.Less(t, candles[i-1].Date, candles[i].Date)
	}
}

func TestHistoricalDefaultsToThirtyDays(t *testing.T) {
	provider := &stubProvider{candles: dailyCandles(35)}
	f := newServiceFixture(provider)

	candles, err := f.service.Historical(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	require.Len(t, candles, 30)
	require.Equal(t, []string{"1mo"}, provider.rangeSeen)
}

func TestHistoricalRangeTiers(t *testing.T) {
	provider := &stubProvider{candles: dailyCandles(5)}
	f := newServiceFixture(provider)
	ctx := context.Background()

	for _, days := range []int{30, 60, 200} {
		_, err := f.service.Historical(ctx, "AAPL", days)
		require.NoError(t, err)
	}
	require.Equal(t, []string{"1mo", "3mo", "1y"}, provider.rangeSeen)
}

func TestHistoricalEmptySeriesIsNotAnError(t *testing.T) {
	f := newServiceFixture(&stubProvider{})

	candles, err := f.service.Historical(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.NotNil(t, candles)
	require.Empty(t, candles)
}

func TestHistoricalCachedPerSymbolAndWindow(t *testing.T) {
	provider := &stubProvider{candles: dailyCandles(5)}
	f := newServiceFixture(provider)
	ctx := context.Background()

	_, err := f.service.Historical(ctx, "AAPL", 30)
	require.NoError(t, err)
	_, err = f.service.Historical(ctx, "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, provider.historicalCalls, 1)

	_, err = f.service.Historical(ctx, "AAPL", 60)
	require.NoError(t, err)
	require.Len(t, provider.historicalCalls, 2, "window size is part of the cache key")
}

func TestSearchValidation(t *testing.T) {
	f := newServiceFixture(&stubProvider{})

	for _, query := range []string{"", "   ", "\t"} {
		_, err := f.service.Search(context.Background(), query)
		require.True(t, errors.Is(err, httpx.ErrValidation))
	}
	require.Empty(t, f.provider.searchCalls, "blank queries must never reach the upstream")
}

func TestSearchCachesByNormalizedQuery(t *testing.T) {
	provider := &stubProvider{matches: []market.SymbolMatch{{Symbol: "AAPL", Name: "Apple Inc."}}}
	f := newServiceFixture(provider)
	ctx := context.Background()

	first, err := f.service.Search(ctx, "Apple ")
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = f.service.Search(ctx, "  apple")
	require.NoError(t, err)
	require.Len(t, provider.searchCalls, 1, "queries differing only in case and spacing share an entry")
}
