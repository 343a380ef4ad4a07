package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/currency"

	"github.com/finwise-app/finwise/internal/platform/httpx"
)

// Provider fetches raw market data from the upstream source and maps it
// into the normalized shapes. Calls are read-only and idempotent.
type Provider interface {
	Quote(ctx context.Context, symbol string) (*Quote, error)
	Historical(ctx context.Context, symbol, rng string) ([]Candle, error)
	Search(ctx context.Context, query string) ([]SymbolMatch, error)
}

// HTTPProvider talks to a Yahoo-style finance API. Every request carries
// the caller's context and the client enforces a hard timeout so a slow
// upstream cannot pin handlers indefinitely.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPProvider constructs a provider client.
func NewHTTPProvider(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string   `json:"symbol"`
			ShortName                  string   `json:"shortName"`
			LongName                   string   `json:"longName"`
			Currency                   string   `json:"currency"`
			RegularMarketPrice         *float64 `json:"regularMarketPrice"`
			RegularMarketChange        *float64 `json:"regularMarketChange"`
			RegularMarketChangePercent *float64 `json:"regularMarketChangePercent"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

// Quote fetches and normalizes a snapshot for one symbol.
func (p *HTTPProvider) Quote(ctx context.Context, symbol string) (*Quote, error) {
	query := url.Values{}
	query.Set("symbols", symbol)
	var res quoteResponse
	if err := p.getJSON(ctx, "/v7/finance/quote", query, &res); err != nil {
		return nil, err
	}
	if len(res.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%w: symbol %s", httpx.ErrNotFound, symbol)
	}
	raw := res.QuoteResponse.Result[0]
	name := raw.ShortName
	if name == "" {
		name = raw.LongName
	}
	if name == "" {
		name = raw.Symbol
	}
	return &Quote{
		Symbol:        raw.Symbol,
		Name:          name,
		Price:         orZero(raw.RegularMarketPrice),
		Change:        orZero(raw.RegularMarketChange),
		ChangePercent: orZero(raw.RegularMarketChangePercent),
		Currency:      normalizeCurrency(raw.Currency),
	}, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// Historical fetches daily bars for the given range. A missing result is
// an empty series, not an error. Bars without a closing price are
// dropped; the timestamp array is zipped against the OHLCV arrays by
// index.
func (p *HTTPProvider) Historical(ctx context.Context, symbol, rng string) ([]Candle, error) {
	query := url.Values{}
	query.Set("range", rng)
	query.Set("interval", "1d")
	var res chartResponse
	if err := p.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), query, &res); err != nil {
		return nil, err
	}
	if len(res.Chart.Result) == 0 || len(res.Chart.Result[0].Indicators.Quote) == 0 {
		return []Candle{}, nil
	}
	result := res.Chart.Result[0]
	bars := result.Indicators.Quote[0]
	candles := make([]Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		closePrice := at(bars.Close, i)
		if closePrice == nil {
			continue
		}
		candle := Candle{
			Date:  time.Unix(ts, 0).UTC().Format("2006-01-02"),
			Open:  at(bars.Open, i),
			High:  at(bars.High, i),
			Low:   at(bars.Low, i),
			Close: *closePrice,
		}
		if v := at(bars.Volume, i); v != nil {
			candle.Volume = *v
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

// Search maps provider hits, dropping any without a symbol.
func (p *HTTPProvider) Search(ctx context.Context, q string) ([]SymbolMatch, error) {
	query := url.Values{}
	query.Set("q", q)
	var res searchResponse
	if err := p.getJSON(ctx, "/v1/finance/search", query, &res); err != nil {
		return nil, err
	}
	matches := make([]SymbolMatch, 0, len(res.Quotes))
	for _, hit := range res.Quotes {
		if hit.Symbol == "" {
			continue
		}
		name := hit.ShortName
		if name == "" {
			name = hit.LongName
		}
		matches = append(matches, SymbolMatch{
			Symbol:   hit.Symbol,
			Name:     name,
			Exchange: hit.Exchange,
			Type:     hit.QuoteType,
		})
	}
	return matches, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	target := p.baseURL + path + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", httpx.ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")
	res, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d from %s", httpx.ErrUpstream, res.StatusCode, path)
	}
	if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
		return fmt.Errorf("%w: decode response: %v", httpx.ErrUpstream, err)
	}
	return nil
}

func at[T any](values []*T, i int) *T {
	if i >= len(values) {
		return nil
	}
	return values[i]
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// normalizeCurrency maps the upstream currency onto its ISO-4217 code,
// defaulting to USD when missing or unrecognized.
func normalizeCurrency(code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "USD"
	}
	return unit.String()
}
