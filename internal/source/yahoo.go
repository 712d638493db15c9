// Package source implements the quote source against a Yahoo-chart-style
// HTTP API. All upstream calls go through a circuit breaker so a dead
// provider fails fast instead of stalling every broadcast cycle.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	apperrors "github.com/pscheid92/tickerpulse/internal/errors"
	"github.com/pscheid92/tickerpulse/internal/metrics"
	"github.com/pscheid92/tickerpulse/internal/quotes"
)

const (
	breakerName             = "quote-api"
	breakerFailureThreshold = 5
	breakerOpenDuration     = 30 * time.Second

	// Some quote APIs reject requests without a browser-like user agent.
	userAgent = "Mozilla/5.0 (compatible; tickerpulse/1.0)"
)

// Client fetches quotes and historical bars over HTTP. It implements both
// quotes.Source and quotes.HistoryProvider.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

var (
	_ quotes.Source          = (*Client)(nil)
	_ quotes.HistoryProvider = (*Client)(nil)
)

// NewClient creates a quote API client. timeout bounds every upstream call,
// including the ones issued from the broadcast loop.
func NewClient(baseURL string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    breakerName,
		Timeout: breakerOpenDuration,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		// Only provider outages should trip the breaker. A bad symbol is the
		// client's problem, not the upstream's.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var structuredErr *apperrors.Error
			if errors.As(err, &structuredErr) {
				return structuredErr.Type == apperrors.TypeNotFound || structuredErr.Type == apperrors.TypeValidation
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed",
				"component", name,
				"from", from.String(),
				"to", to.String(),
			)
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Fetch returns the latest quote for one symbol. It never returns an error:
// every failure mode is encoded in the Quote's Error field so the caller's
// cycle degrades per symbol.
func (c *Client) Fetch(ctx context.Context, symbol string) quotes.Quote {
	start := time.Now()

	result, err := c.chart(ctx, symbol, "1d", "1m")
	if err != nil {
		metrics.QuoteFetchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		metrics.QuoteFetchErrorsTotal.Inc()
		slog.Debug("Quote fetch failed", "symbol", symbol, "error", err)
		return quotes.Quote{Symbol: symbol, Error: err.Error()}
	}
	metrics.QuoteFetchDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())

	if result.Meta.RegularMarketPrice == nil {
		metrics.QuoteFetchErrorsTotal.Inc()
		return quotes.Quote{Symbol: symbol, Error: "no data returned"}
	}

	currency := result.Meta.Currency
	if currency == "" {
		currency = "N/A"
	}

	return quotes.Quote{
		Symbol:    symbol,
		Price:     result.Meta.RegularMarketPrice,
		Currency:  currency,
		Timestamp: time.Unix(result.Meta.RegularMarketTime, 0).UTC().Format(time.RFC3339),
	}
}

// History returns OHLCV bars for one symbol. Unlike Fetch, failures surface
// as structured errors for the REST handler to map to a status code.
func (c *Client) History(ctx context.Context, symbol, period, interval string) ([]quotes.Bar, error) {
	result, err := c.chart(ctx, symbol, period, interval)
	if err != nil {
		return nil, err
	}

	if len(result.Indicators.Quote) == 0 {
		return nil, apperrors.NotFoundError("no data returned").WithContext("symbol", symbol)
	}

	series := result.Indicators.Quote[0]
	bars := make([]quotes.Bar, 0, len(result.Timestamps))
	for i, ts := range result.Timestamps {
		// The API pads gaps with nulls; skip incomplete entries.
		if i >= len(series.Close) || series.Close[i] == nil {
			continue
		}
		bar := quotes.Bar{
			Date:  time.Unix(ts, 0).UTC().Format(time.RFC3339),
			Close: *series.Close[i],
		}
		if i < len(series.Open) && series.Open[i] != nil {
			bar.Open = *series.Open[i]
		}
		if i < len(series.High) && series.High[i] != nil {
			bar.High = *series.High[i]
		}
		if i < len(series.Low) && series.Low[i] != nil {
			bar.Low = *series.Low[i]
		}
		if i < len(series.Volume) && series.Volume[i] != nil {
			bar.Volume = *series.Volume[i]
		}
		bars = append(bars, bar)
	}

	return bars, nil
}

// --- Chart API wire format ---

type chartEnvelope struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Currency           string   `json:"currency"`
		Symbol             string   `json:"symbol"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
		RegularMarketTime  int64    `json:"regularMarketTime"`
	} `json:"meta"`
	Timestamps []int64 `json:"timestamp"`
	Indicators struct {
		Quote []chartSeries `json:"quote"`
	} `json:"indicators"`
}

type chartSeries struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}

func (c *Client) chart(ctx context.Context, symbol, rng, interval string) (*chartResult, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.doChart(ctx, symbol, rng, interval)
	})
	if err != nil {
		return nil, err
	}
	return result.(*chartResult), nil
}

func (c *Client) doChart(ctx context.Context, symbol, rng, interval string) (*chartResult, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.InternalError("failed to build quote request", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.ExternalError("quote api request failed", err).WithContext("symbol", symbol)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NotFoundError("symbol not found").WithContext("symbol", symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.ExternalError(
			fmt.Sprintf("quote api returned status %d", resp.StatusCode), nil,
		).WithContext("symbol", symbol)
	}

	var envelope chartEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, apperrors.ExternalError("failed to decode quote response", err).WithContext("symbol", symbol)
	}

	if envelope.Chart.Error != nil {
		return nil, apperrors.NotFoundError(envelope.Chart.Error.Description).WithContext("symbol", symbol)
	}
	if len(envelope.Chart.Result) == 0 {
		return nil, apperrors.NotFoundError("no data returned").WithContext("symbol", symbol)
	}

	return &envelope.Chart.Result[0], nil
}
