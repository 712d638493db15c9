// Package history serves the on-demand historical lookup with a Redis
// read-through cache in front of the quote provider.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	apperrors "github.com/pscheid92/tickerpulse/internal/errors"
	"github.com/pscheid92/tickerpulse/internal/metrics"
	"github.com/pscheid92/tickerpulse/internal/quotes"
)

const cacheKeyPrefix = "history_cache:"

// Service answers historical lookups. rdb may be nil, in which case every
// lookup goes straight to the provider.
type Service struct {
	provider quotes.HistoryProvider
	rdb      goredis.Cmdable
	ttl      time.Duration
}

// NewService creates a history service with read-through caching.
func NewService(provider quotes.HistoryProvider, rdb goredis.Cmdable, ttl time.Duration) *Service {
	return &Service{provider: provider, rdb: rdb, ttl: ttl}
}

// Lookup returns the OHLCV bars for one symbol. Read path: Redis GET →
// provider call → populate Redis cache (best-effort).
func (s *Service) Lookup(ctx context.Context, symbol, period, interval string) (*quotes.HistoryResult, error) {
	if symbol == "" {
		return nil, apperrors.ValidationError("symbol is required")
	}

	key := fmt.Sprintf("%s%s:%s:%s", cacheKeyPrefix, symbol, period, interval)

	if s.rdb != nil {
		data, err := s.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var result quotes.HistoryResult
			if err := json.Unmarshal(data, &result); err != nil {
				slog.Warn("Failed to unmarshal cached history, falling through to provider",
					"symbol", symbol, "error", err)
			} else {
				metrics.HistoryCacheHits.Inc()
				return &result, nil
			}
		} else if !errors.Is(err, goredis.Nil) {
			slog.Warn("Redis history cache GET failed, falling through to provider",
				"symbol", symbol, "error", err)
		}
	}

	metrics.HistoryCacheMisses.Inc()

	bars, err := s.provider.History(ctx, symbol, period, interval)
	if err != nil {
		return nil, fmt.Errorf("history lookup failed: %w", err)
	}

	result := &quotes.HistoryResult{
		Symbol:   symbol,
		Period:   period,
		Interval: interval,
		Data:     bars,
	}

	if s.rdb != nil {
		if encoded, err := json.Marshal(result); err == nil {
			if err := s.rdb.Set(ctx, key, encoded, s.ttl).Err(); err != nil {
				slog.Warn("Failed to populate Redis history cache", "symbol", symbol, "error", err)
			}
		}
	}

	return result, nil
}
