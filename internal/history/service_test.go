package history

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/pscheid92/tickerpulse/internal/errors"
	"github.com/pscheid92/tickerpulse/internal/quotes"
)

type stubProvider struct {
	mu    sync.Mutex
	calls int
	bars  []quotes.Bar
	err   error
}

func (p *stubProvider) History(_ context.Context, _, _, _ string) ([]quotes.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.bars, p.err
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testRedis(t *testing.T) goredis.Cmdable {
	t.Helper()
	mr := miniredis.RunT(t)
	return goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

func sampleBars() []quotes.Bar {
	return []quotes.Bar{
		{Date: "2024-01-02T00:00:00Z", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{Date: "2024-01-03T00:00:00Z", Open: 1.5, High: 3, Low: 1, Close: 2.5, Volume: 200},
	}
}

func TestService_LookupFetchesFromProvider(t *testing.T) {
	provider := &stubProvider{bars: sampleBars()}
	svc := NewService(provider, testRedis(t), time.Minute)

	result, err := svc.Lookup(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)

	assert.Equal(t, "AAPL", result.Symbol)
	assert.Equal(t, "1y", result.Period)
	assert.Equal(t, "1d", result.Interval)
	assert.Len(t, result.Data, 2)
	assert.Equal(t, 1, provider.callCount())
}

func TestService_SecondLookupServedFromCache(t *testing.T) {
	provider := &stubProvider{bars: sampleBars()}
	svc := NewService(provider, testRedis(t), time.Minute)

	first, err := svc.Lookup(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)

	second, err := svc.Lookup(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.callCount(), "second lookup must not hit the provider")
}

func TestService_CacheKeyedByAllParameters(t *testing.T) {
	provider := &stubProvider{bars: sampleBars()}
	svc := NewService(provider, testRedis(t), time.Minute)

	_, err := svc.Lookup(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	_, err = svc.Lookup(context.Background(), "AAPL", "1mo", "1d")
	require.NoError(t, err)

	assert.Equal(t, 2, provider.callCount())
}

func TestService_ProviderErrorPropagates(t *testing.T) {
	provider := &stubProvider{err: apperrors.NotFoundError("no data returned")}
	svc := NewService(provider, testRedis(t), time.Minute)

	_, err := svc.Lookup(context.Background(), "NOPE", "1y", "1d")
	require.Error(t, err)

	structuredErr := apperrors.AsStructuredError(err)
	assert.Equal(t, apperrors.TypeNotFound, structuredErr.Type)
}

func TestService_ErrorsAreNotCached(t *testing.T) {
	provider := &stubProvider{err: apperrors.ExternalError("quote api request failed", nil)}
	svc := NewService(provider, testRedis(t), time.Minute)

	_, err := svc.Lookup(context.Background(), "AAPL", "1y", "1d")
	require.Error(t, err)
	_, err = svc.Lookup(context.Background(), "AAPL", "1y", "1d")
	require.Error(t, err)

	assert.Equal(t, 2, provider.callCount())
}

func TestService_WorksWithoutRedis(t *testing.T) {
	provider := &stubProvider{bars: sampleBars()}
	svc := NewService(provider, nil, time.Minute)

	result, err := svc.Lookup(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	assert.Len(t, result.Data, 2)

	_, err = svc.Lookup(context.Background(), "AAPL", "1y", "1d")
	require.NoError(t, err)
	assert.Equal(t, 2, provider.callCount())
}

func TestService_RejectsEmptySymbol(t *testing.T) {
	svc := NewService(&stubProvider{}, nil, time.Minute)

	_, err := svc.Lookup(context.Background(), "", "1y", "1d")
	require.Error(t, err)

	structuredErr := apperrors.AsStructuredError(err)
	assert.Equal(t, apperrors.TypeValidation, structuredErr.Type)
}
