package server

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/tickerpulse/internal/broadcast"
	"github.com/pscheid92/tickerpulse/internal/config"
	"github.com/pscheid92/tickerpulse/internal/history"
	"github.com/pscheid92/tickerpulse/internal/quotes"
	"github.com/pscheid92/tickerpulse/internal/subscription"
)

type stubSource struct{}

func (stubSource) Fetch(_ context.Context, symbol string) quotes.Quote {
	price := 42.5
	return quotes.Quote{Symbol: symbol, Price: &price, Currency: "USD", Timestamp: "2024-01-02T15:04:05Z"}
}

type stubHistoryProvider struct {
	mu       sync.Mutex
	symbol   string
	period   string
	interval string
	bars     []quotes.Bar
	err      error
}

func (p *stubHistoryProvider) History(_ context.Context, symbol, period, interval string) ([]quotes.Bar, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbol, p.period, p.interval = symbol, period, interval
	return p.bars, p.err
}

func (p *stubHistoryProvider) lastRequest() (string, string, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.symbol, p.period, p.interval
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:               "test",
		Port:                 "0",
		DefaultSymbols:       "^GSPC,^NDX",
		DefaultInterval:      20 * time.Millisecond,
		MaxConnections:       10,
		HistoryRatePerSecond: 1000,
		HistoryRateBurst:     1000,
		HistoryCacheTTL:      time.Minute,
		// echo's Static route tolerates a missing directory.
		StaticDir: "testdata",
	}
}

func newTestServer(t *testing.T, cfg *config.Config, provider *stubHistoryProvider) (*httptest.Server, *subscription.State) {
	t.Helper()

	if cfg == nil {
		cfg = testConfig()
	}
	if provider == nil {
		provider = &stubHistoryProvider{}
	}

	state := subscription.NewState(cfg.Symbols(), cfg.DefaultInterval)
	broadcaster := broadcast.NewBroadcaster(state, stubSource{}, clockwork.NewRealClock(), cfg.MaxConnections)
	t.Cleanup(func() { broadcaster.Stop() })

	historySvc := history.NewService(provider, nil, cfg.HistoryCacheTTL)

	srv := NewServer(cfg, broadcaster, state, historySvc, nil)
	httpServer := httptest.NewServer(srv.echo)
	t.Cleanup(httpServer.Close)

	return httpServer, state
}

func dialWS(t *testing.T, httpServer *httptest.Server) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForState(t *testing.T, cond func() bool) bool {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestWebSocket_SubscribeReplacesSymbols(t *testing.T) {
	httpServer, state := newTestServer(t, nil, nil)
	conn := dialWS(t, httpServer)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"subscribe","symbols":["AAPL"],"interval":5}`)))

	require.True(t, waitForState(t, func() bool {
		symbols, interval := state.Snapshot()
		return len(symbols) == 1 && symbols[0] == "AAPL" && interval == 5*time.Second
	}))
}

func TestWebSocket_PartialUpdateIntervalOnly(t *testing.T) {
	httpServer, state := newTestServer(t, nil, nil)
	conn := dialWS(t, httpServer)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"subscribe","interval":3}`)))

	require.True(t, waitForState(t, func() bool {
		_, interval := state.Snapshot()
		return interval == 3*time.Second
	}))

	symbols, _ := state.Snapshot()
	assert.Equal(t, []string{"^GSPC", "^NDX"}, symbols, "symbols must be unchanged")
}

func TestWebSocket_PartialUpdateSymbolsOnly(t *testing.T) {
	httpServer, state := newTestServer(t, nil, nil)
	conn := dialWS(t, httpServer)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"subscribe","symbols":["MSFT","GOOG"]}`)))

	require.True(t, waitForState(t, func() bool {
		symbols, _ := state.Snapshot()
		return len(symbols) == 2 && symbols[0] == "MSFT"
	}))

	_, interval := state.Snapshot()
	assert.Equal(t, 20*time.Millisecond, interval, "interval must be unchanged")
}

func TestWebSocket_UnknownTypeIgnored(t *testing.T) {
	httpServer, state := newTestServer(t, nil, nil)
	conn := dialWS(t, httpServer)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"ping","symbols":["AAPL"]}`)))

	// The connection stays up and keeps receiving broadcasts.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	symbols, _ := state.Snapshot()
	assert.Equal(t, []string{"^GSPC", "^NDX"}, symbols, "non-subscribe message must not mutate state")
}

func TestWebSocket_MalformedMessageClosesConnection(t *testing.T) {
	httpServer, _ := newTestServer(t, nil, nil)
	conn := dialWS(t, httpServer)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{not json`)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestWebSocket_InvalidIntervalRetainsPrevious(t *testing.T) {
	httpServer, state := newTestServer(t, nil, nil)
	conn := dialWS(t, httpServer)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"subscribe","symbols":["AAPL"],"interval":-5}`)))

	require.True(t, waitForState(t, func() bool {
		symbols, _ := state.Snapshot()
		return len(symbols) == 1 && symbols[0] == "AAPL"
	}))

	_, interval := state.Snapshot()
	assert.Equal(t, 20*time.Millisecond, interval, "invalid interval must be rejected")
}

func TestWebSocket_RegisterFailureClosesConnection(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	httpServer, _ := newTestServer(t, cfg, nil)

	connA := dialWS(t, httpServer)
	require.NoError(t, connA.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := connA.ReadMessage()
	require.NoError(t, err, "first client must be streaming")

	connB := dialWS(t, httpServer)
	require.NoError(t, connB.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = connB.ReadMessage()
	assert.Error(t, err, "over-cap client must be closed, not left hanging")
}

func TestWebSocket_BroadcastReachesClient(t *testing.T) {
	httpServer, _ := newTestServer(t, nil, nil)
	conn := dialWS(t, httpServer)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	assert.Contains(t, string(data), `"type":"quotes"`)
	assert.Contains(t, string(data), `"^GSPC"`)
}
