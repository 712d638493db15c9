package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/tickerpulse/internal/metrics"
	"github.com/pscheid92/tickerpulse/internal/quotes"
	"github.com/pscheid92/tickerpulse/internal/subscription"
)

const (
	commandTimeout = 5 * time.Second
	stopTimeout    = 10 * time.Second
)

// broadcasterCmd is the command interface for the Broadcaster actor.
type broadcasterCmd interface{ isBroadcasterCmd() }

type baseBroadcasterCmd struct{}

func (baseBroadcasterCmd) isBroadcasterCmd() {}

type registerCmd struct {
	baseBroadcasterCmd
	id           uuid.UUID
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseBroadcasterCmd
	id uuid.UUID
}

type clientCountCmd struct {
	baseBroadcasterCmd
	replyChannel chan int
}

type streamingCmd struct {
	baseBroadcasterCmd
	replyChannel chan bool
}

type pollCmd struct {
	baseBroadcasterCmd
	replyChannel chan map[uuid.UUID]*clientWriter
}

type stopCmd struct {
	baseBroadcasterCmd
}

// Broadcaster owns the connection registry and the polling loop. All registry
// mutation happens on the single actor goroutine, so the empty/non-empty
// transitions that start and stop the loop are race-free by construction:
// a register on an idle broadcaster spawns exactly one loop, and the loop
// retires itself inside the actor when it observes an empty registry.
type Broadcaster struct {
	cmdCh          chan broadcasterCmd
	clock          clockwork.Clock
	clients        map[uuid.UUID]*clientWriter
	state          *subscription.State
	source         quotes.Source
	loopRunning    bool
	maxConnections int
	done           chan struct{}
	stopped        chan struct{}
}

// NewBroadcaster creates the broadcaster and starts its actor goroutine. The
// polling loop itself is not started until the first client registers.
// state is read once per cycle; source is called once per subscribed symbol.
func NewBroadcaster(state *subscription.State, source quotes.Source, clock clockwork.Clock, maxConnections int) *Broadcaster {
	b := &Broadcaster{
		cmdCh:          make(chan broadcasterCmd, 256),
		clock:          clock,
		clients:        make(map[uuid.UUID]*clientWriter),
		state:          state,
		source:         source,
		maxConnections: maxConnections,
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	go b.run()
	return b
}

// Register adds a connection to the registry. Idempotent for an id that is
// already present. Returns an error if the connection cap is reached.
func (b *Broadcaster) Register(id uuid.UUID, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	b.cmdCh <- registerCmd{id: id, connection: conn, errorChannel: errCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a connection from the registry. No-op if absent. Both
// disconnect paths (read failure in the handler, delivery failure in the
// loop) funnel through here, so double removal is harmless.
func (b *Broadcaster) Unregister(id uuid.UUID) {
	select {
	case b.cmdCh <- unregisterCmd{id: id}:
	case <-b.stopped:
	}
}

// ClientCount returns the number of registered connections, or -1 if the
// command times out.
func (b *Broadcaster) ClientCount() int {
	replyCh := make(chan int, 1)
	b.cmdCh <- clientCountCmd{replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Streaming reports whether the polling loop is currently running.
func (b *Broadcaster) Streaming() bool {
	replyCh := make(chan bool, 1)
	b.cmdCh <- streamingCmd{replyChannel: replyCh}

	timer := b.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case running := <-replyCh:
		return running
	case <-timer.Chan():
		return false
	}
}

// Stop shuts down the broadcaster, closing all client connections. Blocks
// until the actor goroutine has exited or the stop timeout is reached.
func (b *Broadcaster) Stop() {
	b.cmdCh <- stopCmd{}

	timer := b.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-b.stopped:
		slog.Info("Broadcaster stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Broadcaster stop timeout exceeded", "timeout", stopTimeout)
		metrics.BroadcasterStopTimeoutsTotal.Inc()
	}
}

func (b *Broadcaster) run() {
	defer close(b.stopped)

	for cmd := range b.cmdCh {
		switch c := cmd.(type) {
		case registerCmd:
			b.handleRegister(c)
		case unregisterCmd:
			b.handleUnregister(c)
		case clientCountCmd:
			c.replyChannel <- len(b.clients)
		case streamingCmd:
			c.replyChannel <- b.loopRunning
		case pollCmd:
			b.handlePoll(c)
		case stopCmd:
			b.handleStop()
			return
		default:
			slog.Warn("Broadcaster received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
		}
	}
}

func (b *Broadcaster) handleRegister(c registerCmd) {
	if _, exists := b.clients[c.id]; exists {
		c.errorChannel <- nil
		return
	}

	if len(b.clients) >= b.maxConnections {
		slog.Warn("Rejecting client: max connections reached", "max_connections", b.maxConnections)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max connections (%d) reached", b.maxConnections)
		return
	}

	cw := newClientWriter(c.connection, b.clock)
	b.clients[c.id] = cw
	metrics.BroadcasterConnectedClients.Set(float64(len(b.clients)))

	if !b.loopRunning {
		b.loopRunning = true
		metrics.BroadcasterLoopActive.Set(1)
		go b.streamQuotes()
		slog.Info("First client connected, starting quote stream")
	}

	slog.Debug("Client registered", "connection_id", c.id.String(), "total_clients", len(b.clients))
	c.errorChannel <- nil
}

func (b *Broadcaster) handleUnregister(c unregisterCmd) {
	cw, exists := b.clients[c.id]
	if !exists {
		return
	}

	cw.stop()
	delete(b.clients, c.id)
	metrics.BroadcasterConnectedClients.Set(float64(len(b.clients)))

	if len(b.clients) == 0 {
		slog.Info("Last client disconnected, quote stream will stop")
	} else {
		slog.Debug("Client unregistered", "connection_id", c.id.String(), "remaining_clients", len(b.clients))
	}
}

// handlePoll hands the loop a snapshot of the registry for one fan-out pass.
// An empty registry retires the loop: loopRunning is flipped here, inside the
// actor, so the next register observes it atomically and spawns a fresh loop.
func (b *Broadcaster) handlePoll(c pollCmd) {
	if len(b.clients) == 0 {
		b.loopRunning = false
		metrics.BroadcasterLoopActive.Set(0)
		c.replyChannel <- nil
		return
	}

	snapshot := make(map[uuid.UUID]*clientWriter, len(b.clients))
	for id, cw := range b.clients {
		snapshot[id] = cw
	}
	c.replyChannel <- snapshot
}

func (b *Broadcaster) handleStop() {
	slog.Info("Broadcaster shutting down", "clients", len(b.clients))

	for id, cw := range b.clients {
		cw.stopGraceful("Server shutting down")
		delete(b.clients, id)
	}
	metrics.BroadcasterConnectedClients.Set(0)

	b.loopRunning = false
	metrics.BroadcasterLoopActive.Set(0)
	close(b.done)
}

// streamQuotes is the polling loop. One instance runs while the registry is
// non-empty: snapshot subscription, fetch all symbols, fan out one serialized
// message, sleep for the interval read at cycle start.
func (b *Broadcaster) streamQuotes() {
	for {
		writers := b.pollWriters()
		if writers == nil {
			return
		}

		symbols, interval := b.state.Snapshot()
		cycleStart := b.clock.Now()

		updates := b.fetchAll(symbols)

		data, err := json.Marshal(quotes.BroadcastMessage{Type: quotes.MessageTypeQuotes, Data: updates})
		if err != nil {
			slog.Error("Failed to marshal broadcast message", "error", err)
		} else {
			for id, cw := range writers {
				if !cw.trySend(data) {
					slog.Warn("Evicting client after failed delivery", "connection_id", id.String())
					metrics.BroadcasterEvictionsTotal.Inc()
					b.Unregister(id)
				}
			}
		}

		metrics.BroadcasterCycleDuration.Observe(b.clock.Since(cycleStart).Seconds())
		metrics.BroadcasterCyclesTotal.Inc()

		timer := b.clock.NewTimer(interval)
		select {
		case <-timer.Chan():
		case <-b.done:
			timer.Stop()
			return
		}
		timer.Stop()
	}
}

// pollWriters asks the actor for a registry snapshot. A nil result means the
// registry is empty (or the broadcaster is stopping) and the loop must exit.
func (b *Broadcaster) pollWriters() map[uuid.UUID]*clientWriter {
	replyCh := make(chan map[uuid.UUID]*clientWriter, 1)

	select {
	case b.cmdCh <- pollCmd{replyChannel: replyCh}:
	case <-b.done:
		return nil
	}

	select {
	case writers := <-replyCh:
		return writers
	case <-b.done:
		return nil
	}
}

// fetchAll fetches every symbol concurrently and returns the quotes in
// subscription order. Source implementations encode failure in the Quote
// itself, so one bad symbol never aborts the cycle.
func (b *Broadcaster) fetchAll(symbols []string) []quotes.Quote {
	results := make([]quotes.Quote, len(symbols))

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			results[i] = b.source.Fetch(context.Background(), symbol)
		}(i, symbol)
	}
	wg.Wait()

	return results
}
