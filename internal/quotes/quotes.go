// Package quotes defines the domain types shared between the quote source,
// the broadcaster, and the HTTP surface.
package quotes

import "context"

// Quote is one symbol's latest price snapshot. A failed fetch is encoded in
// the Error field; Price is nil in that case so the entry serializes as
// {"symbol": ..., "error": ...} only.
type Quote struct {
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price,omitempty"`
	Currency  string   `json:"currency,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// BroadcastMessage is the outbound frame sent once per polling cycle to every
// connected client. Data preserves subscription order.
type BroadcastMessage struct {
	Type string  `json:"type"`
	Data []Quote `json:"data"`
}

// MessageTypeQuotes is the type tag of outbound broadcast frames.
const MessageTypeQuotes = "quotes"

// ControlMessage is the inbound frame accepted from clients. Both Symbols and
// Interval are optional; a nil field leaves the current subscription value
// unchanged. Interval is in seconds.
type ControlMessage struct {
	Type     string   `json:"type"`
	Symbols  []string `json:"symbols"`
	Interval *int     `json:"interval"`
}

// ControlTypeSubscribe is the only recognized inbound message type. Anything
// else is silently ignored.
const ControlTypeSubscribe = "subscribe"

// Bar is one OHLCV entry of a historical lookup.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// HistoryResult is the response shape of the /history endpoint.
type HistoryResult struct {
	Symbol   string `json:"symbol"`
	Period   string `json:"period"`
	Interval string `json:"interval"`
	Data     []Bar  `json:"data"`
}

// Source fetches the latest quote for a single symbol. Implementations never
// return an error; all failure is carried in the Quote's Error field so a
// broadcast cycle degrades per symbol instead of aborting.
type Source interface {
	Fetch(ctx context.Context, symbol string) Quote
}

// HistoryProvider serves the stateless historical lookup. It has no relation
// to the live broadcast state.
type HistoryProvider interface {
	History(ctx context.Context, symbol, period, interval string) ([]Bar, error)
}
