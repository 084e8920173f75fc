package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"forexstream/internal/model"
)

// DefaultURL is the upstream forex quote stream.
const DefaultURL = "wss://api.tiingo.com/fx"

// State is the connection state of the upstream client.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	default:
		return "disconnected"
	}
}

// Options configures the upstream client.
type Options struct {
	// URL overrides the upstream endpoint. Tests point this at a local
	// server.
	URL string

	// APIKey authenticates the subscription handshake.
	APIKey string

	// ThresholdLevel is the upstream noise filter sent in the handshake.
	ThresholdLevel int

	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration

	// MaxSpreadPercent drops ticks whose |ask-bid|/bid exceeds this
	// percentage.
	MaxSpreadPercent float64

	// HistoryCap bounds the per-symbol tick history ring.
	HistoryCap int
}

// Client maintains the long-lived upstream quote connection. It decodes
// the discriminated message envelope, validates each quote, records it
// in the price book and hands it to the processing channel. All
// transport errors are recovered by the reconnect loop; Start returns
// only when the context is cancelled.
type Client struct {
	opts   Options
	logger *slog.Logger
	book   *Book
	ticks  chan model.Tick

	state     atomic.Int32
	malformed atomic.Uint64
	rejected  atomic.Uint64
}

// NewClient creates an upstream client. The returned client owns the
// price book and the tick channel consumed by the pipeline.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.MaxSpreadPercent <= 0 {
		opts.MaxSpreadPercent = 1.0
	}

	return &Client{
		opts:   opts,
		logger: logger,
		book:   NewBook(opts.HistoryCap),
		ticks:  make(chan model.Tick, 1024),
	}
}

// Book returns the price book owned by the client.
func (c *Client) Book() *Book {
	return c.book
}

// Ticks returns the channel of validated ticks, in arrival order.
func (c *Client) Ticks() <-chan model.Tick {
	return c.ticks
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Dropped returns the counts of malformed messages and invalid ticks
// discarded so far.
func (c *Client) Dropped() (malformed, rejected uint64) {
	return c.malformed.Load(), c.rejected.Load()
}

// Start runs the supervised connect/stream/reconnect loop until ctx is
// cancelled. The tick channel is closed on return.
func (c *Client) Start(ctx context.Context) {
	defer close(c.ticks)
	defer c.state.Store(int32(StateDisconnected))

	for {
		if err := c.connectAndStream(ctx); err != nil {
			c.logger.Error("upstream connection error", "error", err)
		}
		c.state.Store(int32(StateDisconnected))

		select {
		case <-ctx.Done():
			c.logger.Info("upstream client stopped")
			return
		case <-time.After(c.opts.ReconnectDelay):
			c.logger.Info("reconnecting to upstream", "delay", c.opts.ReconnectDelay)
		}
	}
}

func (c *Client) connectAndStream(ctx context.Context) error {
	c.state.Store(int32(StateConnecting))
	c.logger.Info("connecting to upstream", "url", c.opts.URL)

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.opts.URL, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	defer conn.Close()

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	handshake := map[string]any{
		"eventName":     "subscribe",
		"authorization": c.opts.APIKey,
		"eventData": map[string]any{
			"thresholdLevel": c.opts.ThresholdLevel,
		},
	}
	if err := conn.WriteJSON(handshake); err != nil {
		return fmt.Errorf("subscription handshake: %w", err)
	}

	c.state.Store(int32(StateStreaming))
	c.logger.Info("streaming upstream quotes")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		c.handleMessage(ctx, message)
	}
}

func (c *Client) handleMessage(ctx context.Context, message []byte) {
	if !gjson.ValidBytes(message) {
		c.malformed.Add(1)
		return
	}

	switch gjson.GetBytes(message, "messageType").String() {
	case "A":
		tick, ok := c.decodeQuote(message)
		if !ok {
			return
		}
		c.book.Update(tick)
		select {
		case c.ticks <- tick:
		case <-ctx.Done():
		}
	case "I":
		c.logger.Info("upstream info", "message", string(message))
	case "E":
		c.logger.Error("upstream error", "message", string(message))
	}
}

// decodeQuote extracts a tick from the positional quote array:
// [0]=subtype ("Q" only), [1]=symbol, [4]=bid, [7]=ask. Short arrays
// and non-quote subtypes are ignored silently; the upstream mixes
// heartbeats and other subtypes into the same stream.
func (c *Client) decodeQuote(message []byte) (model.Tick, bool) {
	data := gjson.GetBytes(message, "data")
	if !data.IsArray() {
		c.malformed.Add(1)
		return model.Tick{}, false
	}

	fields := data.Array()
	if len(fields) < 8 {
		c.malformed.Add(1)
		return model.Tick{}, false
	}

	if fields[0].String() != "Q" {
		return model.Tick{}, false
	}

	symbol := strings.ToLower(fields[1].String())
	bid := fields[4].Float()
	ask := fields[7].Float()

	if symbol == "" || bid <= 0 || ask <= 0 {
		c.rejected.Add(1)
		return model.Tick{}, false
	}

	spreadPct := (ask - bid) / bid * 100
	if spreadPct < 0 {
		spreadPct = -spreadPct
	}
	if spreadPct > c.opts.MaxSpreadPercent {
		c.rejected.Add(1)
		return model.Tick{}, false
	}

	return model.Tick{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Mid:       (bid + ask) / 2,
		Timestamp: time.Now().UTC(),
	}, true
}
