package hub

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendQueueSize bounds the per-client outbound queue. A client that
	// cannot drain this many messages is treated as dead.
	sendQueueSize = 64

	writeWait = 10 * time.Second
)

// Client is one subscriber connection. Its send queue is drained by a
// dedicated write pump so a slow client never blocks the broadcast path.
type Client struct {
	ID          string
	ClientType  string
	ConnectedAt time.Time

	conn *websocket.Conn

	// sendMu serializes queueing against closing so a broadcast can
	// never hit a closed channel.
	sendMu     sync.Mutex
	send       chan []byte
	sendClosed bool

	mu            sync.Mutex
	subscriptions map[string]struct{}
}

// newClient wraps a websocket connection. conn may be nil in tests; the
// write pump is only started for real connections.
func newClient(conn *websocket.Conn, id, clientType string) *Client {
	return &Client{
		ID:            id,
		ClientType:    clientType,
		ConnectedAt:   time.Now().UTC(),
		conn:          conn,
		send:          make(chan []byte, sendQueueSize),
		subscriptions: make(map[string]struct{}),
	}
}

// setSubscriptions replaces the subscription set.
func (c *Client) setSubscriptions(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscriptions = make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		c.subscriptions[strings.ToLower(s)] = struct{}{}
	}
}

// removeSubscriptions removes symbols from the subscription set.
func (c *Client) removeSubscriptions(symbols []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range symbols {
		delete(c.subscriptions, strings.ToLower(s))
	}
}

// clearSubscriptions empties the set; an empty set means "all symbols".
func (c *Client) clearSubscriptions() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscriptions = make(map[string]struct{})
}

// wantsSymbol reports whether the client should receive broadcasts for
// the symbol. An empty subscription set matches everything.
func (c *Client) wantsSymbol(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.subscriptions) == 0 {
		return true
	}
	_, ok := c.subscriptions[strings.ToLower(symbol)]
	return ok
}

// subscriptionCount returns the size of the subscription set.
func (c *Client) subscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscriptions)
}

// enqueue marshals v onto the send queue without blocking. It reports
// false when the queue is full, which the hub treats as a dead client.
// A client whose queue has been closed swallows the message; it is
// already on its way out.
func (c *Client) enqueue(v any) bool {
	payload, err := json.Marshal(v)
	if err != nil {
		return true // nothing to send; not the client's fault
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return true
	}

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue exactly once, stopping the write
// pump after it drains. Safe to call concurrently with enqueue.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	close(c.send)
}

// writePump drains the send queue onto the websocket. It exits on the
// first write error or when the queue is closed by the hub.
func (c *Client) writePump() {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
