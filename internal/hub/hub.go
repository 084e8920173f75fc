// Package hub fans ticks and triggered alerts out to connected
// websocket subscribers. Each connection carries a symbol filter and a
// bounded send queue; a client that fails or falls behind is evicted,
// never retried.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"forexstream/internal/model"
)

// PriceReader is the view of the price book the hub needs for the
// connect snapshot and get_price requests.
type PriceReader interface {
	Price(symbol string) (model.Tick, bool)
	AllPrices() map[string]model.Tick
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Clients int            `json:"clients"`
	ByType  map[string]int `json:"by_type"`
}

// Hub owns the connection registry.
type Hub struct {
	book     PriceReader
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*Client
}

// New creates an empty hub reading prices from book.
func New(book PriceReader, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		book:   book,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*Client),
	}
}

// Run consumes the tick and alert streams until both are closed or the
// context is cancelled.
func (h *Hub) Run(ctx context.Context, ticks <-chan model.Tick, alerts <-chan model.TriggeredAlert) {
	for ticks != nil || alerts != nil {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				ticks = nil
				continue
			}
			h.BroadcastTick(tick)
		case triggered, ok := <-alerts:
			if !ok {
				alerts = nil
				continue
			}
			h.BroadcastAlert(triggered)
		}
	}
}

// HandleConnection upgrades an HTTP request to a subscriber connection
// and services it until the client disconnects.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = uuid.New().String()
	}
	clientType := r.URL.Query().Get("client_type")
	if clientType == "" {
		clientType = "unknown"
	}

	client := newClient(conn, clientID, clientType)
	go client.writePump()

	h.register(client)
	defer h.unregister(client.ID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := ParseClientMessage(raw)
		if err != nil {
			client.enqueue(errorMessage{Type: "error", Message: err.Error()})
			continue
		}
		h.handleMessage(client, msg)
	}
}

// register adds the client and sends the snapshot of all known prices.
func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("subscriber connected", "client_id", c.ID, "client_type", c.ClientType, "total", total)

	snapshot := snapshotMessage{Type: "snapshot", Data: map[string]PriceData{}}
	for symbol, tick := range h.book.AllPrices() {
		snapshot.Data[symbol] = newPriceData(tick)
	}
	if !c.enqueue(snapshot) {
		h.unregister(c.ID)
	}
}

func (h *Hub) unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.closeSend()
		h.logger.Info("subscriber disconnected", "client_id", id, "total", total)
	}
}

// handleMessage services one validated control message.
func (h *Hub) handleMessage(c *Client, msg ClientMessage) {
	switch msg.Type {
	case TypeSubscribe:
		c.setSubscriptions(msg.Symbols)
		h.send(c, subscribedMessage{Type: "subscribed", Symbols: msg.Symbols})
	case TypeUnsubscribe:
		c.removeSubscriptions(msg.Symbols)
	case TypeSubscribeAll:
		c.clearSubscriptions()
		h.send(c, subscribedMessage{Type: "subscribed", Symbols: "all"})
	case TypePing:
		h.send(c, pongMessage{Type: "pong"})
	case TypeGetPrice:
		tick, ok := h.book.Price(msg.Symbol)
		if !ok {
			h.send(c, errorMessage{Type: "error", Message: fmt.Sprintf("Unknown symbol: %s", msg.Symbol)})
			return
		}
		h.send(c, priceMessage{Type: "price", Data: newPriceData(tick)})
	}
}

// BroadcastTick delivers a price update to every client whose filter
// matches the tick's symbol. Clients with full queues are evicted.
func (h *Hub) BroadcastTick(tick model.Tick) {
	msg := priceMessage{Type: "price", Data: newPriceData(tick)}
	symbol := strings.ToLower(tick.Symbol)

	for _, c := range h.snapshotClients() {
		if !c.wantsSymbol(symbol) {
			continue
		}
		h.send(c, msg)
	}
}

// BroadcastAlert delivers a triggered alert to every "bot" client,
// regardless of symbol filter.
func (h *Hub) BroadcastAlert(triggered model.TriggeredAlert) {
	msg := alertMessage{Type: "alert_triggered", Data: newAlertData(triggered)}

	for _, c := range h.snapshotClients() {
		if c.ClientType != "bot" {
			continue
		}
		h.send(c, msg)
	}
}

// Stats reports the current registry contents.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := Stats{Clients: len(h.clients), ByType: make(map[string]int)}
	for _, c := range h.clients {
		stats.ByType[c.ClientType]++
	}
	return stats
}

func (h *Hub) send(c *Client, v any) {
	if !c.enqueue(v) {
		h.logger.Warn("subscriber send queue full, evicting", "client_id", c.ID)
		h.unregister(c.ID)
	}
}

func (h *Hub) snapshotClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}
