package ingest

import (
	"context"
	"testing"
	"time"
)

func newTestClient() *Client {
	return NewClient(Options{
		APIKey:           "test-key",
		MaxSpreadPercent: 1.0,
	}, nil)
}

func TestDecodeQuote(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		wantOK   bool
		wantBid  float64
		wantAsk  float64
		rejected uint64
	}{
		{
			name:    "valid quote",
			message: `{"messageType":"A","data":["Q","EURUSD",null,null,1.0998,null,null,1.1000]}`,
			wantOK:  true,
			wantBid: 1.0998,
			wantAsk: 1.1000,
		},
		{
			name:    "non-quote subtype ignored silently",
			message: `{"messageType":"A","data":["T","EURUSD",null,null,1.0998,null,null,1.1000]}`,
			wantOK:  false,
		},
		{
			name:     "zero bid rejected",
			message:  `{"messageType":"A","data":["Q","EURUSD",null,null,0,null,null,1.1000]}`,
			wantOK:   false,
			rejected: 1,
		},
		{
			name:     "missing symbol rejected",
			message:  `{"messageType":"A","data":["Q","",null,null,1.0998,null,null,1.1000]}`,
			wantOK:   false,
			rejected: 1,
		},
		{
			name:     "spread above one percent rejected",
			message:  `{"messageType":"A","data":["Q","EURUSD",null,null,1.0000,null,null,1.0200]}`,
			wantOK:   false,
			rejected: 1,
		},
		{
			name:    "half percent spread accepted",
			message: `{"messageType":"A","data":["Q","EURUSD",null,null,1.0000,null,null,1.0050]}`,
			wantOK:  true,
			wantBid: 1.0000,
			wantAsk: 1.0050,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient()

			tick, ok := c.decodeQuote([]byte(tt.message))
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok {
				if tick.Symbol != "eurusd" {
					t.Errorf("symbol = %q, want eurusd", tick.Symbol)
				}
				if tick.Bid != tt.wantBid || tick.Ask != tt.wantAsk {
					t.Errorf("bid/ask = %v/%v, want %v/%v", tick.Bid, tick.Ask, tt.wantBid, tt.wantAsk)
				}
				if want := (tt.wantBid + tt.wantAsk) / 2; tick.Mid != want {
					t.Errorf("mid = %v, want %v", tick.Mid, want)
				}
			}

			if _, rejected := c.Dropped(); rejected != tt.rejected {
				t.Errorf("rejected = %d, want %d", rejected, tt.rejected)
			}
		})
	}
}

func TestDecodeQuoteMalformedArrays(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{"data not an array", `{"messageType":"A","data":"nope"}`},
		{"missing data", `{"messageType":"A"}`},
		{"short array", `{"messageType":"A","data":["Q","EURUSD",1.0998]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient()

			if _, ok := c.decodeQuote([]byte(tt.message)); ok {
				t.Fatal("malformed quote should not decode")
			}
			if malformed, _ := c.Dropped(); malformed != 1 {
				t.Errorf("malformed = %d, want 1", malformed)
			}
		})
	}
}

func TestHandleMessageRoutesQuotes(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	c.handleMessage(ctx, []byte(`{"messageType":"A","data":["Q","EURUSD",null,null,1.0998,null,null,1.1000]}`))

	select {
	case tick := <-c.Ticks():
		if tick.Symbol != "eurusd" {
			t.Errorf("symbol = %q, want eurusd", tick.Symbol)
		}
	default:
		t.Fatal("expected a tick on the channel")
	}

	// The book holds the same tick as the last known price.
	if _, ok := c.Book().Price("eurusd"); !ok {
		t.Error("book should hold the decoded tick")
	}
}

func TestHandleMessageIgnoresNoise(t *testing.T) {
	c := newTestClient()
	ctx := context.Background()

	c.handleMessage(ctx, []byte(`not json at all`))
	c.handleMessage(ctx, []byte(`{"messageType":"I","response":{"message":"Success"}}`))
	c.handleMessage(ctx, []byte(`{"messageType":"E","response":{"message":"bad key"}}`))
	c.handleMessage(ctx, []byte(`{"messageType":"Z"}`))

	select {
	case tick := <-c.Ticks():
		t.Fatalf("unexpected tick %+v", tick)
	default:
	}

	if malformed, _ := c.Dropped(); malformed != 1 {
		t.Errorf("malformed = %d, want 1 for the invalid JSON", malformed)
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	c := NewClient(Options{
		URL:            "ws://127.0.0.1:1", // nothing listening
		APIKey:         "test-key",
		ReconnectDelay: 10 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	// Let it fail a dial or two, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancel")
	}

	if c.State() != StateDisconnected {
		t.Errorf("state = %v, want disconnected", c.State())
	}

	// The tick channel is closed on return.
	if _, ok := <-c.Ticks(); ok {
		t.Error("tick channel should be closed after Start returns")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateStreaming, "streaming"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
