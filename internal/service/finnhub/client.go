package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"MarketBrain/internal/domain/models"
	"MarketBrain/pkg/logger"
)

var errClosed = errors.New("finnhub: stream closed")

// Client is a TickStream backed by the Finnhub trade WebSocket. Each Run
// dials a fresh connection; the caller owns reconnection.
type Client struct {
	apiKey       string
	websocketURL string
	symbols      []string
	pingInterval time.Duration
	log          *logger.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New creates a Finnhub trade stream for symbols.
func New(apiKey, websocketURL string, symbols []string, pingInterval time.Duration, log *logger.Logger) *Client {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		apiKey:       apiKey,
		websocketURL: websocketURL,
		symbols:      symbols,
		pingInterval: pingInterval,
		log:          log,
	}
}

type fhTrade struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	V float64 `json:"v"`
	T int64   `json:"t"` // ms
}

type fhMessage struct {
	Type string    `json:"type"`
	Data []fhTrade `json:"data"`
}

// Run connects, subscribes and forwards trades to out until the connection
// fails, ctx is done or Close is called.
func (c *Client) Run(ctx context.Context, out chan<- models.Tick) error {
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.write(func() error { return conn.WriteJSON(msg) }); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.log.Info("finnhub subscribed", logger.Int("symbols", len(c.symbols)))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// ping loop; also unblocks ReadMessage on cancellation
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				_ = conn.Close()
				return
			case <-ticker.C:
				_ = c.write(func() error { return conn.WriteMessage(websocket.PingMessage, nil) })
			}
		}
	}()

	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if c.isClosed() {
				return errClosed
			}
			return fmt.Errorf("finnhub read: %w", err)
		}
		var m fhMessage
		if err := json.Unmarshal(b, &m); err != nil || m.Type != "trade" {
			continue
		}
		for _, d := range m.Data {
			tick := models.Tick{Symbol: d.S, Timestamp: d.T, Price: d.P, Volume: d.V}
			select {
			case out <- tick:
			case <-ctx.Done():
				return ctx.Err()
			default:
				// drop on backpressure
			}
		}
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errClosed
	}
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("finnhub connect: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// write serialises writers on the shared connection.
func (c *Client) write(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fn()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close stops the stream permanently.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
