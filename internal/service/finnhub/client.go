package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"FinSignal/internal/domain/models"
	drepo "FinSignal/internal/domain/repository"
	applogger "FinSignal/pkg/logger"
)

// Client implements a MarketStream backed by the Finnhub trade websocket.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger
	dialer         *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

type Option func(*Client)

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// New creates a Finnhub MarketStream for the given symbols.
func New(apiKey, websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, opts ...Option) *Client {
	c := &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            applogger.Nop(),
		dialer:         websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pingInterval <= 0 {
		c.pingInterval = 30 * time.Second
	}
	return c
}

// Connect establishes the websocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.websocketURL)
	if err != nil {
		return fmt.Errorf("finnhub url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.apiKey)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("finnhub connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("finnhub connected", applogger.String("url", c.websocketURL))
	return nil
}

// Subscribe subscribes to the configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.connected {
		return fmt.Errorf("finnhub not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s}
		if err := c.conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		c.log.Info("finnhub subscribed", applogger.String("symbol", s))
	}
	return nil
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

// decodeTicks turns one frame into ticks. Frames other than "trade" yield nil.
func decodeTicks(b []byte) ([]*models.Tick, error) {
	var m fhMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m.Type != "trade" {
		return nil, nil
	}
	out := make([]*models.Tick, 0, len(m.Data))
	for _, d := range m.Data {
		out = append(out, &models.Tick{Symbol: d.S, Timestamp: d.T, Price: d.P, Volume: d.V})
	}
	return out, nil
}

// Read streams ticks until the connection fails or ctx ends. Both channels
// are closed when the read loop exits; at most one error is delivered.
func (c *Client) Read(ctx context.Context) (<-chan *models.Tick, <-chan error) {
	ticks := make(chan *models.Tick, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				if conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
				c.mu.Unlock()
			}
		}
	}()

	go func() {
		defer close(done)
		defer close(ticks)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("finnhub conn nil")
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("finnhub read: %w", err)
				}
				return
			}
			batch, err := decodeTicks(b)
			if err != nil {
				continue
			}
			for _, t := range batch {
				select {
				case ticks <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes the connection, waits the reconnect delay and
// re-subscribes.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the websocket connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.MarketStream = (*Client)(nil)
