// Package feed consumes a normalized quote stream over a websocket and
// applies it to the quote cache. The feed is a best-effort
// collaborator: malformed messages are skipped, lost connections are
// redialed, and stale ticks are discarded by the cache's
// last-timestamp-wins rule.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/quote"
)

// tick is the wire format pushed by the feed collaborator.
type tick struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
	Timestamp int64   `json:"ts"` // unix milliseconds
}

// Client maintains a websocket connection to the quote feed and
// forwards decoded ticks to the cache.
type Client struct {
	url           string
	cache         *quote.Cache
	logger        *slog.Logger
	reconnectWait time.Duration
}

// NewClient creates a feed client. reconnectWait is the pause between
// redial attempts after a connection failure.
func NewClient(url string, cache *quote.Cache, logger *slog.Logger, reconnectWait time.Duration) *Client {
	return &Client{
		url:           url,
		cache:         cache,
		logger:        logger.With(slog.String("component", "feed")),
		reconnectWait: reconnectWait,
	}
}

// Run dials the feed and pumps ticks into the cache until ctx is
// canceled, redialing after any connection loss.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			c.logger.Warn("feed dial failed",
				slog.String("url", c.url),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.reconnectWait):
			}
			continue
		}

		c.logger.Info("feed connected", slog.String("url", c.url))
		c.readLoop(ctx, conn)
		conn.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.reconnectWait):
		}
	}
}

// readLoop reads messages until the connection breaks or ctx is
// canceled. A goroutine watches ctx and closes the connection to
// unblock the read.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("feed read failed", slog.String("error", err.Error()))
			}
			return
		}
		c.Handle(data)
	}
}

// Handle decodes one feed message and applies it to the cache.
// Decode failures and ticks without a symbol or last price are logged
// and dropped; the feed carries no delivery guarantee to begin with.
func (c *Client) Handle(data []byte) {
	var t tick
	if err := json.Unmarshal(data, &t); err != nil {
		c.logger.Debug("feed message discarded", slog.String("error", err.Error()))
		return
	}
	q, err := t.toQuote()
	if err != nil {
		c.logger.Debug("feed tick discarded", slog.String("error", err.Error()))
		return
	}
	c.cache.Update(q)
}

// toQuote converts the wire tick to a domain quote, validating the
// monetary precision of each side.
func (t tick) toQuote() (domain.Quote, error) {
	last, err := domain.DollarsToCents(t.Last)
	if err != nil {
		return domain.Quote{}, err
	}
	bid, err := domain.DollarsToCents(t.Bid)
	if err != nil {
		return domain.Quote{}, err
	}
	ask, err := domain.DollarsToCents(t.Ask)
	if err != nil {
		return domain.Quote{}, err
	}
	if t.Symbol == "" || last <= 0 {
		return domain.Quote{}, &domain.ValidationError{Message: "tick requires symbol and last price"}
	}
	return domain.Quote{
		Symbol:   t.Symbol,
		Bid:      bid,
		Ask:      ask,
		Last:     last,
		FeedTime: time.UnixMilli(t.Timestamp),
	}, nil
}
