// Package quote holds the latest known market price per instrument.
// The cache is explicitly constructed and updated by the feed
// collaborator; it carries no quality guarantee beyond
// last-feed-timestamp-wins.
package quote

import (
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// Cache is a thread-safe store of the most recent quote per symbol.
// Per-symbol updates are linearizable; there is no ordering guarantee
// across symbols.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{
		quotes: make(map[string]domain.Quote),
	}
}

// Update applies a quote if it is newer than the stored one for the
// symbol (last-write-wins by feed timestamp). Stale or equal-timestamp
// updates are discarded, which makes replayed feed messages idempotent.
// Returns true if the quote was applied.
func (c *Cache) Update(q domain.Quote) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.quotes[q.Symbol]
	if ok && !q.FeedTime.After(existing.FeedTime) {
		return false
	}
	c.quotes[q.Symbol] = q
	return true
}

// Get returns the latest quote for a symbol. It returns
// domain.ErrQuoteNotFound if no quote has been received.
func (c *Cache) Get(symbol string) (domain.Quote, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.quotes[symbol]
	if !ok {
		return domain.Quote{}, domain.ErrQuoteNotFound
	}
	return q, nil
}

// Symbols returns the symbols with a known quote, in unspecified order.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, 0, len(c.quotes))
	for sym := range c.quotes {
		result = append(result, sym)
	}
	return result
}
