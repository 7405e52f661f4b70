package engine

import (
	"sync"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/google/btree"
)

// BookEntry represents a single limit order resting on the book.
// Seq is the book-assigned insertion sequence number used as the final
// tie-break, so ordering is strict even under equal timestamps.
type BookEntry struct {
	Price     int64
	CreatedAt time.Time
	Seq       int64
	Order     *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// buyLess defines ordering for the buy side: price descending, then
// created_at ascending, then insertion sequence ascending. Min()
// returns the best buy (highest price, earliest arrival).
func buyLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// sellLess defines ordering for the sell side: price ascending, then
// created_at ascending, then insertion sequence ascending. Min()
// returns the best sell (lowest price, earliest arrival).
func sellLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// Book maintains the buy and sell sides for a single instrument using
// B-trees with a secondary index for O(log n) removal by order ID.
//
// All access is serialized through Acquire/Release: the matching engine
// holds the lock for a whole matching pass, cancels take the same lock,
// and depth reads do too, which is what guarantees at most one outcome
// when a cancel races an in-flight match.
type Book struct {
	symbol  string
	lock    chan struct{} // capacity 1; held token = exclusive access
	buys    *btree.BTreeG[BookEntry]
	sells   *btree.BTreeG[BookEntry]
	index   map[string]BookEntry // order_id → entry
	nextSeq int64
}

// NewBook creates an order book for the given symbol.
func NewBook(symbol string) *Book {
	const degree = 32
	return &Book{
		symbol: symbol,
		lock:   make(chan struct{}, 1),
		buys:   btree.NewG[BookEntry](degree, buyLess),
		sells:  btree.NewG[BookEntry](degree, sellLess),
		index:  make(map[string]BookEntry),
	}
}

// Acquire takes the book's exclusive lock, waiting at most timeout.
// It returns domain.ErrBusy when the lock cannot be acquired in time;
// callers reject the order rather than queueing unbounded.
func (b *Book) Acquire(timeout time.Duration) error {
	select {
	case b.lock <- struct{}{}:
		return nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b.lock <- struct{}{}:
		return nil
	case <-timer.C:
		return domain.ErrBusy
	}
}

// Release returns the book's exclusive lock.
func (b *Book) Release() {
	<-b.lock
}

// Insert adds an order's entry to its side of the book and assigns the
// insertion sequence number. The caller must hold the lock.
func (b *Book) Insert(order *domain.Order) BookEntry {
	b.nextSeq++
	entry := BookEntry{
		Price:     order.Price,
		CreatedAt: order.CreatedAt,
		Seq:       b.nextSeq,
		Order:     order,
	}
	if order.Side == domain.OrderSideBuy {
		b.buys.ReplaceOrInsert(entry)
	} else {
		b.sells.ReplaceOrInsert(entry)
	}
	b.index[order.OrderID] = entry
	return entry
}

// Remove deletes an order from the book by order ID using the
// secondary index. Returns true if the order was resting. The caller
// must hold the lock.
func (b *Book) Remove(orderID string) bool {
	entry, ok := b.index[orderID]
	if !ok {
		return false
	}
	delete(b.index, orderID)
	// Delete is a no-op on the side the entry isn't on.
	b.buys.Delete(entry)
	b.sells.Delete(entry)
	return true
}

// Contains reports whether the order is resting on the book.
func (b *Book) Contains(orderID string) bool {
	_, ok := b.index[orderID]
	return ok
}

// BestBuy returns the highest-priority buy (highest price, earliest arrival).
func (b *Book) BestBuy() (BookEntry, bool) {
	return b.buys.Min()
}

// BestSell returns the highest-priority sell (lowest price, earliest arrival).
func (b *Book) BestSell() (BookEntry, bool) {
	return b.sells.Min()
}

// WalkBuys iterates buys in priority order. The callback returns true
// to continue, false to stop.
func (b *Book) WalkBuys(fn func(BookEntry) bool) {
	b.buys.Ascend(fn)
}

// WalkSells iterates sells in priority order. The callback returns
// true to continue, false to stop.
func (b *Book) WalkSells(fn func(BookEntry) bool) {
	b.sells.Ascend(fn)
}

// TopBuys returns up to n aggregated price levels from the buy side,
// ordered by price descending.
func (b *Book) TopBuys(n int) []PriceLevel {
	return topLevels(b.buys, n)
}

// TopSells returns up to n aggregated price levels from the sell side,
// ordered by price ascending.
func (b *Book) TopSells(n int) []PriceLevel {
	return topLevels(b.sells, n)
}

// topLevels iterates the B-tree in order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[BookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry BookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].TotalQuantity += entry.Order.RemainingQuantity
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.RemainingQuantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// BuyCount returns the number of individual buy orders on the book.
func (b *Book) BuyCount() int {
	return b.buys.Len()
}

// SellCount returns the number of individual sell orders on the book.
func (b *Book) SellCount() int {
	return b.sells.Len()
}

// BookManager is a thread-safe map of symbol → Book.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*Book),
	}
}

// GetOrCreate returns the order book for the given symbol, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *Book {
	bm.mu.RLock()
	book, ok := bm.books[symbol]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[symbol]; ok {
		return book
	}
	book = NewBook(symbol)
	bm.books[symbol] = book
	return book
}
