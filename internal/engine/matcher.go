package engine

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/quote"
	"github.com/efreitasn/papertrade/internal/store"
)

// Config holds the matcher's tunables.
type Config struct {
	// LockTimeout bounds how long a submission waits for its
	// instrument's serialization lock before being rejected with Busy.
	LockTimeout time.Duration
	// LedgerRetries bounds internal retries of a conflicting ledger
	// append before Conflict surfaces to the caller.
	LedgerRetries int
	// SlippageBufferBps inflates the market-buy affordability estimate
	// (current ask, falling back to last) in basis points.
	SlippageBufferBps int64
}

// Matcher implements the matching engine: it validates incoming orders
// against ledger state, matches them against the book or the quote
// cache, and commits every fill as atomic ledger transactions.
type Matcher struct {
	books       *BookManager
	ledger      *store.LedgerStore
	orders      *store.OrderStore
	fills       *store.FillStore
	instruments *domain.InstrumentRegistry
	quotes      *quote.Cache
	logger      *slog.Logger
	cfg         Config
}

// NewMatcher creates a new Matcher with the given dependencies.
func NewMatcher(
	books *BookManager,
	ledger *store.LedgerStore,
	orders *store.OrderStore,
	fills *store.FillStore,
	instruments *domain.InstrumentRegistry,
	quotes *quote.Cache,
	logger *slog.Logger,
	cfg Config,
) *Matcher {
	if cfg.LedgerRetries < 1 {
		cfg.LedgerRetries = 1
	}
	return &Matcher{
		books:       books,
		ledger:      ledger,
		orders:      orders,
		fills:       fills,
		instruments: instruments,
		quotes:      quotes,
		logger:      logger,
		cfg:         cfg,
	}
}

// Submit runs an already-validated, already-stored order through the
// matching engine. The caller provides the order with OrderID, Status
// pending, and RemainingQuantity set; the matcher owns every status
// transition from here. The returned fills cover both sides of every
// match (taker and maker legs).
//
// The per-instrument lock is held for the entire matching pass, which
// serializes orders on one instrument in strict arrival order while
// orders on other instruments proceed independently.
func (m *Matcher) Submit(order *domain.Order) ([]*domain.Fill, error) {
	book := m.books.GetOrCreate(order.Symbol)

	if err := book.Acquire(m.cfg.LockTimeout); err != nil {
		m.reject(order, "busy")
		return nil, err
	}
	defer book.Release()

	// Pre-trade check against the ledger head balance. Rejections here
	// never touch the book or the ledger.
	balance, err := m.ledger.Balance(order.AccountID)
	if err != nil {
		m.reject(order, "account_not_found")
		return nil, err
	}
	if err := m.checkAffordability(order, balance, book); err != nil {
		m.reject(order, err.Error())
		return nil, err
	}

	// Match loop: walk the opposite side while the price is marketable
	// and quantity remains. The fill price is always the resting
	// order's price.
	var executed []*domain.Fill
	var settleErr error

	for order.RemainingQuantity > 0 {
		var best BookEntry
		var found bool
		if order.Side == domain.OrderSideBuy {
			best, found = book.BestSell()
		} else {
			best, found = book.BestBuy()
		}
		if !found {
			break
		}

		if order.Type == domain.OrderTypeLimit {
			if order.Side == domain.OrderSideBuy && order.Price < best.Price {
				break
			}
			if order.Side == domain.OrderSideSell && order.Price > best.Price {
				break
			}
		}

		resting := best.Order
		fillQty := order.RemainingQuantity
		if resting.RemainingQuantity < fillQty {
			fillQty = resting.RemainingQuantity
		}

		takerFill, makerFill, err := m.settleBookFill(order, resting, fillQty, best.Price)
		if err != nil {
			settleErr = err
			break
		}

		m.applyFill(order, takerFill)
		m.applyFill(resting, makerFill)
		executed = append(executed, takerFill, makerFill)

		if resting.RemainingQuantity == 0 {
			book.Remove(resting.OrderID)
		}
	}

	// Market orders with remaining quantity fall back to the quote
	// cache once the book is exhausted; the feed acts as the venue and
	// only the taker's account gets ledger entries.
	if order.Type == domain.OrderTypeMarket && order.RemainingQuantity > 0 && settleErr == nil {
		fill, err := m.settleQuoteFill(order)
		switch {
		case err == nil:
			m.applyFill(order, fill)
			executed = append(executed, fill)
		case err == domain.ErrQuoteNotFound || err == domain.ErrNoLiquidity:
			settleErr = domain.ErrNoLiquidity
		default:
			settleErr = err
		}
	}

	// Rest or complete.
	switch {
	case order.RemainingQuantity == 0:
		// Fully filled; applyFill already set the status.
	case order.Type == domain.OrderTypeLimit && settleErr == nil:
		book.Insert(order)
	default:
		// Market remainder, or a limit order whose settlement failed:
		// the remainder is rejected, executed fills stand.
		reason := "no_liquidity"
		if settleErr != nil {
			reason = settleErr.Error()
		}
		m.orders.Mutate(order, func(o *domain.Order) {
			o.RejectedQuantity = o.RemainingQuantity
			o.RemainingQuantity = 0
			if o.FilledQuantity == o.Quantity {
				o.Status = domain.OrderStatusFilled
			} else {
				o.Status = domain.OrderStatusRejected
				o.RejectReason = reason
			}
		})
		if order.Status == domain.OrderStatusRejected {
			m.logger.Info("order remainder rejected",
				slog.String("order_id", order.OrderID),
				slog.String("reason", reason),
				slog.Int64("filled", order.FilledQuantity),
				slog.Int64("rejected", order.RejectedQuantity),
			)
		}
	}

	if len(executed) == 0 && settleErr != nil {
		return nil, settleErr
	}
	return executed, nil
}

// checkAffordability enforces the pre-trade check: buys need cash for
// the worst reasonably expected price, sells need the position (no
// short selling).
func (m *Matcher) checkAffordability(order *domain.Order, balance *domain.Balance, book *Book) error {
	if order.Side == domain.OrderSideSell {
		if balance.PositionQuantity(order.Symbol) < order.Quantity {
			return domain.ErrInsufficientPosition
		}
		return nil
	}

	var unitPrice int64
	if order.Type == domain.OrderTypeLimit {
		unitPrice = order.Price
	} else {
		est, err := m.estimateMarketBuyPrice(order.Symbol, book)
		if err != nil {
			return err
		}
		unitPrice = est
	}

	cost := unitPrice * order.Quantity
	if order.Type == domain.OrderTypeMarket {
		// Conservative estimate: inflate by the slippage buffer,
		// rounding up.
		cost = (cost*(10000+m.cfg.SlippageBufferBps) + 9999) / 10000
	}
	if balance.Cash < cost {
		return domain.ErrInsufficientFunds
	}
	return nil
}

// estimateMarketBuyPrice returns the per-unit estimate for a market
// buy: the current ask, falling back to the last trade price, falling
// back to the best resting sell. No price at all means no liquidity.
func (m *Matcher) estimateMarketBuyPrice(symbol string, book *Book) (int64, error) {
	if q, err := m.quotes.Get(symbol); err == nil {
		if q.Ask > 0 {
			return q.Ask, nil
		}
		if q.Last > 0 {
			return q.Last, nil
		}
	}
	if best, ok := book.BestSell(); ok {
		return best.Price, nil
	}
	return 0, domain.ErrNoLiquidity
}

// settleBookFill commits one fill between the incoming order and a
// resting order: one atomic ledger append per account (cash delta +
// position delta), maker first. If the taker's append cannot commit,
// the maker's entries are reversed so no half-applied fill survives.
func (m *Matcher) settleBookFill(taker, maker *domain.Order, qty, price int64) (*domain.Fill, *domain.Fill, error) {
	executedAt := time.Now()

	takerFill := &domain.Fill{
		FillID:     uuid.New().String(),
		OrderID:    taker.OrderID,
		AccountID:  taker.AccountID,
		Symbol:     taker.Symbol,
		Side:       taker.Side,
		Price:      price,
		Quantity:   qty,
		Source:     domain.FillSourceBook,
		ExecutedAt: executedAt,
	}
	makerFill := &domain.Fill{
		FillID:     uuid.New().String(),
		OrderID:    maker.OrderID,
		AccountID:  maker.AccountID,
		Symbol:     maker.Symbol,
		Side:       maker.Side,
		Price:      price,
		Quantity:   qty,
		Source:     domain.FillSourceBook,
		ExecutedAt: executedAt,
	}

	makerEntries := fillEntries(makerFill)
	if err := m.appendWithRetry(maker.AccountID, makerEntries); err != nil {
		return nil, nil, err
	}

	if err := m.appendWithRetry(taker.AccountID, fillEntries(takerFill)); err != nil {
		// Compensate the maker leg with reversing entries; the ledger
		// is append-only, so the reversal is itself a transaction.
		if _, revErr := m.ledger.Append(maker.AccountID, -1, reverseEntries(makerEntries)); revErr != nil {
			m.logger.Error("maker leg reversal failed",
				slog.String("fill_id", makerFill.FillID),
				slog.String("account_id", maker.AccountID),
				slog.String("error", revErr.Error()),
			)
		}
		return nil, nil, err
	}

	m.fills.Append(takerFill)
	m.fills.Append(makerFill)
	return takerFill, makerFill, nil
}

// settleQuoteFill commits a market order's remainder against the quote
// cache: sells hit the bid, buys lift the ask, either falling back to
// the last price.
func (m *Matcher) settleQuoteFill(order *domain.Order) (*domain.Fill, error) {
	q, err := m.quotes.Get(order.Symbol)
	if err != nil {
		return nil, err
	}

	var price int64
	if order.Side == domain.OrderSideBuy {
		price = q.Ask
	} else {
		price = q.Bid
	}
	if price == 0 {
		price = q.Last
	}
	if price == 0 {
		return nil, domain.ErrNoLiquidity
	}

	fill := &domain.Fill{
		FillID:     uuid.New().String(),
		OrderID:    order.OrderID,
		AccountID:  order.AccountID,
		Symbol:     order.Symbol,
		Side:       order.Side,
		Price:      price,
		Quantity:   order.RemainingQuantity,
		Source:     domain.FillSourceQuote,
		ExecutedAt: time.Now(),
	}

	if err := m.appendWithRetry(order.AccountID, fillEntries(fill)); err != nil {
		return nil, err
	}

	m.fills.Append(fill)
	return fill, nil
}

// appendWithRetry reads the account's current head sequence and
// commits entries through appendFrom.
func (m *Matcher) appendWithRetry(accountID string, entries []domain.LedgerEntry) error {
	head, err := m.ledger.HeadSeq(accountID)
	if err != nil {
		return err
	}
	return m.appendFrom(accountID, head, entries)
}

// appendFrom commits entries with the optimistic sequence check,
// starting from the caller's view of the head sequence, refreshing it
// and retrying on conflict up to the configured bound. Conflicts come
// from the same account trading concurrently on other instruments.
func (m *Matcher) appendFrom(accountID string, head int64, entries []domain.LedgerEntry) error {
	var err error
	for attempt := 0; attempt < m.cfg.LedgerRetries; attempt++ {
		if attempt > 0 {
			if head, err = m.ledger.HeadSeq(accountID); err != nil {
				return err
			}
		}
		if _, err = m.ledger.Append(accountID, head, entries); err != domain.ErrConflict {
			return err
		}
	}
	return err
}

// fillEntries builds the two ledger entries (cash delta + position
// delta) that one fill applies to its account.
func fillEntries(f *domain.Fill) []domain.LedgerEntry {
	cashDelta := f.Price * f.Quantity
	posDelta := f.Quantity
	if f.Side == domain.OrderSideBuy {
		cashDelta = -cashDelta
	} else {
		posDelta = -posDelta
	}
	return []domain.LedgerEntry{
		{
			Type:      domain.EntryTypeCash,
			Delta:     cashDelta,
			FillID:    f.FillID,
			CreatedAt: f.ExecutedAt,
		},
		{
			Type:      domain.EntryTypePosition,
			Symbol:    f.Symbol,
			Delta:     posDelta,
			Price:     f.Price,
			FillID:    f.FillID,
			CreatedAt: f.ExecutedAt,
		},
	}
}

// reverseEntries negates a batch's deltas for compensation.
func reverseEntries(entries []domain.LedgerEntry) []domain.LedgerEntry {
	reversed := make([]domain.LedgerEntry, len(entries))
	for i, e := range entries {
		e.Delta = -e.Delta
		e.Seq = 0
		reversed[i] = e
	}
	return reversed
}

// applyFill records a fill on its order and advances the order's state
// machine: pending → partially_filled → filled. The transition runs
// under the order store's lock so concurrent readers snapshot either
// the state before the fill or after it, never between.
func (m *Matcher) applyFill(order *domain.Order, fill *domain.Fill) {
	m.orders.Mutate(order, func(o *domain.Order) {
		o.RemainingQuantity -= fill.Quantity
		o.FilledQuantity += fill.Quantity
		o.Fills = append(o.Fills, fill)
		if o.RemainingQuantity == 0 {
			o.Status = domain.OrderStatusFilled
		} else {
			o.Status = domain.OrderStatusPartiallyFilled
		}
	})
	m.logger.Debug("fill executed",
		slog.String("fill_id", fill.FillID),
		slog.String("order_id", order.OrderID),
		slog.Int64("price", fill.Price),
		slog.Int64("quantity", fill.Quantity),
		slog.String("source", string(fill.Source)),
	)
}

// reject transitions an order to the terminal rejected state without
// touching the book or the ledger.
func (m *Matcher) reject(order *domain.Order, reason string) {
	m.orders.Mutate(order, func(o *domain.Order) {
		o.RejectedQuantity = o.RemainingQuantity
		o.RemainingQuantity = 0
		o.Status = domain.OrderStatusRejected
		o.RejectReason = reason
	})
	m.logger.Info("order rejected",
		slog.String("order_id", order.OrderID),
		slog.String("reason", reason),
	)
}

// Cancel removes a resting order from its book. A cancel that races an
// in-flight match is resolved by the instrument lock: whichever
// acquires it first wins, and the loser observes the outcome.
//
// Canceling an order already in a terminal state is an idempotent
// no-op that returns the prior terminal result; only an unknown order
// id is an error. An order caught between submission and its matching
// pass is not resting yet: the cancel leaves it untouched, and the
// returned status, still pending, tells the caller the cancel did not
// take effect.
func (m *Matcher) Cancel(orderID string) (*domain.Order, error) {
	order, err := m.orders.Resolve(orderID)
	if err != nil {
		return nil, err
	}

	book := m.books.GetOrCreate(order.Symbol)
	if err := book.Acquire(m.cfg.LockTimeout); err != nil {
		return nil, err
	}
	defer book.Release()

	if order.Status.Terminal() {
		return order.Clone(), nil
	}

	if !book.Remove(order.OrderID) {
		// Non-terminal but not resting means the submission has not
		// reached its matching pass yet. Nothing to undo.
		return order.Clone(), nil
	}

	now := time.Now()
	m.orders.Mutate(order, func(o *domain.Order) {
		o.CanceledQuantity = o.RemainingQuantity
		o.RemainingQuantity = 0
		o.Status = domain.OrderStatusCanceled
		o.CanceledAt = &now
	})

	m.logger.Info("order canceled",
		slog.String("order_id", order.OrderID),
		slog.Int64("canceled_quantity", order.CanceledQuantity),
	)
	return order.Clone(), nil
}

// SimulateMarketOrder performs a read-only walk of the opposite side
// of the book to estimate the result of a market order without placing
// it. Used by the market-data quote endpoint.
func (m *Matcher) SimulateMarketOrder(symbol string, side domain.OrderSide, quantity int64) (*QuoteResult, error) {
	book := m.books.GetOrCreate(symbol)
	if err := book.Acquire(m.cfg.LockTimeout); err != nil {
		return nil, err
	}
	defer book.Release()

	result := &QuoteResult{
		PriceLevels: make([]QuotePriceLevel, 0),
	}

	remaining := quantity
	var totalCost int64

	walkFn := func(entry BookEntry) bool {
		if remaining <= 0 {
			return false
		}
		fillQty := entry.Order.RemainingQuantity
		if fillQty > remaining {
			fillQty = remaining
		}
		totalCost += entry.Price * fillQty
		result.QuantityAvailable += fillQty
		remaining -= fillQty

		if len(result.PriceLevels) > 0 && result.PriceLevels[len(result.PriceLevels)-1].Price == entry.Price {
			result.PriceLevels[len(result.PriceLevels)-1].Quantity += fillQty
		} else {
			result.PriceLevels = append(result.PriceLevels, QuotePriceLevel{
				Price:    entry.Price,
				Quantity: fillQty,
			})
		}
		return true
	}

	if side == domain.OrderSideBuy {
		book.WalkSells(walkFn)
	} else {
		book.WalkBuys(walkFn)
	}

	if result.QuantityAvailable > 0 {
		avgPrice := totalCost / result.QuantityAvailable
		result.EstimatedAvgPrice = &avgPrice
		result.EstimatedTotal = &totalCost
	}
	result.FullyFillable = result.QuantityAvailable >= quantity

	return result, nil
}

// QuotePriceLevel represents a single price level in a quote simulation.
type QuotePriceLevel struct {
	Price    int64
	Quantity int64
}

// QuoteResult holds the result of a market order simulation.
type QuoteResult struct {
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64 // nil when no liquidity
	EstimatedTotal    *int64 // nil when no liquidity
	PriceLevels       []QuotePriceLevel
}

// Depth returns aggregated price levels for both sides of a symbol's
// book under the instrument lock.
func (m *Matcher) Depth(symbol string, n int) ([]PriceLevel, []PriceLevel, error) {
	book := m.books.GetOrCreate(symbol)
	if err := book.Acquire(m.cfg.LockTimeout); err != nil {
		return nil, nil, err
	}
	defer book.Release()
	return book.TopBuys(n), book.TopSells(n), nil
}
