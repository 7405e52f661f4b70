package domain

import "time"

// FillSource records where a fill's liquidity came from.
type FillSource string

const (
	// FillSourceBook means the fill executed against a resting order.
	FillSourceBook FillSource = "book"
	// FillSourceQuote means a market order executed against the quote
	// feed because no resting liquidity was available.
	FillSourceQuote FillSource = "quote"
)

// Fill represents a single matched trade event. It references exactly
// one order and is immutable once created; it is the atomic unit that
// mutates both position and cash through the ledger.
type Fill struct {
	FillID     string
	OrderID    string
	AccountID  string
	Symbol     string
	Side       OrderSide
	Price      int64 // cents
	Quantity   int64
	Source     FillSource
	ExecutedAt time.Time
}
