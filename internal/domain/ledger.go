package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// EntryType distinguishes cash deltas from position deltas.
type EntryType string

const (
	EntryTypeCash     EntryType = "cash"
	EntryTypePosition EntryType = "position"
)

// LedgerEntry is one append-only balance delta for an account. Entries
// are never mutated or deleted; the sequence number is assigned by the
// ledger store and increases by one per entry within an account.
type LedgerEntry struct {
	AccountID string
	Seq       int64
	Type      EntryType
	Symbol    string // empty for cash entries
	Delta     int64  // cents for cash, signed units for position
	Price     int64  // execution price in cents for position entries
	FillID    string // empty for deposits
	CreatedAt time.Time
}

// Position is the running holding in one instrument for an account,
// maintained incrementally from position entries. AvgCost is the
// quantity-weighted cost basis per unit in decimal dollars.
type Position struct {
	Symbol   string
	Quantity int64
	AvgCost  decimal.Decimal
}

// Balance is an account's materialized ledger state as of Seq.
type Balance struct {
	AccountID string
	Seq       int64
	Cash      int64 // cents
	Positions map[string]Position
}

// NewBalance creates an empty balance for an account.
func NewBalance(accountID string) *Balance {
	return &Balance{
		AccountID: accountID,
		Positions: make(map[string]Position),
	}
}

// Clone returns a deep copy so a tentative apply never leaks into the
// committed state.
func (b *Balance) Clone() *Balance {
	cp := &Balance{
		AccountID: b.AccountID,
		Seq:       b.Seq,
		Cash:      b.Cash,
		Positions: make(map[string]Position, len(b.Positions)),
	}
	for sym, p := range b.Positions {
		cp.Positions[sym] = p
	}
	return cp
}

// PositionQuantity returns the signed quantity held in symbol, 0 when
// no position exists.
func (b *Balance) PositionQuantity(symbol string) int64 {
	return b.Positions[symbol].Quantity
}

// Apply folds one ledger entry into the balance. Cash may never go
// negative; a violating entry fails without any mutation.
//
// Cost basis rule: a delta that grows the position in its current
// direction folds into a quantity-weighted average; a delta that
// shrinks it realizes P&L and leaves the basis untouched; a delta that
// crosses zero restarts the basis at the entry's price; a position
// returning exactly to zero resets its basis.
func (b *Balance) Apply(e LedgerEntry) error {
	switch e.Type {
	case EntryTypeCash:
		next := b.Cash + e.Delta
		if next < 0 {
			return ErrInsufficientFunds
		}
		b.Cash = next
	case EntryTypePosition:
		pos := b.Positions[e.Symbol]
		pos.Symbol = e.Symbol
		oldQty := pos.Quantity
		newQty := oldQty + e.Delta

		price := CentsToDecimal(e.Price)
		switch {
		case newQty == 0:
			pos.AvgCost = decimal.Zero
		case oldQty == 0 || (oldQty > 0) != (newQty > 0):
			// Opening or crossing through zero: basis restarts.
			pos.AvgCost = price
		case (e.Delta > 0) == (oldQty > 0):
			// Growing the position: weight the basis by quantity.
			oldAbs := decimal.NewFromInt(abs(oldQty))
			deltaAbs := decimal.NewFromInt(abs(e.Delta))
			newAbs := decimal.NewFromInt(abs(newQty))
			pos.AvgCost = pos.AvgCost.Mul(oldAbs).Add(price.Mul(deltaAbs)).Div(newAbs)
			// Shrinking: realized P&L, basis unchanged.
		}
		pos.Quantity = newQty
		b.Positions[e.Symbol] = pos
	default:
		return fmt.Errorf("unknown ledger entry type: %s", e.Type)
	}
	b.Seq = e.Seq
	return nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
