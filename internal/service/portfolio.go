package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/quote"
	"github.com/efreitasn/papertrade/internal/store"
)

// PositionView is one instrument's holding with derived valuation.
type PositionView struct {
	Symbol        string
	Quantity      int64
	AvgCost       decimal.Decimal
	LastPrice     *decimal.Decimal // nil when no quote is known
	UnrealizedPnL *decimal.Decimal // nil when no quote is known
}

// Portfolio is the account's full state as of Seq.
type Portfolio struct {
	AccountID string
	Seq       int64
	Cash      int64 // cents
	Positions []PositionView
}

// PortfolioService derives current positions, cash, and unrealized
// P&L from the ledger and the quote cache. Strictly read-only: it
// never writes to the ledger.
type PortfolioService struct {
	ledger *store.LedgerStore
	quotes *quote.Cache
}

// NewPortfolioService creates a new PortfolioService.
func NewPortfolioService(ledger *store.LedgerStore, quotes *quote.Cache) *PortfolioService {
	return &PortfolioService{
		ledger: ledger,
		quotes: quotes,
	}
}

// GetPortfolio returns the account's cash and positions as of the
// most recent committed ledger append (read-your-writes). Unrealized
// P&L per position is quantity × (last − avg cost), computed in
// decimal; positions with no known quote carry a nil P&L rather than
// a guessed one.
func (s *PortfolioService) GetPortfolio(accountID string) (*Portfolio, error) {
	balance, err := s.ledger.Balance(accountID)
	if err != nil {
		return nil, err
	}

	positions := make([]PositionView, 0, len(balance.Positions))
	for _, pos := range balance.Positions {
		if pos.Quantity == 0 {
			continue
		}
		view := PositionView{
			Symbol:   pos.Symbol,
			Quantity: pos.Quantity,
			AvgCost:  pos.AvgCost,
		}
		if q, err := s.quotes.Get(pos.Symbol); err == nil {
			last := domain.CentsToDecimal(q.Last)
			pnl := decimal.NewFromInt(pos.Quantity).Mul(last.Sub(pos.AvgCost))
			view.LastPrice = &last
			view.UnrealizedPnL = &pnl
		}
		positions = append(positions, view)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})

	return &Portfolio{
		AccountID: accountID,
		Seq:       balance.Seq,
		Cash:      balance.Cash,
		Positions: positions,
	}, nil
}

// GetLedger returns the account's full entry history in sequence
// order, for reconciliation against the derived balances.
func (s *PortfolioService) GetLedger(accountID string) ([]domain.LedgerEntry, error) {
	return s.ledger.Entries(accountID)
}
