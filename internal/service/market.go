package service

import (
	"fmt"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/quote"
)

// RegisterInstrumentRequest represents the input for instrument
// registration.
type RegisterInstrumentRequest struct {
	Symbol   string
	TickSize float64 // dollars
	LotSize  int64
}

// QuoteView is the latest feed quote for an instrument.
type QuoteView struct {
	Symbol   string
	Bid      *int64 // nil when the feed doesn't carry the side
	Ask      *int64
	Last     int64
	FeedTime time.Time
}

// BookView is a depth snapshot of one instrument's book.
type BookView struct {
	Symbol     string
	Buys       []engine.PriceLevel
	Sells      []engine.PriceLevel
	Spread     *int64 // nil if either side empty
	SnapshotAt time.Time
}

// SimulationView is the result of a read-only market order simulation.
type SimulationView struct {
	Symbol            string
	Side              domain.OrderSide
	QuantityRequested int64
	Result            *engine.QuoteResult
	QuotedAt          time.Time
}

// MarketService serves instrument reference data and market data:
// feed quotes, book depth, and fill simulations.
type MarketService struct {
	instruments *domain.InstrumentRegistry
	quotes      *quote.Cache
	matcher     *engine.Matcher
}

// NewMarketService creates a new MarketService.
func NewMarketService(instruments *domain.InstrumentRegistry, quotes *quote.Cache, matcher *engine.Matcher) *MarketService {
	return &MarketService{
		instruments: instruments,
		quotes:      quotes,
		matcher:     matcher,
	}
}

// RegisterInstrument validates and registers reference data for a
// symbol. Reference data is immutable: re-registering an existing
// symbol fails validation rather than mutating it.
func (s *MarketService) RegisterInstrument(req RegisterInstrumentRequest) (domain.Instrument, error) {
	if !symbolRegex.MatchString(req.Symbol) {
		return domain.Instrument{}, &domain.ValidationError{
			Message: "symbol must match ^[A-Z]{1,10}$",
		}
	}
	tickCents, err := domain.DollarsToCents(req.TickSize)
	if err != nil || tickCents <= 0 {
		return domain.Instrument{}, &domain.ValidationError{
			Message: "tick_size must be a positive amount with at most 2 decimal places",
		}
	}
	if req.LotSize <= 0 {
		return domain.Instrument{}, &domain.ValidationError{
			Message: "lot_size must be > 0",
		}
	}

	inst := domain.Instrument{
		Symbol:   req.Symbol,
		TickSize: tickCents,
		LotSize:  req.LotSize,
	}
	if !s.instruments.Register(inst) {
		return domain.Instrument{}, &domain.ValidationError{
			Message: fmt.Sprintf("instrument %s is already registered", req.Symbol),
		}
	}
	return inst, nil
}

// ListInstruments returns all registered instruments.
func (s *MarketService) ListInstruments() []domain.Instrument {
	return s.instruments.List()
}

// GetQuote returns the latest feed quote for a registered instrument.
func (s *MarketService) GetQuote(symbol string) (*QuoteView, error) {
	if !s.instruments.Exists(symbol) {
		return nil, domain.ErrInvalidInstrument
	}
	q, err := s.quotes.Get(symbol)
	if err != nil {
		return nil, err
	}

	view := &QuoteView{
		Symbol:   q.Symbol,
		Last:     q.Last,
		FeedTime: q.FeedTime,
	}
	if q.Bid > 0 {
		view.Bid = &q.Bid
	}
	if q.Ask > 0 {
		view.Ask = &q.Ask
	}
	return view, nil
}

// PushQuote applies an externally pushed quote to the cache (the HTTP
// flavor of the feed collaborator). Returns true when the quote was
// applied, false when discarded as stale.
func (s *MarketService) PushQuote(q domain.Quote) (bool, error) {
	if !s.instruments.Exists(q.Symbol) {
		return false, domain.ErrInvalidInstrument
	}
	if q.Last <= 0 {
		return false, &domain.ValidationError{Message: "last price must be > 0"}
	}
	if q.FeedTime.IsZero() {
		return false, &domain.ValidationError{Message: "feed timestamp is required"}
	}
	return s.quotes.Update(q), nil
}

// GetBook returns a depth snapshot with up to depth aggregated levels
// per side.
func (s *MarketService) GetBook(symbol string, depth int) (*BookView, error) {
	if !s.instruments.Exists(symbol) {
		return nil, domain.ErrInvalidInstrument
	}
	if depth < 1 || depth > 50 {
		return nil, &domain.ValidationError{
			Message: "depth must be between 1 and 50",
		}
	}

	buys, sells, err := s.matcher.Depth(symbol, depth)
	if err != nil {
		return nil, err
	}

	view := &BookView{
		Symbol:     symbol,
		Buys:       buys,
		Sells:      sells,
		SnapshotAt: time.Now(),
	}
	if len(buys) > 0 && len(sells) > 0 {
		spread := sells[0].Price - buys[0].Price
		view.Spread = &spread
	}
	return view, nil
}

// Simulate estimates how a market order of the given size would fill
// against the current book, without placing it.
func (s *MarketService) Simulate(symbol string, side domain.OrderSide, quantity int64) (*SimulationView, error) {
	if !s.instruments.Exists(symbol) {
		return nil, domain.ErrInvalidInstrument
	}
	if side != domain.OrderSideBuy && side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	result, err := s.matcher.SimulateMarketOrder(symbol, side, quantity)
	if err != nil {
		return nil, err
	}
	return &SimulationView{
		Symbol:            symbol,
		Side:              side,
		QuantityRequested: quantity,
		Result:            result,
		QuotedAt:          time.Now(),
	}, nil
}
