package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/go-chi/chi/v5"
)

// MarketHandler handles HTTP requests for instrument and market data
// endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// registerInstrumentRequest is the JSON request body for POST /instruments.
type registerInstrumentRequest struct {
	Symbol   string  `json:"symbol"`
	TickSize float64 `json:"tick_size"`
	LotSize  int64   `json:"lot_size"`
}

// instrumentResponse is the JSON representation of an instrument.
type instrumentResponse struct {
	Symbol   string  `json:"symbol"`
	TickSize float64 `json:"tick_size"`
	LotSize  int64   `json:"lot_size"`
}

func buildInstrumentResponse(inst domain.Instrument) instrumentResponse {
	return instrumentResponse{
		Symbol:   inst.Symbol,
		TickSize: domain.CentsToDollars(inst.TickSize),
		LotSize:  inst.LotSize,
	}
}

// RegisterInstrument handles POST /instruments.
func (h *MarketHandler) RegisterInstrument(w http.ResponseWriter, r *http.Request) {
	var req registerInstrumentRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	inst, err := h.marketSvc.RegisterInstrument(service.RegisterInstrumentRequest{
		Symbol:   req.Symbol,
		TickSize: req.TickSize,
		LotSize:  req.LotSize,
	})
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildInstrumentResponse(inst))
}

// ListInstruments handles GET /instruments.
func (h *MarketHandler) ListInstruments(w http.ResponseWriter, r *http.Request) {
	instruments := h.marketSvc.ListInstruments()

	resp := make([]instrumentResponse, 0, len(instruments))
	for _, inst := range instruments {
		resp = append(resp, buildInstrumentResponse(inst))
	}

	WriteJSON(w, http.StatusOK, resp)
}

// quoteResponse is the JSON response for GET /instruments/{symbol}/quote.
type quoteResponse struct {
	Symbol   string   `json:"symbol"`
	Bid      *float64 `json:"bid"`
	Ask      *float64 `json:"ask"`
	Last     float64  `json:"last"`
	FeedTime string   `json:"feed_time"`
}

// GetQuote handles GET /instruments/{symbol}/quote.
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	view, err := h.marketSvc.GetQuote(symbol)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	resp := quoteResponse{
		Symbol:   view.Symbol,
		Last:     domain.CentsToDollars(view.Last),
		FeedTime: view.FeedTime.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if view.Bid != nil {
		b := domain.CentsToDollars(*view.Bid)
		resp.Bid = &b
	}
	if view.Ask != nil {
		a := domain.CentsToDollars(*view.Ask)
		resp.Ask = &a
	}

	WriteJSON(w, http.StatusOK, resp)
}

// pushQuoteRequest is the JSON request body for POST /quotes.
type pushQuoteRequest struct {
	Symbol    string  `json:"symbol"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Last      float64 `json:"last"`
	Timestamp string  `json:"timestamp"`
}

// PushQuote handles POST /quotes.
func (h *MarketHandler) PushQuote(w http.ResponseWriter, r *http.Request) {
	var req pushQuoteRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	feedTime, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "timestamp must be a valid RFC3339 timestamp")
		return
	}

	q := domain.Quote{Symbol: req.Symbol, FeedTime: feedTime}
	if q.Bid, err = domain.DollarsToCents(req.Bid); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "bid must have at most 2 decimal places")
		return
	}
	if q.Ask, err = domain.DollarsToCents(req.Ask); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "ask must have at most 2 decimal places")
		return
	}
	if q.Last, err = domain.DollarsToCents(req.Last); err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "last must have at most 2 decimal places")
		return
	}

	applied, err := h.marketSvc.PushQuote(q)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

// priceLevelResponse is an aggregated book level in the JSON response.
type priceLevelResponse struct {
	Price         float64 `json:"price"`
	TotalQuantity int64   `json:"total_quantity"`
	OrderCount    int     `json:"order_count"`
}

// bookResponse is the JSON response for GET /instruments/{symbol}/book.
type bookResponse struct {
	Symbol     string               `json:"symbol"`
	Buys       []priceLevelResponse `json:"buys"`
	Sells      []priceLevelResponse `json:"sells"`
	Spread     *float64             `json:"spread"`
	SnapshotAt string               `json:"snapshot_at"`
}

// GetBook handles GET /instruments/{symbol}/book.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	depth := 10
	if d := r.URL.Query().Get("depth"); d != "" {
		var err error
		depth, err = strconv.Atoi(d)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be a valid integer")
			return
		}
	}

	view, err := h.marketSvc.GetBook(symbol, depth)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	resp := bookResponse{
		Symbol:     view.Symbol,
		Buys:       make([]priceLevelResponse, 0, len(view.Buys)),
		Sells:      make([]priceLevelResponse, 0, len(view.Sells)),
		SnapshotAt: view.SnapshotAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	for _, lvl := range view.Buys {
		resp.Buys = append(resp.Buys, priceLevelResponse{
			Price:         domain.CentsToDollars(lvl.Price),
			TotalQuantity: lvl.TotalQuantity,
			OrderCount:    lvl.OrderCount,
		})
	}
	for _, lvl := range view.Sells {
		resp.Sells = append(resp.Sells, priceLevelResponse{
			Price:         domain.CentsToDollars(lvl.Price),
			TotalQuantity: lvl.TotalQuantity,
			OrderCount:    lvl.OrderCount,
		})
	}
	if view.Spread != nil {
		s := domain.CentsToDollars(*view.Spread)
		resp.Spread = &s
	}

	WriteJSON(w, http.StatusOK, resp)
}

// simulationLevelResponse is one consumed price level in a simulation.
type simulationLevelResponse struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// simulationResponse is the JSON response for GET /instruments/{symbol}/simulate.
type simulationResponse struct {
	Symbol            string                    `json:"symbol"`
	Side              string                    `json:"side"`
	QuantityRequested int64                     `json:"quantity_requested"`
	QuantityAvailable int64                     `json:"quantity_available"`
	FullyFillable     bool                      `json:"fully_fillable"`
	EstimatedAvgPrice *float64                  `json:"estimated_avg_price"`
	EstimatedTotal    *float64                  `json:"estimated_total"`
	PriceLevels       []simulationLevelResponse `json:"price_levels"`
	QuotedAt          string                    `json:"quoted_at"`
}

// Simulate handles GET /instruments/{symbol}/simulate.
func (h *MarketHandler) Simulate(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	side := domain.OrderSide(r.URL.Query().Get("side"))

	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "quantity must be a valid integer")
		return
	}

	view, err := h.marketSvc.Simulate(symbol, side, quantity)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	resp := simulationResponse{
		Symbol:            view.Symbol,
		Side:              string(view.Side),
		QuantityRequested: view.QuantityRequested,
		QuantityAvailable: view.Result.QuantityAvailable,
		FullyFillable:     view.Result.FullyFillable,
		PriceLevels:       make([]simulationLevelResponse, 0, len(view.Result.PriceLevels)),
		QuotedAt:          view.QuotedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if view.Result.EstimatedAvgPrice != nil {
		p := domain.CentsToDollars(*view.Result.EstimatedAvgPrice)
		resp.EstimatedAvgPrice = &p
	}
	if view.Result.EstimatedTotal != nil {
		t := domain.CentsToDollars(*view.Result.EstimatedTotal)
		resp.EstimatedTotal = &t
	}
	for _, lvl := range view.Result.PriceLevels {
		resp.PriceLevels = append(resp.PriceLevels, simulationLevelResponse{
			Price:    domain.CentsToDollars(lvl.Price),
			Quantity: lvl.Quantity,
		})
	}

	WriteJSON(w, http.StatusOK, resp)
}
