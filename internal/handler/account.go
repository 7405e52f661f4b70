package handler

import (
	"net/http"
	"strconv"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/go-chi/chi/v5"
)

// AccountHandler handles HTTP requests for account endpoints.
type AccountHandler struct {
	accountSvc   *service.AccountService
	orderSvc     *service.OrderService
	portfolioSvc *service.PortfolioService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(
	accountSvc *service.AccountService,
	orderSvc *service.OrderService,
	portfolioSvc *service.PortfolioService,
) *AccountHandler {
	return &AccountHandler{
		accountSvc:   accountSvc,
		orderSvc:     orderSvc,
		portfolioSvc: portfolioSvc,
	}
}

// createAccountRequest is the JSON request body for POST /accounts.
type createAccountRequest struct {
	AccountID   string   `json:"account_id"`
	InitialCash *float64 `json:"initial_cash"`
}

// accountResponse is the JSON response for account creation/lookup.
type accountResponse struct {
	AccountID string `json:"account_id"`
	CreatedAt string `json:"created_at"`
}

// Create handles POST /accounts.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	account, err := h.accountSvc.Create(service.CreateAccountRequest{
		AccountID:   req.AccountID,
		InitialCash: req.InitialCash,
	})
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, accountResponse{
		AccountID: account.AccountID,
		CreatedAt: account.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Get handles GET /accounts/{account_id}.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	account, err := h.accountSvc.Get(accountID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, accountResponse{
		AccountID: account.AccountID,
		CreatedAt: account.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// positionResponse is a single position in the portfolio response.
type positionResponse struct {
	Symbol        string  `json:"symbol"`
	Quantity      int64   `json:"quantity"`
	AvgCost       string  `json:"avg_cost"`
	LastPrice     *string `json:"last_price"`
	UnrealizedPnL *string `json:"unrealized_pnl"`
}

// portfolioResponse is the JSON response for GET /accounts/{id}/portfolio.
type portfolioResponse struct {
	AccountID string             `json:"account_id"`
	AsOfSeq   int64              `json:"as_of_seq"`
	Cash      float64            `json:"cash"`
	Positions []positionResponse `json:"positions"`
}

// GetPortfolio handles GET /accounts/{account_id}/portfolio.
func (h *AccountHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	portfolio, err := h.portfolioSvc.GetPortfolio(accountID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	positions := make([]positionResponse, 0, len(portfolio.Positions))
	for _, p := range portfolio.Positions {
		pr := positionResponse{
			Symbol:   p.Symbol,
			Quantity: p.Quantity,
			AvgCost:  p.AvgCost.StringFixed(4),
		}
		if p.LastPrice != nil {
			s := p.LastPrice.StringFixed(2)
			pr.LastPrice = &s
		}
		if p.UnrealizedPnL != nil {
			s := p.UnrealizedPnL.StringFixed(4)
			pr.UnrealizedPnL = &s
		}
		positions = append(positions, pr)
	}

	WriteJSON(w, http.StatusOK, portfolioResponse{
		AccountID: portfolio.AccountID,
		AsOfSeq:   portfolio.Seq,
		Cash:      domain.CentsToDollars(portfolio.Cash),
		Positions: positions,
	})
}

// ledgerEntryResponse is a single entry in the ledger response.
type ledgerEntryResponse struct {
	Seq       int64    `json:"seq"`
	Type      string   `json:"type"`
	Symbol    *string  `json:"symbol"`
	Delta     int64    `json:"delta"`
	Price     *float64 `json:"price"`
	FillID    *string  `json:"fill_id"`
	CreatedAt string   `json:"created_at"`
}

// GetLedger handles GET /accounts/{account_id}/ledger.
func (h *AccountHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	entries, err := h.portfolioSvc.GetLedger(accountID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	resp := make([]ledgerEntryResponse, 0, len(entries))
	for _, e := range entries {
		er := ledgerEntryResponse{
			Seq:       e.Seq,
			Type:      string(e.Type),
			Delta:     e.Delta,
			CreatedAt: e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if e.Symbol != "" {
			s := e.Symbol
			er.Symbol = &s
		}
		if e.Type == domain.EntryTypePosition {
			p := domain.CentsToDollars(e.Price)
			er.Price = &p
		}
		if e.FillID != "" {
			f := e.FillID
			er.FillID = &f
		}
		resp = append(resp, er)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// orderListResponse is the JSON response for GET /accounts/{id}/orders.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Page   int             `json:"page"`
	Limit  int             `json:"limit"`
}

// ListOrders handles GET /accounts/{account_id}/orders.
func (h *AccountHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "account_id")

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		var err error
		page, err = strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be a valid integer")
			return
		}
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		var err error
		limit, err = strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	var status *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}

	orders, total, err := h.orderSvc.ListOrders(accountID, status, page, limit)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	resp := orderListResponse{
		Orders: make([]orderResponse, 0, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, buildOrderResponse(o))
	}

	WriteJSON(w, http.StatusOK, resp)
}
