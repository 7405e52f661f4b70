package handler

import (
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/service"
	"github.com/go-chi/chi/v5"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// submitOrderRequest is the JSON request body for POST /orders.
type submitOrderRequest struct {
	Type           string   `json:"type"`
	AccountID      string   `json:"account_id"`
	IdempotencyKey string   `json:"idempotency_key"`
	Side           string   `json:"side"`
	Symbol         string   `json:"symbol"`
	Price          *float64 `json:"price"`
	Quantity       int64    `json:"quantity"`
}

// orderResponse is the JSON representation of an order.
// Nullable fields use pointers and are always present.
type orderResponse struct {
	OrderID           string         `json:"order_id"`
	IdempotencyKey    string         `json:"idempotency_key"`
	AccountID         string         `json:"account_id"`
	Type              string         `json:"type"`
	Side              string         `json:"side"`
	Symbol            string         `json:"symbol"`
	Price             *float64       `json:"price"` // nil for market orders
	Quantity          int64          `json:"quantity"`
	FilledQuantity    int64          `json:"filled_quantity"`
	RemainingQuantity int64          `json:"remaining_quantity"`
	CanceledQuantity  int64          `json:"canceled_quantity"`
	RejectedQuantity  int64          `json:"rejected_quantity"`
	Status            string         `json:"status"`
	RejectReason      *string        `json:"reject_reason"`
	CreatedAt         string         `json:"created_at"`
	CanceledAt        *string        `json:"canceled_at"`
	AveragePrice      *float64       `json:"average_price"`
	Fills             []fillResponse `json:"fills"`
}

// fillResponse is a single fill in the order response.
type fillResponse struct {
	FillID     string  `json:"fill_id"`
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	Source     string  `json:"source"`
	ExecutedAt string  `json:"executed_at"`
}

// buildOrderResponse converts a domain order into its JSON form.
func buildOrderResponse(order *domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:           order.OrderID,
		IdempotencyKey:    order.IdempotencyKey,
		AccountID:         order.AccountID,
		Type:              string(order.Type),
		Side:              string(order.Side),
		Symbol:            order.Symbol,
		Quantity:          order.Quantity,
		FilledQuantity:    order.FilledQuantity,
		RemainingQuantity: order.RemainingQuantity,
		CanceledQuantity:  order.CanceledQuantity,
		RejectedQuantity:  order.RejectedQuantity,
		Status:            string(order.Status),
		CreatedAt:         order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Fills:             make([]fillResponse, 0, len(order.Fills)),
	}

	if order.Type == domain.OrderTypeLimit {
		p := domain.CentsToDollars(order.Price)
		resp.Price = &p
	}
	if order.RejectReason != "" {
		r := order.RejectReason
		resp.RejectReason = &r
	}
	if order.CanceledAt != nil {
		s := order.CanceledAt.UTC().Format("2006-01-02T15:04:05Z")
		resp.CanceledAt = &s
	}
	if avg, ok := order.AveragePrice(); ok {
		v := domain.CentsToDollars(avg)
		resp.AveragePrice = &v
	}
	for _, f := range order.Fills {
		resp.Fills = append(resp.Fills, fillResponse{
			FillID:     f.FillID,
			Price:      domain.CentsToDollars(f.Price),
			Quantity:   f.Quantity,
			Source:     string(f.Source),
			ExecutedAt: f.ExecutedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return resp
}

// SubmitOrder handles POST /orders.
func (h *OrderHandler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	order, err := h.orderSvc.SubmitOrder(service.SubmitOrderRequest{
		Type:           domain.OrderType(req.Type),
		AccountID:      req.AccountID,
		IdempotencyKey: req.IdempotencyKey,
		Side:           domain.OrderSide(req.Side),
		Symbol:         req.Symbol,
		Price:          req.Price,
		Quantity:       req.Quantity,
	})
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.GetOrder(orderID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.CancelOrder(orderID)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}
