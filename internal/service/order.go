package service

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/store"
)

var (
	symbolRegex  = regexp.MustCompile(`^[A-Z]{1,10}$`)
	idemKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:         true,
	domain.OrderStatusPartiallyFilled: true,
	domain.OrderStatusFilled:          true,
	domain.OrderStatusCanceled:        true,
	domain.OrderStatusRejected:        true,
}

// SubmitOrderRequest represents the input for order submission.
type SubmitOrderRequest struct {
	Type           domain.OrderType
	AccountID      string
	IdempotencyKey string
	Side           domain.OrderSide
	Symbol         string
	Price          *float64 // required for limit, must be nil for market
	Quantity       int64
}

// OrderService handles order submission, retrieval, cancellation, and
// listing. Shape validation happens here; balance validation and
// matching belong to the engine.
type OrderService struct {
	matcher      *engine.Matcher
	accountStore *store.AccountStore
	orderStore   *store.OrderStore
	instruments  *domain.InstrumentRegistry
	webhookSvc   *WebhookService
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	matcher *engine.Matcher,
	accountStore *store.AccountStore,
	orderStore *store.OrderStore,
	instruments *domain.InstrumentRegistry,
	webhookSvc *WebhookService,
) *OrderService {
	return &OrderService{
		matcher:      matcher,
		accountStore: accountStore,
		orderStore:   orderStore,
		instruments:  instruments,
		webhookSvc:   webhookSvc,
	}
}

// SubmitOrder validates the request, deduplicates by idempotency key,
// runs the matching engine, and dispatches webhooks for any fills.
//
// Resubmission with a key already seen for the account returns the
// existing order's current state, terminal or not, without running
// the engine again. A submission that fails on a lock timeout or a
// ledger conflict before any money moved releases its key, so the
// same key can carry a retry.
func (s *OrderService) SubmitOrder(req SubmitOrderRequest) (*domain.Order, error) {
	if req.Type != domain.OrderTypeLimit && req.Type != domain.OrderTypeMarket {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, market", req.Type),
		}
	}
	if !accountIDRegex.MatchString(req.AccountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if !idemKeyRegex.MatchString(req.IdempotencyKey) {
		return nil, &domain.ValidationError{
			Message: "idempotency_key must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if req.Side != domain.OrderSideBuy && req.Side != domain.OrderSideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if !symbolRegex.MatchString(req.Symbol) {
		return nil, &domain.ValidationError{
			Message: "symbol must match ^[A-Z]{1,10}$",
		}
	}

	inst, err := s.instruments.Get(req.Symbol)
	if err != nil {
		return nil, err
	}
	if err := inst.ValidateQuantity(req.Quantity); err != nil {
		return nil, err
	}

	var priceCents int64
	switch req.Type {
	case domain.OrderTypeLimit:
		if req.Price == nil {
			return nil, &domain.ValidationError{
				Message: "price is required for limit orders",
			}
		}
		priceCents, err = domain.DollarsToCents(*req.Price)
		if err != nil {
			return nil, &domain.ValidationError{
				Message: "price must have at most 2 decimal places",
			}
		}
		if err := inst.ValidatePrice(priceCents); err != nil {
			return nil, err
		}
	case domain.OrderTypeMarket:
		if req.Price != nil {
			return nil, &domain.ValidationError{
				Message: "market orders must not include price",
			}
		}
	}

	if !s.accountStore.Exists(req.AccountID) {
		return nil, domain.ErrAccountNotFound
	}

	order := &domain.Order{
		OrderID:           uuid.New().String(),
		IdempotencyKey:    req.IdempotencyKey,
		AccountID:         req.AccountID,
		Type:              req.Type,
		Side:              req.Side,
		Symbol:            req.Symbol,
		Price:             priceCents,
		Quantity:          req.Quantity,
		RemainingQuantity: req.Quantity,
		Status:            domain.OrderStatusPending,
		CreatedAt:         time.Now(),
		Fills:             []*domain.Fill{},
	}

	stored, created := s.orderStore.CreateIdempotent(order)
	if !created {
		return stored, nil
	}

	fills, err := s.matcher.Submit(order)
	if err != nil && len(fills) == 0 {
		// A lock timeout or an unresolved ledger conflict says nothing
		// about whether the order would have been accepted. Drop the
		// record and free the idempotency key so a retry with the same
		// key gets a fresh attempt instead of the dead order.
		if errors.Is(err, domain.ErrBusy) || errors.Is(err, domain.ErrConflict) {
			s.orderStore.Release(order)
		}
		return nil, err
	}

	s.dispatchFillWebhooks(fills)

	return s.orderStore.Get(order.OrderID)
}

// dispatchFillWebhooks dispatches fill.executed webhooks for each leg
// to its own account. Skips dispatch if webhookSvc is nil.
func (s *OrderService) dispatchFillWebhooks(fills []*domain.Fill) {
	if s.webhookSvc == nil {
		return
	}
	for _, fill := range fills {
		order, err := s.orderStore.Get(fill.OrderID)
		if err != nil {
			continue
		}
		s.webhookSvc.DispatchFillExecuted(fill, order)
	}
}

// GetOrder retrieves an order by ID with all its fills.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	return s.orderStore.Get(orderID)
}

// CancelOrder cancels a resting order. Repeat cancels of a terminal
// order return the terminal result unchanged.
func (s *OrderService) CancelOrder(orderID string) (*domain.Order, error) {
	order, err := s.matcher.Cancel(orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == domain.OrderStatusCanceled && s.webhookSvc != nil {
		s.webhookSvc.DispatchOrderCanceled(order)
	}

	return order, nil
}

// ListOrders returns a paginated list of orders for an account with
// optional status filtering.
func (s *OrderService) ListOrders(accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if !s.accountStore.Exists(accountID) {
		return nil, 0, domain.ErrAccountNotFound
	}

	if status != nil {
		if !ValidOrderStatuses[*status] {
			return nil, 0, &domain.ValidationError{
				Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: pending, partially_filled, filled, canceled, rejected", *status),
			}
		}
	}

	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	orders, total := s.orderStore.ListByAccount(accountID, status, page, limit)
	return orders, total, nil
}
