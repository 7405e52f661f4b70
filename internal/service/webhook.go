package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
	"github.com/google/uuid"
)

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	AccountID string
	URL       string
	Events    []string
}

// WebhookService handles webhook CRUD and event dispatch.
type WebhookService struct {
	store        *store.WebhookStore
	accountStore *store.AccountStore
	client       *http.Client
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(
	webhookStore *store.WebhookStore,
	accountStore *store.AccountStore,
	webhookTimeout time.Duration,
) *WebhookService {
	return &WebhookService{
		store:        webhookStore,
		accountStore: accountStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if !s.accountStore.Exists(req.AccountID) {
		return nil, false, domain.ErrAccountNotFound
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !domain.KnownEvent(event) {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: " +
					domain.EventFillExecuted + ", " + domain.EventOrderCanceled,
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	// Upsert each (account_id, event) pair.
	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		w := &domain.Webhook{
			WebhookID: uuid.New().String(),
			AccountID: req.AccountID,
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		created := s.store.Upsert(w)
		if created {
			anyCreated = true
			webhooks = append(webhooks, w)
		} else {
			existing := s.store.GetByAccountEvent(req.AccountID, event)
			if existing != nil {
				webhooks = append(webhooks, existing)
			}
		}
	}

	return webhooks, anyCreated, nil
}

// List validates the account exists and returns all webhook subscriptions.
func (s *WebhookService) List(accountID string) ([]*domain.Webhook, error) {
	if !s.accountStore.Exists(accountID) {
		return nil, domain.ErrAccountNotFound
	}
	return s.store.ListByAccount(accountID), nil
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// fillExecutedPayload is the JSON payload for fill.executed webhooks.
type fillExecutedPayload struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      fillExecutedData `json:"data"`
}

type fillExecutedData struct {
	FillID                 string  `json:"fill_id"`
	AccountID              string  `json:"account_id"`
	OrderID                string  `json:"order_id"`
	Symbol                 string  `json:"symbol"`
	Side                   string  `json:"side"`
	FillPrice              float64 `json:"fill_price"`
	FillQuantity           int64   `json:"fill_quantity"`
	Source                 string  `json:"source"`
	OrderStatus            string  `json:"order_status"`
	OrderFilledQuantity    int64   `json:"order_filled_quantity"`
	OrderRemainingQuantity int64   `json:"order_remaining_quantity"`
}

// orderEventPayload is the JSON payload for order.canceled webhooks.
type orderEventPayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      orderEventData `json:"data"`
}

type orderEventData struct {
	AccountID         string  `json:"account_id"`
	OrderID           string  `json:"order_id"`
	Symbol            string  `json:"symbol"`
	Side              string  `json:"side"`
	Price             float64 `json:"price"`
	Quantity          int64   `json:"quantity"`
	FilledQuantity    int64   `json:"filled_quantity"`
	CanceledQuantity  int64   `json:"canceled_quantity"`
	RemainingQuantity int64   `json:"remaining_quantity"`
	Status            string  `json:"status"`
}

// DispatchFillExecuted dispatches a fill.executed webhook notification
// to the fill's account. Fire and forget, delivery errors are ignored.
func (s *WebhookService) DispatchFillExecuted(fill *domain.Fill, order *domain.Order) {
	wh := s.store.GetByAccountEvent(fill.AccountID, domain.EventFillExecuted)
	if wh == nil {
		return
	}

	payload := fillExecutedPayload{
		Event:     domain.EventFillExecuted,
		Timestamp: fill.ExecutedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: fillExecutedData{
			FillID:                 fill.FillID,
			AccountID:              fill.AccountID,
			OrderID:                order.OrderID,
			Symbol:                 order.Symbol,
			Side:                   string(fill.Side),
			FillPrice:              domain.CentsToDollars(fill.Price),
			FillQuantity:           fill.Quantity,
			Source:                 string(fill.Source),
			OrderStatus:            string(order.Status),
			OrderFilledQuantity:    order.FilledQuantity,
			OrderRemainingQuantity: order.RemainingQuantity,
		},
	}

	go s.deliver(wh, domain.EventFillExecuted, payload)
}

// DispatchOrderCanceled dispatches an order.canceled webhook
// notification to the order's account. Fire-and-forget.
func (s *WebhookService) DispatchOrderCanceled(order *domain.Order) {
	wh := s.store.GetByAccountEvent(order.AccountID, domain.EventOrderCanceled)
	if wh == nil {
		return
	}

	payload := orderEventPayload{
		Event:     domain.EventOrderCanceled,
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderEventData{
			AccountID:         order.AccountID,
			OrderID:           order.OrderID,
			Symbol:            order.Symbol,
			Side:              string(order.Side),
			Price:             domain.CentsToDollars(order.Price),
			Quantity:          order.Quantity,
			FilledQuantity:    order.FilledQuantity,
			CanceledQuantity:  order.CanceledQuantity,
			RemainingQuantity: order.RemainingQuantity,
			Status:            string(order.Status),
		},
	}

	go s.deliver(wh, domain.EventOrderCanceled, payload)
}

// deliver sends the webhook payload via HTTP POST with the required headers.
// Errors are silently ignored (fire-and-forget).
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
