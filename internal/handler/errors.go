package handler

import (
	"errors"
	"net/http"

	"github.com/efreitasn/papertrade/internal/domain"
)

// mapDomainError writes the HTTP response for a service/engine error
// following the engine's error taxonomy. Validation failures are 400,
// affordability and liquidity rejections 422, optimistic-concurrency
// conflicts 409, lock timeouts 503 (retryable), lookups 404.
func mapDomainError(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", vErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInvalidInstrument):
		WriteError(w, http.StatusBadRequest, "invalid_instrument", "Unknown or unregistered instrument")
	case errors.Is(err, domain.ErrInvalidQuantity):
		WriteError(w, http.StatusBadRequest, "invalid_quantity", "Quantity must be a positive multiple of the instrument's lot size")
	case errors.Is(err, domain.ErrInsufficientFunds):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_funds", "Insufficient cash for this order")
	case errors.Is(err, domain.ErrInsufficientPosition):
		WriteError(w, http.StatusUnprocessableEntity, "insufficient_position", "Insufficient position for this order")
	case errors.Is(err, domain.ErrNoLiquidity):
		WriteError(w, http.StatusUnprocessableEntity, "no_liquidity", "No resting orders and no quote available")
	case errors.Is(err, domain.ErrConflict):
		WriteError(w, http.StatusConflict, "conflict", "Concurrent ledger modification, retry the request")
	case errors.Is(err, domain.ErrBusy):
		WriteError(w, http.StatusServiceUnavailable, "busy", "Instrument is busy, retry the request")
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", "Order not found")
	case errors.Is(err, domain.ErrAccountNotFound):
		WriteError(w, http.StatusNotFound, "account_not_found", "Account not found")
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		WriteError(w, http.StatusConflict, "account_already_exists", "Account already exists")
	case errors.Is(err, domain.ErrWebhookNotFound):
		WriteError(w, http.StatusNotFound, "webhook_not_found", "Webhook not found")
	case errors.Is(err, domain.ErrQuoteNotFound):
		WriteError(w, http.StatusNotFound, "quote_not_found", "No quote received for this instrument")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}
