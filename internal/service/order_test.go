package service

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/engine"
	"github.com/efreitasn/papertrade/internal/quote"
	"github.com/efreitasn/papertrade/internal/store"
)

// testEnv wires the full service stack over fresh in-memory stores.
type testEnv struct {
	accountSvc *AccountService
	orderSvc   *OrderService
	portfolio  *PortfolioService
	marketSvc  *MarketService
	ledger     *store.LedgerStore
	quotes     *quote.Cache
	books      *engine.BookManager
}

func newTestEnv() *testEnv {
	accountStore := store.NewAccountStore()
	ledger := store.NewLedgerStore()
	orderStore := store.NewOrderStore()
	fillStore := store.NewFillStore()
	instruments := domain.NewInstrumentRegistry()
	instruments.Register(domain.Instrument{Symbol: "AAPL", TickSize: 1, LotSize: 1})
	quotes := quote.NewCache()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	books := engine.NewBookManager()
	matcher := engine.NewMatcher(books, ledger, orderStore, fillStore, instruments, quotes, logger, engine.Config{
		LockTimeout:       100 * time.Millisecond,
		LedgerRetries:     3,
		SlippageBufferBps: 50,
	})

	return &testEnv{
		accountSvc: NewAccountService(accountStore, ledger, 10_000_000),
		orderSvc:   NewOrderService(matcher, accountStore, orderStore, instruments, nil),
		portfolio:  NewPortfolioService(ledger, quotes),
		marketSvc:  NewMarketService(instruments, quotes, matcher),
		ledger:     ledger,
		quotes:     quotes,
		books:      books,
	}
}

func validSubmit(accountID, key string) SubmitOrderRequest {
	return SubmitOrderRequest{
		Type:           domain.OrderTypeLimit,
		AccountID:      accountID,
		IdempotencyKey: key,
		Side:           domain.OrderSideBuy,
		Symbol:         "AAPL",
		Price:          float64Ptr(150.00),
		Quantity:       10,
	}
}

func TestSubmitOrder_Validation(t *testing.T) {
	env := newTestEnv()
	env.accountSvc.Create(CreateAccountRequest{AccountID: "alice"})

	tests := []struct {
		name   string
		mutate func(*SubmitOrderRequest)
	}{
		{"unknown type", func(r *SubmitOrderRequest) { r.Type = "stop" }},
		{"bad account id", func(r *SubmitOrderRequest) { r.AccountID = "has space" }},
		{"missing idempotency key", func(r *SubmitOrderRequest) { r.IdempotencyKey = "" }},
		{"bad side", func(r *SubmitOrderRequest) { r.Side = "hold" }},
		{"lowercase symbol", func(r *SubmitOrderRequest) { r.Symbol = "aapl" }},
		{"missing limit price", func(r *SubmitOrderRequest) { r.Price = nil }},
		{"excess price precision", func(r *SubmitOrderRequest) { r.Price = float64Ptr(150.001) }},
		{"market with price", func(r *SubmitOrderRequest) { r.Type = domain.OrderTypeMarket }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validSubmit("alice", "key-"+tt.name)
			tt.mutate(&req)
			_, err := env.orderSvc.SubmitOrder(req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("error = %v, want *ValidationError", err)
			}
		})
	}

	t.Run("zero quantity", func(t *testing.T) {
		req := validSubmit("alice", "key-qty")
		req.Quantity = 0
		if _, err := env.orderSvc.SubmitOrder(req); err != domain.ErrInvalidQuantity {
			t.Errorf("error = %v, want ErrInvalidQuantity", err)
		}
	})

	t.Run("unregistered symbol", func(t *testing.T) {
		req := validSubmit("alice", "key-sym")
		req.Symbol = "ZZZZ"
		if _, err := env.orderSvc.SubmitOrder(req); err != domain.ErrInvalidInstrument {
			t.Errorf("error = %v, want ErrInvalidInstrument", err)
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		if _, err := env.orderSvc.SubmitOrder(validSubmit("ghost", "key-acct")); err != domain.ErrAccountNotFound {
			t.Errorf("error = %v, want ErrAccountNotFound", err)
		}
	})
}

func TestSubmitOrder_TickAndLotAlignment(t *testing.T) {
	env := newTestEnv()
	env.accountSvc.Create(CreateAccountRequest{AccountID: "alice"})

	// Register a coarse instrument: nickel ticks, lots of 10.
	env.marketSvc.RegisterInstrument(RegisterInstrumentRequest{Symbol: "COARSE", TickSize: 0.05, LotSize: 10})

	req := validSubmit("alice", "key-tick")
	req.Symbol = "COARSE"
	req.Price = float64Ptr(150.02)
	req.Quantity = 10
	_, err := env.orderSvc.SubmitOrder(req)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("misaligned price error = %v, want *ValidationError", err)
	}

	req = validSubmit("alice", "key-lot")
	req.Symbol = "COARSE"
	req.Price = float64Ptr(150.05)
	req.Quantity = 15
	if _, err := env.orderSvc.SubmitOrder(req); err != domain.ErrInvalidQuantity {
		t.Errorf("misaligned quantity error = %v, want ErrInvalidQuantity", err)
	}
}

func TestSubmitOrder_Idempotency(t *testing.T) {
	env := newTestEnv()
	env.accountSvc.Create(CreateAccountRequest{AccountID: "alice"})

	first, err := env.orderSvc.SubmitOrder(validSubmit("alice", "key-1"))
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	// Same key: the same order comes back and the engine does not run
	// again (no second reservation of cash, no second resting order).
	second, err := env.orderSvc.SubmitOrder(validSubmit("alice", "key-1"))
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if second.OrderID != first.OrderID {
		t.Errorf("resubmit returned different order: %s vs %s", second.OrderID, first.OrderID)
	}

	// Different key is a new order.
	third, err := env.orderSvc.SubmitOrder(validSubmit("alice", "key-2"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if third.OrderID == first.OrderID {
		t.Error("different key returned the same order")
	}
}

func TestSubmitOrder_RejectionReturnsError(t *testing.T) {
	env := newTestEnv()
	env.accountSvc.Create(CreateAccountRequest{AccountID: "alice", InitialCash: float64Ptr(100)})

	// $150 × 10 against $100 cash.
	_, err := env.orderSvc.SubmitOrder(validSubmit("alice", "key-poor"))
	if err != domain.ErrInsufficientFunds {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}

	// The rejected order is still recorded and resubmission with the
	// same key returns it rather than retrying.
	o, err := env.orderSvc.SubmitOrder(validSubmit("alice", "key-poor"))
	if err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}
	if o.Status != domain.OrderStatusRejected {
		t.Errorf("status = %s, want rejected", o.Status)
	}
}

func TestSubmitOrder_BusyReleasesIdempotencyKey(t *testing.T) {
	env := newTestEnv()
	env.accountSvc.Create(CreateAccountRequest{AccountID: "alice"})

	book := env.books.GetOrCreate("AAPL")
	if err := book.Acquire(time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	_, err := env.orderSvc.SubmitOrder(validSubmit("alice", "key-busy"))
	book.Release()
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("error = %v, want ErrBusy", err)
	}

	// A timed-out submission never settled anything, so the key must be
	// free to carry the retry instead of replaying a dead order.
	o, err := env.orderSvc.SubmitOrder(validSubmit("alice", "key-busy"))
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if o.Status != domain.OrderStatusPending {
		t.Errorf("retry status = %s, want pending", o.Status)
	}

	// Only the retried order is on record.
	orders, total, err := env.orderSvc.ListOrders("alice", nil, 1, 10)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if total != 1 || len(orders) != 1 {
		t.Fatalf("orders on record = %d (total %d), want 1", len(orders), total)
	}
	if orders[0].OrderID != o.OrderID {
		t.Errorf("recorded order = %s, want the retry %s", orders[0].OrderID, o.OrderID)
	}
}

func TestCancelOrder(t *testing.T) {
	env := newTestEnv()
	env.accountSvc.Create(CreateAccountRequest{AccountID: "alice"})

	o, err := env.orderSvc.SubmitOrder(validSubmit("alice", "key-1"))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	got, err := env.orderSvc.CancelOrder(o.OrderID)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got.Status != domain.OrderStatusCanceled {
		t.Errorf("status = %s, want canceled", got.Status)
	}

	if _, err := env.orderSvc.CancelOrder("missing"); err != domain.ErrOrderNotFound {
		t.Errorf("cancel unknown error = %v, want ErrOrderNotFound", err)
	}
}

func TestListOrders(t *testing.T) {
	env := newTestEnv()
	env.accountSvc.Create(CreateAccountRequest{AccountID: "alice"})
	env.orderSvc.SubmitOrder(validSubmit("alice", "key-1"))
	env.orderSvc.SubmitOrder(validSubmit("alice", "key-2"))

	orders, total, err := env.orderSvc.ListOrders("alice", nil, 1, 20)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if total != 2 || len(orders) != 2 {
		t.Errorf("got %d orders, total %d, want 2/2", len(orders), total)
	}

	if _, _, err := env.orderSvc.ListOrders("ghost", nil, 1, 20); err != domain.ErrAccountNotFound {
		t.Errorf("unknown account error = %v, want ErrAccountNotFound", err)
	}

	bad := domain.OrderStatus("open")
	_, _, err = env.orderSvc.ListOrders("alice", &bad, 1, 20)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("bad status error = %v, want *ValidationError", err)
	}

	if _, _, err := env.orderSvc.ListOrders("alice", nil, 0, 20); err == nil {
		t.Error("page 0 accepted")
	}
	if _, _, err := env.orderSvc.ListOrders("alice", nil, 1, 101); err == nil {
		t.Error("limit 101 accepted")
	}
}
