package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

func newOrder(id, accountID, key string) *domain.Order {
	return &domain.Order{
		OrderID:           id,
		IdempotencyKey:    key,
		AccountID:         accountID,
		Type:              domain.OrderTypeLimit,
		Side:              domain.OrderSideBuy,
		Symbol:            "AAPL",
		Price:             15000,
		Quantity:          10,
		RemainingQuantity: 10,
		Status:            domain.OrderStatusPending,
		CreatedAt:         time.Now(),
	}
}

func TestOrderStoreCreateIdempotent(t *testing.T) {
	s := NewOrderStore()

	first := newOrder("o1", "acct", "key-1")
	got, created := s.CreateIdempotent(first)
	if !created || got != first {
		t.Fatalf("first create: created=%v got=%p want %p", created, got, first)
	}

	// Same account and key: the existing order comes back, nothing stored.
	dup := newOrder("o2", "acct", "key-1")
	got, created = s.CreateIdempotent(dup)
	if created {
		t.Error("duplicate key created a second order")
	}
	if got.OrderID != first.OrderID {
		t.Errorf("duplicate create returned %s, want the original %s", got.OrderID, first.OrderID)
	}
	if _, err := s.Get("o2"); err != domain.ErrOrderNotFound {
		t.Errorf("duplicate order was stored: Get error = %v", err)
	}

	// Same key under a different account is independent.
	other := newOrder("o3", "other", "key-1")
	if _, created = s.CreateIdempotent(other); !created {
		t.Error("same key under different account was deduplicated")
	}

	// Empty key never deduplicates.
	a := newOrder("o4", "acct", "")
	b := newOrder("o5", "acct", "")
	s.CreateIdempotent(a)
	if _, created = s.CreateIdempotent(b); !created {
		t.Error("orders without idempotency keys were deduplicated")
	}
}

func TestOrderStoreGet(t *testing.T) {
	s := NewOrderStore()
	o := newOrder("o1", "acct", "")
	s.CreateIdempotent(o)

	got, err := s.Get("o1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.OrderID != o.OrderID {
		t.Errorf("Get returned %s, want %s", got.OrderID, o.OrderID)
	}

	// Get hands out a snapshot. Writing through it must not reach the
	// stored order.
	got.Status = domain.OrderStatusRejected
	got.RemainingQuantity = 0
	again, err := s.Get("o1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if again.Status != domain.OrderStatusPending || again.RemainingQuantity != 10 {
		t.Errorf("snapshot write leaked into the store: status=%s remaining=%d",
			again.Status, again.RemainingQuantity)
	}

	if _, err := s.Get("missing"); err != domain.ErrOrderNotFound {
		t.Errorf("Get missing error = %v, want ErrOrderNotFound", err)
	}
}

func TestOrderStoreRelease(t *testing.T) {
	s := NewOrderStore()
	o := newOrder("o1", "acct", "key-1")
	if _, created := s.CreateIdempotent(o); !created {
		t.Fatal("first create was deduplicated")
	}

	s.Release(o)

	if _, err := s.Get("o1"); err != domain.ErrOrderNotFound {
		t.Errorf("released order still retrievable: Get error = %v", err)
	}
	if _, total := s.ListByAccount("acct", nil, 1, 10); total != 0 {
		t.Errorf("released order still listed: total = %d", total)
	}

	// The idempotency key is free again.
	retry := newOrder("o2", "acct", "key-1")
	got, created := s.CreateIdempotent(retry)
	if !created {
		t.Fatal("released key still deduplicates")
	}
	if got.OrderID != "o2" {
		t.Errorf("retry stored %s, want o2", got.OrderID)
	}
}

func TestOrderStoreListByAccount(t *testing.T) {
	s := NewOrderStore()
	for i := 0; i < 5; i++ {
		o := newOrder(fmt.Sprintf("o%d", i), "acct", "")
		if i%2 == 0 {
			o.Status = domain.OrderStatusFilled
		}
		s.CreateIdempotent(o)
	}

	// Newest first, unfiltered.
	orders, total := s.ListByAccount("acct", nil, 1, 10)
	if total != 5 || len(orders) != 5 {
		t.Fatalf("ListByAccount = %d orders, total %d, want 5/5", len(orders), total)
	}
	if orders[0].OrderID != "o4" || orders[4].OrderID != "o0" {
		t.Errorf("ordering wrong: first=%s last=%s", orders[0].OrderID, orders[4].OrderID)
	}

	// Status filter.
	filled := domain.OrderStatusFilled
	orders, total = s.ListByAccount("acct", &filled, 1, 10)
	if total != 3 {
		t.Errorf("filled total = %d, want 3", total)
	}
	for _, o := range orders {
		if o.Status != domain.OrderStatusFilled {
			t.Errorf("filter leaked order with status %s", o.Status)
		}
	}

	// Pagination.
	orders, total = s.ListByAccount("acct", nil, 2, 2)
	if total != 5 || len(orders) != 2 {
		t.Fatalf("page 2 = %d orders, total %d, want 2/5", len(orders), total)
	}
	if orders[0].OrderID != "o2" {
		t.Errorf("page 2 first = %s, want o2", orders[0].OrderID)
	}

	// Past the end.
	orders, total = s.ListByAccount("acct", nil, 4, 2)
	if total != 5 || len(orders) != 0 {
		t.Errorf("past-end page = %d orders, total %d, want 0/5", len(orders), total)
	}

	// Unknown account.
	orders, total = s.ListByAccount("ghost", nil, 1, 10)
	if total != 0 || len(orders) != 0 {
		t.Errorf("unknown account = %d orders, total %d, want 0/0", len(orders), total)
	}
}
