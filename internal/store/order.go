package store

import (
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// OrderStore is a thread-safe in-memory store for orders, with a
// primary index by order_id, a secondary index by account_id, and an
// idempotency-key index used to deduplicate retried submissions.
type OrderStore struct {
	mu            sync.RWMutex
	orders        map[string]*domain.Order
	accountOrders map[string][]*domain.Order // account_id → orders (append-only)
	byIdemKey     map[string]*domain.Order   // account_id+"\x00"+key → order
}

// NewOrderStore creates an empty OrderStore.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:        make(map[string]*domain.Order),
		accountOrders: make(map[string][]*domain.Order),
		byIdemKey:     make(map[string]*domain.Order),
	}
}

func idemKey(accountID, key string) string {
	return accountID + "\x00" + key
}

// CreateIdempotent stores the order unless another order already claimed
// the same (account_id, idempotency_key) pair, in which case a snapshot
// of the existing order is returned and nothing is stored. The returned
// bool is true when the order was created. The check and insert are one
// atomic step, so two concurrent submissions with the same key cannot
// both create an order.
func (s *OrderStore) CreateIdempotent(o *domain.Order) (*domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.IdempotencyKey != "" {
		if existing, ok := s.byIdemKey[idemKey(o.AccountID, o.IdempotencyKey)]; ok {
			return existing.Clone(), false
		}
		s.byIdemKey[idemKey(o.AccountID, o.IdempotencyKey)] = o
	}

	s.orders[o.OrderID] = o
	s.accountOrders[o.AccountID] = append(s.accountOrders[o.AccountID], o)
	return o, true
}

// Release removes an order whose submission never settled, freeing its
// idempotency key for a retried submission. Only transient outcomes
// (lock timeout, unresolved ledger conflict) release; any order that
// moved money stays recorded.
func (s *OrderStore) Release(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.IdempotencyKey != "" {
		delete(s.byIdemKey, idemKey(o.AccountID, o.IdempotencyKey))
	}
	delete(s.orders, o.OrderID)

	list := s.accountOrders[o.AccountID]
	for i, other := range list {
		if other.OrderID == o.OrderID {
			s.accountOrders[o.AccountID] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

// Mutate applies fn to an order under the store's write lock. The
// engine funnels every order state transition through here, so a Get
// snapshot never observes a half-applied transition.
func (s *OrderStore) Mutate(o *domain.Order, fn func(*domain.Order)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(o)
}

// Resolve returns the stored order itself rather than a snapshot. The
// engine needs the canonical pointer to feed Mutate; everything else
// reads through Get. It returns domain.ErrOrderNotFound if the order
// does not exist.
func (s *OrderStore) Resolve(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

// Get retrieves a snapshot of an order by ID, safe to read while the
// engine keeps mutating the stored order. It returns
// domain.ErrOrderNotFound if the order does not exist.
func (s *OrderStore) Get(id string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// ListByAccount returns order snapshots for an account in reverse
// chronological order (newest first). If status is non-nil, only orders
// matching that status are included. Pagination is 1-based. Returns the
// matching orders for the requested page and the total count before
// pagination.
func (s *OrderStore) ListByAccount(accountID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.accountOrders[accountID]

	filtered := make([]*domain.Order, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if status != nil && all[i].Status != *status {
			continue
		}
		filtered = append(filtered, all[i])
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total {
		return []*domain.Order{}, total
	}
	end := start + limit
	if end > total {
		end = total
	}

	out := make([]*domain.Order, 0, end-start)
	for _, o := range filtered[start:end] {
		out = append(out, o.Clone())
	}
	return out, total
}
