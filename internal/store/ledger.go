package store

import (
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// LedgerStore is the append-only record of cash and position deltas
// per account and the source of truth for balances. Entries commit in
// atomic all-or-nothing batches guarded by an optimistic per-account
// sequence check; a cached head balance is maintained alongside and is
// always equal to a full replay.
type LedgerStore struct {
	mu       sync.RWMutex
	entries  map[string][]domain.LedgerEntry // account_id → entries, seq = index+1
	balances map[string]*domain.Balance      // account_id → cached head balance
}

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		entries:  make(map[string][]domain.LedgerEntry),
		balances: make(map[string]*domain.Balance),
	}
}

// Open creates the ledger for a new account. It returns
// domain.ErrAccountAlreadyExists if the account was already opened.
func (s *LedgerStore) Open(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.balances[accountID]; exists {
		return domain.ErrAccountAlreadyExists
	}
	s.balances[accountID] = domain.NewBalance(accountID)
	s.entries[accountID] = nil
	return nil
}

// Append commits a batch of entries for one account as a single atomic
// transaction. When expectedSeq >= 0 the account's head sequence must
// equal it or the append fails with domain.ErrConflict (optimistic
// concurrency); expectedSeq < 0 skips the check.
//
// Every entry is applied to a copy of the cached balance first: if any
// entry fails (for example a cash delta that would drive the balance
// negative, domain.ErrInsufficientFunds), nothing commits. On success
// the entries receive consecutive sequence numbers and the new head
// sequence is returned.
func (s *LedgerStore) Append(accountID string, expectedSeq int64, entries []domain.LedgerEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, &domain.ValidationError{Message: "append requires at least one entry"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balance, ok := s.balances[accountID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	if expectedSeq >= 0 && balance.Seq != expectedSeq {
		return 0, domain.ErrConflict
	}

	// Tentative apply on a clone: all-or-nothing.
	next := balance.Clone()
	seq := balance.Seq
	applied := make([]domain.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		seq++
		e.AccountID = accountID
		e.Seq = seq
		if err := next.Apply(e); err != nil {
			return 0, err
		}
		applied = append(applied, e)
	}

	s.entries[accountID] = append(s.entries[accountID], applied...)
	s.balances[accountID] = next
	return seq, nil
}

// Balance returns a copy of the cached head balance for an account.
// It reflects every committed append (read-your-writes).
func (s *LedgerStore) Balance(accountID string) (*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance, ok := s.balances[accountID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return balance.Clone(), nil
}

// BalanceAsOf reconstructs the balance by replaying entries from
// genesis up to and including seq. seq 0 yields the empty balance.
func (s *LedgerStore) BalanceAsOf(accountID string, seq int64) (*domain.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, ok := s.entries[accountID]
	if !ok {
		if _, opened := s.balances[accountID]; !opened {
			return nil, domain.ErrAccountNotFound
		}
	}

	balance := domain.NewBalance(accountID)
	for _, e := range entries {
		if e.Seq > seq {
			break
		}
		if err := balance.Apply(e); err != nil {
			return nil, err
		}
	}
	return balance, nil
}

// Entries returns a copy of all entries for an account in sequence order.
func (s *LedgerStore) Entries(accountID string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.balances[accountID]; !ok {
		return nil, domain.ErrAccountNotFound
	}
	entries := s.entries[accountID]
	result := make([]domain.LedgerEntry, len(entries))
	copy(result, entries)
	return result, nil
}

// HeadSeq returns the current head sequence number for an account.
func (s *LedgerStore) HeadSeq(accountID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balance, ok := s.balances[accountID]
	if !ok {
		return 0, domain.ErrAccountNotFound
	}
	return balance.Seq, nil
}
