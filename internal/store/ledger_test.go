package store

import (
	"errors"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
)

func deposit(amount int64) domain.LedgerEntry {
	return domain.LedgerEntry{
		Type:      domain.EntryTypeCash,
		Delta:     amount,
		CreatedAt: time.Now(),
	}
}

func position(symbol string, delta, price int64) domain.LedgerEntry {
	return domain.LedgerEntry{
		Type:      domain.EntryTypePosition,
		Symbol:    symbol,
		Delta:     delta,
		Price:     price,
		CreatedAt: time.Now(),
	}
}

func TestLedgerStoreOpen(t *testing.T) {
	s := NewLedgerStore()

	if err := s.Open("acct"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Open("acct"); err != domain.ErrAccountAlreadyExists {
		t.Errorf("second Open error = %v, want ErrAccountAlreadyExists", err)
	}

	b, err := s.Balance("acct")
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if b.Cash != 0 || b.Seq != 0 {
		t.Errorf("new account balance = %+v, want empty", b)
	}
}

func TestLedgerStoreAppend_UnknownAccount(t *testing.T) {
	s := NewLedgerStore()
	if _, err := s.Append("ghost", 0, []domain.LedgerEntry{deposit(100)}); err != domain.ErrAccountNotFound {
		t.Errorf("Append error = %v, want ErrAccountNotFound", err)
	}
}

func TestLedgerStoreAppend_EmptyBatch(t *testing.T) {
	s := NewLedgerStore()
	s.Open("acct")

	_, err := s.Append("acct", 0, nil)
	if err == nil {
		t.Fatal("empty append succeeded")
	}
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("empty append error type = %T, want *ValidationError", err)
	}
}

func TestLedgerStoreAppend_SequenceAssignment(t *testing.T) {
	s := NewLedgerStore()
	s.Open("acct")

	head, err := s.Append("acct", 0, []domain.LedgerEntry{deposit(10000)})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if head != 1 {
		t.Errorf("head = %d, want 1", head)
	}

	head, err = s.Append("acct", 1, []domain.LedgerEntry{
		{Type: domain.EntryTypeCash, Delta: -5000, CreatedAt: time.Now()},
		position("AAPL", 1, 5000),
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if head != 3 {
		t.Errorf("head = %d, want 3", head)
	}

	entries, err := s.Entries("acct")
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Errorf("entry %d seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.AccountID != "acct" {
			t.Errorf("entry %d account = %q, want acct", i, e.AccountID)
		}
	}
}

func TestLedgerStoreAppend_Conflict(t *testing.T) {
	s := NewLedgerStore()
	s.Open("acct")
	s.Append("acct", 0, []domain.LedgerEntry{deposit(10000)})

	// Stale expected sequence: rejected, nothing committed.
	if _, err := s.Append("acct", 0, []domain.LedgerEntry{deposit(100)}); err != domain.ErrConflict {
		t.Errorf("stale append error = %v, want ErrConflict", err)
	}
	if head, _ := s.HeadSeq("acct"); head != 1 {
		t.Errorf("head after conflict = %d, want 1", head)
	}

	// expectedSeq < 0 skips the check.
	if _, err := s.Append("acct", -1, []domain.LedgerEntry{deposit(100)}); err != nil {
		t.Errorf("unchecked append failed: %v", err)
	}
}

func TestLedgerStoreAppend_AllOrNothing(t *testing.T) {
	s := NewLedgerStore()
	s.Open("acct")
	s.Append("acct", 0, []domain.LedgerEntry{deposit(10000)})

	// Second entry overdraws: the whole batch must roll back.
	_, err := s.Append("acct", 1, []domain.LedgerEntry{
		position("AAPL", 1, 100),
		{Type: domain.EntryTypeCash, Delta: -20000, CreatedAt: time.Now()},
	})
	if err != domain.ErrInsufficientFunds {
		t.Fatalf("overdraw append error = %v, want ErrInsufficientFunds", err)
	}

	b, _ := s.Balance("acct")
	if b.Seq != 1 {
		t.Errorf("seq after failed batch = %d, want 1", b.Seq)
	}
	if b.Cash != 10000 {
		t.Errorf("cash after failed batch = %d, want 10000", b.Cash)
	}
	if b.PositionQuantity("AAPL") != 0 {
		t.Errorf("position after failed batch = %d, want 0", b.PositionQuantity("AAPL"))
	}
	entries, _ := s.Entries("acct")
	if len(entries) != 1 {
		t.Errorf("entries after failed batch = %d, want 1", len(entries))
	}
}

func TestLedgerStoreBalanceAsOf(t *testing.T) {
	s := NewLedgerStore()
	s.Open("acct")
	s.Append("acct", 0, []domain.LedgerEntry{deposit(10000)})
	s.Append("acct", 1, []domain.LedgerEntry{
		{Type: domain.EntryTypeCash, Delta: -5000, CreatedAt: time.Now()},
		position("AAPL", 1, 5000),
	})

	b, err := s.BalanceAsOf("acct", 1)
	if err != nil {
		t.Fatalf("BalanceAsOf failed: %v", err)
	}
	if b.Cash != 10000 || b.PositionQuantity("AAPL") != 0 {
		t.Errorf("balance as of 1 = cash %d position %d, want 10000 / 0", b.Cash, b.PositionQuantity("AAPL"))
	}

	b, _ = s.BalanceAsOf("acct", 0)
	if b.Cash != 0 || b.Seq != 0 {
		t.Errorf("balance as of 0 = %+v, want empty", b)
	}

	if _, err := s.BalanceAsOf("ghost", 1); err != domain.ErrAccountNotFound {
		t.Errorf("BalanceAsOf unknown account error = %v, want ErrAccountNotFound", err)
	}
}

func TestLedgerStoreBalance_IsCopy(t *testing.T) {
	s := NewLedgerStore()
	s.Open("acct")
	s.Append("acct", 0, []domain.LedgerEntry{deposit(10000)})

	b, _ := s.Balance("acct")
	b.Cash = 0

	again, _ := s.Balance("acct")
	if again.Cash != 10000 {
		t.Errorf("store balance mutated through returned copy: cash = %d", again.Cash)
	}
}
