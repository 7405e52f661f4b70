package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"pgregory.net/rapid"
)

// genRestingOrder generates a resting order with a small price and
// timestamp range to force ties on both keys.
func genRestingOrder(id int, side domain.OrderSide) *rapid.Generator[*domain.Order] {
	return rapid.Custom(func(t *rapid.T) *domain.Order {
		price := rapid.Int64Range(1, 50).Draw(t, "price")
		secOffset := rapid.IntRange(0, 10).Draw(t, "secOffset")
		createdAt := time.Date(2025, 1, 1, 0, 0, secOffset, 0, time.UTC)
		return restingOrder(fmt.Sprintf("order-%d", id), side, price, 1, createdAt)
	})
}

func TestProperty_BuySideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewBook("TEST")

		for i := 0; i < n; i++ {
			order := genRestingOrder(i, domain.OrderSideBuy).Draw(t, fmt.Sprintf("buy-%d", i))
			book.Insert(order)
		}

		// Price descending, then created_at ascending, then insertion
		// sequence ascending.
		var prev *BookEntry
		book.WalkBuys(func(entry BookEntry) bool {
			if prev != nil {
				if entry.Price > prev.Price {
					t.Fatalf("buy side: price should be descending, got %d after %d", entry.Price, prev.Price)
				}
				if entry.Price == prev.Price {
					if entry.CreatedAt.Before(prev.CreatedAt) {
						t.Fatalf("buy side: same price %d, created_at should be ascending, got %v after %v",
							entry.Price, entry.CreatedAt, prev.CreatedAt)
					}
					if entry.CreatedAt.Equal(prev.CreatedAt) && entry.Seq < prev.Seq {
						t.Fatalf("buy side: same price and time, seq should be ascending, got %d after %d",
							entry.Seq, prev.Seq)
					}
				}
			}
			e := entry
			prev = &e
			return true
		})
	})
}

func TestProperty_SellSideSortingInvariant(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 50).Draw(t, "numEntries")
		book := NewBook("TEST")

		for i := 0; i < n; i++ {
			order := genRestingOrder(i, domain.OrderSideSell).Draw(t, fmt.Sprintf("sell-%d", i))
			book.Insert(order)
		}

		var prev *BookEntry
		book.WalkSells(func(entry BookEntry) bool {
			if prev != nil {
				if entry.Price < prev.Price {
					t.Fatalf("sell side: price should be ascending, got %d after %d", entry.Price, prev.Price)
				}
				if entry.Price == prev.Price {
					if entry.CreatedAt.Before(prev.CreatedAt) {
						t.Fatalf("sell side: same price %d, created_at should be ascending, got %v after %v",
							entry.Price, entry.CreatedAt, prev.CreatedAt)
					}
					if entry.CreatedAt.Equal(prev.CreatedAt) && entry.Seq < prev.Seq {
						t.Fatalf("sell side: same price and time, seq should be ascending, got %d after %d",
							entry.Seq, prev.Seq)
					}
				}
			}
			e := entry
			prev = &e
			return true
		})
	})
}

func TestProperty_RemoveLeavesBookConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 30).Draw(t, "numEntries")
		book := NewBook("TEST")

		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			side := domain.OrderSideBuy
			if rapid.Bool().Draw(t, "sell") {
				side = domain.OrderSideSell
			}
			order := genRestingOrder(i, side).Draw(t, fmt.Sprintf("order-%d", i))
			book.Insert(order)
			ids = append(ids, order.OrderID)
		}

		numRemove := rapid.IntRange(0, n).Draw(t, "numRemove")
		for i := 0; i < numRemove; i++ {
			if !book.Remove(ids[i]) {
				t.Fatalf("Remove(%s) returned false for resting order", ids[i])
			}
		}

		if got := book.BuyCount() + book.SellCount(); got != n-numRemove {
			t.Fatalf("remaining = %d, want %d", got, n-numRemove)
		}
		for i, id := range ids {
			want := i >= numRemove
			if book.Contains(id) != want {
				t.Fatalf("Contains(%s) = %v, want %v", id, !want, want)
			}
		}
	})
}
