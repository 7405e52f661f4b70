package domain

import "time"

// Account identifies a trading participant. Balances are not stored
// here: cash and positions are owned exclusively by the ledger store
// and derived from its entries.
type Account struct {
	AccountID string
	CreatedAt time.Time
}
