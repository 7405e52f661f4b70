package service

import (
	"regexp"
	"time"

	"github.com/efreitasn/papertrade/internal/domain"
	"github.com/efreitasn/papertrade/internal/store"
)

var accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// CreateAccountRequest represents the input for account creation.
type CreateAccountRequest struct {
	AccountID   string
	InitialCash *float64 // nil → configured default
}

// AccountService handles account creation and lookup. Opening an
// account writes the initial cash as the account's first ledger entry,
// so the deposit participates in the conservation invariant like any
// other delta.
type AccountService struct {
	store              *store.AccountStore
	ledger             *store.LedgerStore
	defaultInitialCash int64 // cents
}

// NewAccountService creates a new AccountService.
func NewAccountService(accountStore *store.AccountStore, ledger *store.LedgerStore, defaultInitialCash int64) *AccountService {
	return &AccountService{
		store:              accountStore,
		ledger:             ledger,
		defaultInitialCash: defaultInitialCash,
	}
}

// Create validates the request, opens the account's ledger, and
// deposits the initial cash.
func (s *AccountService) Create(req CreateAccountRequest) (*domain.Account, error) {
	if !accountIDRegex.MatchString(req.AccountID) {
		return nil, &domain.ValidationError{
			Message: "account_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}

	initialCash := s.defaultInitialCash
	if req.InitialCash != nil {
		if *req.InitialCash < 0 {
			return nil, &domain.ValidationError{
				Message: "initial_cash must be >= 0",
			}
		}
		cents, err := domain.DollarsToCents(*req.InitialCash)
		if err != nil {
			return nil, &domain.ValidationError{
				Message: "initial_cash must have at most 2 decimal places",
			}
		}
		initialCash = cents
	}

	account := &domain.Account{
		AccountID: req.AccountID,
		CreatedAt: time.Now(),
	}
	if err := s.store.Create(account); err != nil {
		return nil, err
	}
	if err := s.ledger.Open(account.AccountID); err != nil {
		return nil, err
	}

	if initialCash > 0 {
		_, err := s.ledger.Append(account.AccountID, 0, []domain.LedgerEntry{{
			Type:      domain.EntryTypeCash,
			Delta:     initialCash,
			CreatedAt: account.CreatedAt,
		}})
		if err != nil {
			return nil, err
		}
	}

	return account, nil
}

// Get retrieves an account by ID.
func (s *AccountService) Get(accountID string) (*domain.Account, error) {
	return s.store.Get(accountID)
}
