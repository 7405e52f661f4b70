package store

import (
	"sync"

	"github.com/efreitasn/papertrade/internal/domain"
)

// FillStore is a thread-safe in-memory store for fills, keyed by
// symbol. Fills are append-only and chronological.
type FillStore struct {
	mu    sync.RWMutex
	fills map[string][]*domain.Fill // symbol → fills (chronological)
}

// NewFillStore creates an empty FillStore.
func NewFillStore() *FillStore {
	return &FillStore{
		fills: make(map[string][]*domain.Fill),
	}
}

// Append adds a fill to the symbol's chronological list.
func (s *FillStore) Append(f *domain.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fills[f.Symbol] = append(s.fills[f.Symbol], f)
}

// GetBySymbol returns all fills for a symbol in chronological order.
// Returns an empty slice if no fills exist for the symbol.
func (s *FillStore) GetBySymbol(symbol string) []*domain.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fills := s.fills[symbol]
	if fills == nil {
		return []*domain.Fill{}
	}

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]*domain.Fill, len(fills))
	copy(result, fills)
	return result
}
