package domain

import (
	"fmt"
	"sync"
)

// Instrument is immutable reference data for a tradable symbol.
// TickSize is the minimum price increment in cents and LotSize the
// minimum quantity increment; both must divide every order evenly.
type Instrument struct {
	Symbol   string
	TickSize int64
	LotSize  int64
}

// ValidatePrice checks that a price in cents is positive and aligned
// to the instrument's tick size.
func (i Instrument) ValidatePrice(price int64) error {
	if price <= 0 {
		return &ValidationError{Message: fmt.Sprintf("price must be > 0 for %s", i.Symbol)}
	}
	if price%i.TickSize != 0 {
		return &ValidationError{
			Message: fmt.Sprintf("price must be a multiple of tick size %d for %s", i.TickSize, i.Symbol),
		}
	}
	return nil
}

// ValidateQuantity checks that a quantity is positive and aligned to
// the instrument's lot size.
func (i Instrument) ValidateQuantity(qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty%i.LotSize != 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// InstrumentRegistry tracks known instruments in a thread-safe manner.
// Instruments are registered once as reference data and never mutated.
type InstrumentRegistry struct {
	mu          sync.RWMutex
	instruments map[string]Instrument
}

// NewInstrumentRegistry creates an empty InstrumentRegistry.
func NewInstrumentRegistry() *InstrumentRegistry {
	return &InstrumentRegistry{
		instruments: make(map[string]Instrument),
	}
}

// Register adds an instrument to the registry. Registering an existing
// symbol is a no-op; reference data is immutable once created. Returns
// true if the instrument was newly registered.
func (r *InstrumentRegistry) Register(inst Instrument) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instruments[inst.Symbol]; ok {
		return false
	}
	r.instruments[inst.Symbol] = inst
	return true
}

// Get returns the instrument for a symbol. It returns
// ErrInvalidInstrument if the symbol has not been registered.
func (r *InstrumentRegistry) Get(symbol string) (Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instruments[symbol]
	if !ok {
		return Instrument{}, ErrInvalidInstrument
	}
	return inst, nil
}

// Exists returns true if the symbol has been registered. Safe for concurrent use.
func (r *InstrumentRegistry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.instruments[symbol]
	return ok
}

// List returns all registered instruments in unspecified order.
func (r *InstrumentRegistry) List() []Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Instrument, 0, len(r.instruments))
	for _, inst := range r.instruments {
		result = append(result, inst)
	}
	return result
}
