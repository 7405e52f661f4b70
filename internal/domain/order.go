package domain

import "time"

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderSide indicates whether an order buys or sells the instrument.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus represents the lifecycle state of an order.
// Transitions: pending → (partially_filled)* → filled, or
// pending → canceled, or pending → rejected.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected:
		return true
	}
	return false
}

// Order represents a buy or sell instruction submitted by an account.
// An order is owned by the order book while resting and reaches a
// terminal state only through the matching engine.
type Order struct {
	OrderID           string
	IdempotencyKey    string
	AccountID         string
	Type              OrderType
	Side              OrderSide
	Symbol            string
	Price             int64 // cents, 0 for market orders
	Quantity          int64
	FilledQuantity    int64
	RemainingQuantity int64
	CanceledQuantity  int64
	RejectedQuantity  int64 // unfilled market remainder
	Status            OrderStatus
	RejectReason      string // set when Status is rejected
	CreatedAt         time.Time
	CanceledAt        *time.Time
	Fills             []*Fill
}

// AveragePrice computes the volume-weighted average execution price
// as sum(fill.price × fill.quantity) / filled_quantity using integer
// arithmetic. Returns (price, true) when fills exist, or (0, false)
// when nothing has executed.
func (o *Order) AveragePrice() (int64, bool) {
	if len(o.Fills) == 0 || o.FilledQuantity == 0 {
		return 0, false
	}
	var total int64
	for _, f := range o.Fills {
		total += f.Price * f.Quantity
	}
	return total / o.FilledQuantity, true
}

// Clone returns a copy safe to read outside the engine's locks. Fills
// are immutable once recorded, so the slice is copied shallowly.
func (o *Order) Clone() *Order {
	c := *o
	c.Fills = make([]*Fill, len(o.Fills))
	copy(c.Fills, o.Fills)
	if o.CanceledAt != nil {
		at := *o.CanceledAt
		c.CanceledAt = &at
	}
	return &c
}
