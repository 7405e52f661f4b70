package domain

import "testing"

func TestOrderStatusTerminal(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderStatusPending, false},
		{OrderStatusPartiallyFilled, false},
		{OrderStatusFilled, true},
		{OrderStatusCanceled, true},
		{OrderStatusRejected, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestOrderAveragePrice(t *testing.T) {
	t.Run("no fills", func(t *testing.T) {
		o := &Order{Quantity: 10}
		if _, ok := o.AveragePrice(); ok {
			t.Error("AveragePrice returned ok with no fills")
		}
	})

	t.Run("single fill", func(t *testing.T) {
		o := &Order{
			Quantity:       10,
			FilledQuantity: 10,
			Fills:          []*Fill{{Price: 15000, Quantity: 10}},
		}
		got, ok := o.AveragePrice()
		if !ok {
			t.Fatal("AveragePrice returned !ok")
		}
		if got != 15000 {
			t.Errorf("AveragePrice = %d, want 15000", got)
		}
	})

	t.Run("weighted across fills", func(t *testing.T) {
		o := &Order{
			Quantity:       10,
			FilledQuantity: 10,
			Fills: []*Fill{
				{Price: 10000, Quantity: 5},
				{Price: 20000, Quantity: 5},
			},
		}
		got, ok := o.AveragePrice()
		if !ok {
			t.Fatal("AveragePrice returned !ok")
		}
		if got != 15000 {
			t.Errorf("AveragePrice = %d, want 15000", got)
		}
	})
}
