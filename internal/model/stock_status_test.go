package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateStock(t *testing.T) {
	tests := []struct {
		name      string
		quantity  int64
		threshold int64
		want      StockStatus
	}{
		{"negative is out", -3, 5, StatusOutOfStock},
		{"zero is out", 0, 5, StatusOutOfStock},
		{"one above zero is low", 1, 5, StatusLowStock},
		{"at threshold is low", 5, 5, StatusLowStock},
		{"above threshold is in stock", 6, 5, StatusInStock},
		{"zero threshold", 1, 0, StatusInStock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvaluateStock(tt.quantity, tt.threshold))
		})
	}
}

func TestEvaluateAvailability(t *testing.T) {
	rec := &InventoryRecord{Quantity: 10, ReservedQuantity: 10, LowStockThreshold: 2}
	assert.Equal(t, StatusInStock, rec.Status())
	assert.Equal(t, StatusOutOfStock, EvaluateAvailability(rec.AvailableQuantity(), rec.LowStockThreshold))
}

func TestEvaluateReorder(t *testing.T) {
	assert.Equal(t, ReorderSignal{Needed: true, Quantity: 50}, EvaluateReorder(4, 5, 50))
	assert.Equal(t, ReorderSignal{Needed: true, Quantity: 50}, EvaluateReorder(5, 5, 50))
	assert.Equal(t, ReorderSignal{}, EvaluateReorder(6, 5, 50))
	assert.Equal(t, ReorderSignal{}, EvaluateReorder(0, 0, 50), "zero reorder point disables the signal")
}

func TestParseReason(t *testing.T) {
	for _, r := range Reasons {
		got, err := ParseReason(string(r))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}

	_, err := ParseReason("gift")
	assert.ErrorIs(t, err, ErrUnknownReason)
	_, err = ParseReason("")
	assert.ErrorIs(t, err, ErrUnknownReason)
}

func TestReasonAdjustable(t *testing.T) {
	for _, r := range Reasons {
		assert.Equal(t, r != ReasonCount, r.Adjustable(), r)
	}
	assert.False(t, Reason("gift").Adjustable())
}

func TestDirectionOf(t *testing.T) {
	assert.Equal(t, DirectionIn, DirectionOf(0, 100))
	assert.Equal(t, DirectionOut, DirectionOf(50, 42))
	assert.Equal(t, DirectionIn, DirectionOf(7, 7))
}

func TestOwnerRef(t *testing.T) {
	ref, err := NewOwnerRef("Variant", " 42 ")
	require.NoError(t, err)
	assert.Equal(t, Variant("42"), ref)
	assert.Equal(t, "variant:42", ref.Key())

	_, err = NewOwnerRef("bundle", "1")
	assert.ErrorIs(t, err, ErrInvalidOwner)

	_, err = NewOwnerRef("product", "")
	assert.ErrorIs(t, err, ErrInvalidOwner)

	assert.ErrorIs(t, OwnerRef{}.Validate(), ErrInvalidOwner)
}
