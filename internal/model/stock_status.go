package model

type StockStatus string

const (
	StatusInStock    StockStatus = "in_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusOutOfStock StockStatus = "out_of_stock"
)

// EvaluateStock derives the display status from on-hand quantity.
func EvaluateStock(quantity, lowStockThreshold int64) StockStatus {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= lowStockThreshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// EvaluateAvailability is the availability-aware variant: an item whose
// whole stock is held by reservations is not sellable.
func EvaluateAvailability(available, lowStockThreshold int64) StockStatus {
	return EvaluateStock(available, lowStockThreshold)
}

type ReorderSignal struct {
	Needed   bool  `json:"needed"`
	Quantity int64 `json:"quantity"`
}

// EvaluateReorder recommends restocking reorderQuantity once quantity has
// fallen to the reorder point. A zero reorder point disables the signal.
func EvaluateReorder(quantity, reorderPoint, reorderQuantity int64) ReorderSignal {
	if reorderPoint <= 0 || quantity > reorderPoint {
		return ReorderSignal{}
	}
	return ReorderSignal{Needed: true, Quantity: reorderQuantity}
}
