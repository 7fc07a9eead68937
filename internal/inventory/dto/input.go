package dto

import "github.com/fekuna/omnipos-inventory-service/internal/model"

type AdjustQuantityInput struct {
	Owner   model.OwnerRef
	Delta   int64
	Reason  model.Reason
	Notes   string
	ActorID string
}

type PhysicalCountInput struct {
	Owner           model.OwnerRef
	CountedQuantity int64
	Notes           string
	ActorID         string
}

// UpdateThresholdsInput changes only the fields that are set.
type UpdateThresholdsInput struct {
	Owner             model.OwnerRef
	LowStockThreshold *int64
	ReorderPoint      *int64
	ReorderQuantity   *int64
}
