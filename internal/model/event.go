package model

import "time"

type StockEventType string

const (
	EventStockStatusChanged StockEventType = "stock.status_changed"
	EventStockReorderNeeded StockEventType = "stock.reorder_needed"
)

// StockEvent is published after a committed ledger mutation moves a record
// across a stock status or reorder boundary.
type StockEvent struct {
	EventID           string         `json:"event_id"`
	EventType         StockEventType `json:"event_type"`
	InventoryID       string         `json:"inventory_id"`
	OwnerKind         OwnerKind      `json:"owner_kind"`
	OwnerID           string         `json:"owner_id"`
	Quantity          int64          `json:"quantity"`
	ReservedQuantity  int64          `json:"reserved_quantity"`
	AvailableQuantity int64          `json:"available_quantity"`
	PreviousStatus    StockStatus    `json:"previous_status"`
	Status            StockStatus    `json:"status"`
	ReorderQuantity   int64          `json:"reorder_quantity,omitempty"`
	OccurredAt        time.Time      `json:"occurred_at"`
}
