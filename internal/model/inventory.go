package model

import "time"

type InventoryRecord struct {
	ID                string     `db:"id" json:"id"`
	OwnerKind         OwnerKind  `db:"owner_kind" json:"owner_kind"`
	OwnerID           string     `db:"owner_id" json:"owner_id"`
	Quantity          int64      `db:"quantity" json:"quantity"`
	ReservedQuantity  int64      `db:"reserved_quantity" json:"reserved_quantity"`
	LowStockThreshold int64      `db:"low_stock_threshold" json:"low_stock_threshold"`
	ReorderPoint      int64      `db:"reorder_point" json:"reorder_point"`
	ReorderQuantity   int64      `db:"reorder_quantity" json:"reorder_quantity"`
	LastCountedAt     *time.Time `db:"last_counted_at" json:"last_counted_at"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

func (r *InventoryRecord) Owner() OwnerRef {
	return OwnerRef{Kind: r.OwnerKind, ID: r.OwnerID}
}

// AvailableQuantity is the sellable amount: on hand minus held.
func (r *InventoryRecord) AvailableQuantity() int64 {
	return r.Quantity - r.ReservedQuantity
}

func (r *InventoryRecord) Status() StockStatus {
	return EvaluateStock(r.Quantity, r.LowStockThreshold)
}

func (r *InventoryRecord) Reorder() ReorderSignal {
	return EvaluateReorder(r.Quantity, r.ReorderPoint, r.ReorderQuantity)
}

// Thresholds are the per-record stock levels used for status and reorder signals.
type Thresholds struct {
	LowStockThreshold int64
	ReorderPoint      int64
	ReorderQuantity   int64
}

type StockMovement struct {
	ID                 string    `db:"id" json:"id"`
	Seq                int64     `db:"seq" json:"-"`
	InventoryID        string    `db:"inventory_id" json:"inventory_id"`
	Direction          Direction `db:"direction" json:"direction"`
	QuantityBefore     int64     `db:"quantity_before" json:"quantity_before"`
	QuantityAfter      int64     `db:"quantity_after" json:"quantity_after"`
	QuantityDifference int64     `db:"quantity_difference" json:"quantity_difference"`
	Reason             Reason    `db:"reason" json:"reason"`
	Notes              *string   `db:"notes" json:"notes,omitempty"`
	ActorID            *string   `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// Reconciliation compares a record's cached quantity with the quantity
// obtained by replaying its movements from zero.
type Reconciliation struct {
	InventoryID      string `json:"inventory_id"`
	RecordedQuantity int64  `json:"recorded_quantity"`
	ReplayedQuantity int64  `json:"replayed_quantity"`
	MovementCount    int    `json:"movement_count"`
	Consistent       bool   `json:"consistent"`
}
