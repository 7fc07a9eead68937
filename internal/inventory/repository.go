package inventory

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

type Repository interface {
	// Inventory records
	EnsureRecord(ctx context.Context, owner model.OwnerRef, defaults model.Thresholds) error
	GetByOwner(ctx context.Context, owner model.OwnerRef) (*model.InventoryRecord, error)
	LockByOwner(ctx context.Context, owner model.OwnerRef) (*model.InventoryRecord, error)
	FindAll(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryRecord, int, error)
	UpdateRecord(ctx context.Context, rec *model.InventoryRecord) error

	// Movements / Audit
	AdjustStockWithMovement(ctx context.Context, rec *model.InventoryRecord, movement *model.StockMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	ReplayMovements(ctx context.Context, inventoryID string) ([]model.StockMovement, error)
}

// Transactor runs fn in a transaction, joining one already carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventPublisher interface {
	PublishStockEvent(ctx context.Context, event *model.StockEvent) error
}

// OwnerDirectory answers whether a product or variant exists upstream.
type OwnerDirectory interface {
	Exists(ctx context.Context, owner model.OwnerRef) (bool, error)
}
