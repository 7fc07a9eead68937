package inventory

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

// UseCase is the stock ledger. It is the only component that writes
// inventory records or stock movements.
type UseCase interface {
	ResolveOrCreate(ctx context.Context, owner model.OwnerRef) (*model.InventoryRecord, error)
	GetInventory(ctx context.Context, owner model.OwnerRef) (*model.InventoryRecord, error)

	AdjustQuantity(ctx context.Context, input *dto.AdjustQuantityInput) (*model.InventoryRecord, error)
	Reserve(ctx context.Context, owner model.OwnerRef, qty int64) (*model.InventoryRecord, error)
	Release(ctx context.Context, owner model.OwnerRef, qty int64) (*model.InventoryRecord, error)
	PhysicalCount(ctx context.Context, input *dto.PhysicalCountInput) (*model.InventoryRecord, error)
	UpdateThresholds(ctx context.Context, input *dto.UpdateThresholdsInput) (*model.InventoryRecord, error)

	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
	ListLowStock(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryRecord, int, error)
	ListOutOfStock(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryRecord, int, error)
	ListReorderNeeded(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryRecord, int, error)
	Reconcile(ctx context.Context, owner model.OwnerRef) (*model.Reconciliation, error)
}
