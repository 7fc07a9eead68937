package usecase

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
)

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	const op = "list-movements"
	f := *filters
	f.Normalize()

	var owner model.OwnerRef
	if f.Owner != nil {
		owner = *f.Owner
		if err := owner.Validate(); err != nil {
			return nil, 0, &inventory.StockError{Op: op, Owner: owner, Err: err}
		}
	}
	if f.Reason != "" && !f.Reason.Valid() {
		return nil, 0, &inventory.StockError{Op: op, Owner: owner, Err: fmt.Errorf("%w: %q", inventory.ErrInvalidReason, f.Reason)}
	}

	if f.Owner != nil {
		rec, err := uc.repo.GetByOwner(ctx, owner)
		if err != nil {
			return nil, 0, uc.fail(op, owner, err)
		}
		if rec == nil {
			return []model.StockMovement{}, 0, nil
		}
		f.InventoryID = rec.ID
	}

	items, count, err := uc.repo.ListMovements(ctx, &f)
	if err != nil {
		return nil, 0, uc.fail(op, owner, err)
	}
	return items, count, nil
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryRecord, int, error) {
	return uc.listByStock(ctx, filters, dto.StockLow)
}

func (uc *inventoryUseCase) ListOutOfStock(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryRecord, int, error) {
	return uc.listByStock(ctx, filters, dto.StockOut)
}

func (uc *inventoryUseCase) ListReorderNeeded(ctx context.Context, filters *dto.InventoryFilters) ([]model.InventoryRecord, int, error) {
	return uc.listByStock(ctx, filters, dto.StockReorderNeeded)
}

func (uc *inventoryUseCase) listByStock(ctx context.Context, filters *dto.InventoryFilters, stock dto.StockFilter) ([]model.InventoryRecord, int, error) {
	f := *filters
	f.Stock = stock
	f.Normalize()

	if f.OwnerKind != "" {
		if _, err := model.ParseOwnerKind(string(f.OwnerKind)); err != nil {
			return nil, 0, &inventory.StockError{Op: "list-" + string(stock), Err: err}
		}
	}

	items, count, err := uc.repo.FindAll(ctx, &f)
	if err != nil {
		return nil, 0, uc.fail("list-"+string(stock), model.OwnerRef{}, err)
	}
	return items, count, nil
}

// Reconcile replays a record's movements from zero and compares the result
// with the cached quantity on the record.
func (uc *inventoryUseCase) Reconcile(ctx context.Context, owner model.OwnerRef) (*model.Reconciliation, error) {
	const op = "reconcile"
	if err := owner.Validate(); err != nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: err}
	}

	rec, err := uc.repo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, uc.fail(op, owner, err)
	}
	if rec == nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: inventory.ErrNotFound}
	}

	movements, err := uc.repo.ReplayMovements(ctx, rec.ID)
	if err != nil {
		return nil, uc.fail(op, owner, err)
	}

	var replayed int64
	for _, m := range movements {
		replayed += m.QuantityDifference
	}

	return &model.Reconciliation{
		InventoryID:      rec.ID,
		RecordedQuantity: rec.Quantity,
		ReplayedQuantity: replayed,
		MovementCount:    len(movements),
		Consistent:       replayed == rec.Quantity,
	}, nil
}
