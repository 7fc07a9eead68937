package usecase

import (
	"context"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/database"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// afterMutation refreshes the cached snapshot and emits stock events once
// the outermost transaction commits. Nothing runs if it rolls back.
func (uc *inventoryUseCase) afterMutation(ctx context.Context, before, after *model.InventoryRecord) {
	snapshot := *after
	events := uc.stockEvents(before, &snapshot)
	if uc.cache == nil && len(events) == 0 {
		return
	}

	database.AfterCommit(ctx, func() {
		if uc.cache != nil {
			uc.refreshCache(ctx, &snapshot)
		}
		for _, event := range events {
			if err := uc.publisher.PublishStockEvent(ctx, event); err != nil {
				uc.logger.Warn("failed to publish stock event",
					zap.String("event_type", string(event.EventType)),
					zap.String("owner", snapshot.Owner().Key()),
					zap.Error(err),
				)
			}
		}
	})
}

func (uc *inventoryUseCase) refreshCache(ctx context.Context, rec *model.InventoryRecord) {
	key := cacheKey(rec.Owner())
	_, err := uc.cache.SetJSON(ctx, key, rec, snapshotVersion(rec), uc.cfg.CacheTTL)
	if err == nil {
		return
	}
	uc.logger.Warn("inventory cache refresh failed", zap.String("owner", rec.Owner().Key()), zap.Error(err))
	if err := uc.cache.Delete(ctx, key); err != nil {
		uc.logger.Warn("inventory cache eviction failed", zap.String("owner", rec.Owner().Key()), zap.Error(err))
	}
}

func (uc *inventoryUseCase) stockEvents(before, after *model.InventoryRecord) []*model.StockEvent {
	if uc.publisher == nil {
		return nil
	}

	var events []*model.StockEvent
	prevStatus, status := before.Status(), after.Status()
	if prevStatus != status {
		events = append(events, uc.newStockEvent(model.EventStockStatusChanged, prevStatus, after))
	}
	if reorder := after.Reorder(); reorder.Needed && !before.Reorder().Needed {
		event := uc.newStockEvent(model.EventStockReorderNeeded, prevStatus, after)
		event.ReorderQuantity = reorder.Quantity
		events = append(events, event)
	}
	return events
}

func (uc *inventoryUseCase) newStockEvent(eventType model.StockEventType, prev model.StockStatus, rec *model.InventoryRecord) *model.StockEvent {
	return &model.StockEvent{
		EventID:           uuid.New().String(),
		EventType:         eventType,
		InventoryID:       rec.ID,
		OwnerKind:         rec.OwnerKind,
		OwnerID:           rec.OwnerID,
		Quantity:          rec.Quantity,
		ReservedQuantity:  rec.ReservedQuantity,
		AvailableQuantity: rec.AvailableQuantity(),
		PreviousStatus:    prev,
		Status:            rec.Status(),
		OccurredAt:        uc.now(),
	}
}
