package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/cache"
	"github.com/fekuna/omnipos-inventory-service/pkg/database"
	"github.com/fekuna/omnipos-inventory-service/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Config struct {
	Defaults     model.Thresholds
	VerifyOwners bool
	CacheTTL     time.Duration
}

type Option func(*inventoryUseCase)

func WithCache(c *cache.RedisClient) Option {
	return func(uc *inventoryUseCase) { uc.cache = c }
}

func WithPublisher(p inventory.EventPublisher) Option {
	return func(uc *inventoryUseCase) { uc.publisher = p }
}

func WithOwnerDirectory(d inventory.OwnerDirectory) Option {
	return func(uc *inventoryUseCase) { uc.owners = d }
}

func WithClock(now func() time.Time) Option {
	return func(uc *inventoryUseCase) { uc.now = now }
}

type inventoryUseCase struct {
	repo      inventory.Repository
	tx        inventory.Transactor
	cache     *cache.RedisClient
	publisher inventory.EventPublisher
	owners    inventory.OwnerDirectory
	logger    logger.ZapLogger
	cfg       Config
	now       func() time.Time
}

func NewInventoryUseCase(repo inventory.Repository, tx inventory.Transactor, log logger.ZapLogger, cfg Config, opts ...Option) inventory.UseCase {
	uc := &inventoryUseCase{
		repo:   repo,
		tx:     tx,
		logger: log,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *inventoryUseCase) ResolveOrCreate(ctx context.Context, owner model.OwnerRef) (*model.InventoryRecord, error) {
	const op = "resolve"
	if err := owner.Validate(); err != nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: err}
	}
	if err := uc.verifyOwner(ctx, op, owner); err != nil {
		return nil, err
	}

	var rec *model.InventoryRecord
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.repo.EnsureRecord(ctx, owner, uc.cfg.Defaults); err != nil {
			return err
		}
		var err error
		rec, err = uc.repo.GetByOwner(ctx, owner)
		return err
	})
	if err != nil {
		return nil, uc.fail(op, owner, err)
	}
	return rec, nil
}

func (uc *inventoryUseCase) GetInventory(ctx context.Context, owner model.OwnerRef) (*model.InventoryRecord, error) {
	const op = "get"
	if err := owner.Validate(); err != nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: err}
	}

	// Inside a transaction the caller must see its own uncommitted writes.
	useCache := uc.cache != nil && !database.InTransaction(ctx)
	if useCache {
		var cached model.InventoryRecord
		found, err := uc.cache.GetJSON(ctx, cacheKey(owner), &cached)
		if err != nil {
			uc.logger.Warn("inventory cache read failed", zap.String("owner", owner.Key()), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	rec, err := uc.repo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, uc.fail(op, owner, err)
	}
	if rec == nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: inventory.ErrNotFound}
	}

	if useCache {
		// A writer that committed after our read has already stored a newer
		// snapshot; the version check keeps it.
		if _, err := uc.cache.SetJSON(ctx, cacheKey(owner), rec, snapshotVersion(rec), uc.cfg.CacheTTL); err != nil {
			uc.logger.Warn("inventory cache write failed", zap.String("owner", owner.Key()), zap.Error(err))
		}
	}
	return rec, nil
}

func (uc *inventoryUseCase) AdjustQuantity(ctx context.Context, input *dto.AdjustQuantityInput) (*model.InventoryRecord, error) {
	const op = "adjust"
	owner := input.Owner
	if err := owner.Validate(); err != nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: err}
	}
	if !input.Reason.Adjustable() {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: fmt.Errorf("%w: %q", inventory.ErrInvalidReason, input.Reason)}
	}
	if input.Delta == 0 {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: fmt.Errorf("%w: delta must be non-zero", inventory.ErrInvalidQuantity)}
	}
	if err := uc.verifyOwner(ctx, op, owner); err != nil {
		return nil, err
	}

	var result *model.InventoryRecord
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.repo.EnsureRecord(ctx, owner, uc.cfg.Defaults); err != nil {
			return err
		}
		rec, err := uc.lock(ctx, op, owner)
		if err != nil {
			return err
		}
		before := *rec

		now := uc.now()
		rec.Quantity = before.Quantity + input.Delta
		rec.UpdatedAt = now

		movement := newMovement(rec.ID, before.Quantity, rec.Quantity, input.Reason, input.Notes, input.ActorID, now)
		if err := uc.repo.AdjustStockWithMovement(ctx, rec, movement); err != nil {
			return err
		}

		uc.afterMutation(ctx, &before, rec)
		result = rec
		return nil
	})
	if err != nil {
		return nil, uc.fail(op, owner, err)
	}

	uc.logger.Info("inventory adjusted",
		zap.String("owner", owner.Key()),
		zap.Int64("delta", input.Delta),
		zap.String("reason", string(input.Reason)),
		zap.Int64("quantity", result.Quantity),
	)
	return result, nil
}

func (uc *inventoryUseCase) Reserve(ctx context.Context, owner model.OwnerRef, qty int64) (*model.InventoryRecord, error) {
	const op = "reserve"
	if err := owner.Validate(); err != nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: err}
	}
	if qty <= 0 {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: fmt.Errorf("%w: reserve quantity must be positive", inventory.ErrInvalidQuantity)}
	}

	var result *model.InventoryRecord
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rec, err := uc.lock(ctx, op, owner)
		if err != nil {
			return err
		}
		if available := rec.AvailableQuantity(); available < qty {
			return &inventory.StockError{Op: op, Owner: owner, Requested: qty, Available: available, Err: inventory.ErrInsufficientStock}
		}
		before := *rec

		rec.ReservedQuantity += qty
		rec.UpdatedAt = uc.now()
		if err := uc.repo.UpdateRecord(ctx, rec); err != nil {
			return err
		}

		uc.afterMutation(ctx, &before, rec)
		result = rec
		return nil
	})
	if err != nil {
		return nil, uc.fail(op, owner, err)
	}
	return result, nil
}

func (uc *inventoryUseCase) Release(ctx context.Context, owner model.OwnerRef, qty int64) (*model.InventoryRecord, error) {
	const op = "release"
	if err := owner.Validate(); err != nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: err}
	}
	if qty <= 0 {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: fmt.Errorf("%w: release quantity must be positive", inventory.ErrInvalidQuantity)}
	}

	var result *model.InventoryRecord
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rec, err := uc.lock(ctx, op, owner)
		if err != nil {
			return err
		}
		if qty > rec.ReservedQuantity {
			return &inventory.StockError{Op: op, Owner: owner, Requested: qty, Available: rec.ReservedQuantity, Err: inventory.ErrInvalidRelease}
		}
		before := *rec

		rec.ReservedQuantity -= qty
		rec.UpdatedAt = uc.now()
		if err := uc.repo.UpdateRecord(ctx, rec); err != nil {
			return err
		}

		uc.afterMutation(ctx, &before, rec)
		result = rec
		return nil
	})
	if err != nil {
		return nil, uc.fail(op, owner, err)
	}
	return result, nil
}

func (uc *inventoryUseCase) PhysicalCount(ctx context.Context, input *dto.PhysicalCountInput) (*model.InventoryRecord, error) {
	const op = "count"
	owner := input.Owner
	if err := owner.Validate(); err != nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: err}
	}
	if input.CountedQuantity < 0 {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: fmt.Errorf("%w: counted quantity cannot be negative", inventory.ErrInvalidQuantity)}
	}

	var result *model.InventoryRecord
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		rec, err := uc.lock(ctx, op, owner)
		if err != nil {
			return err
		}
		before := *rec

		now := uc.now()
		rec.Quantity = input.CountedQuantity
		rec.LastCountedAt = &now
		rec.UpdatedAt = now

		movement := newMovement(rec.ID, before.Quantity, rec.Quantity, model.ReasonCount, input.Notes, input.ActorID, now)
		if err := uc.repo.AdjustStockWithMovement(ctx, rec, movement); err != nil {
			return err
		}

		uc.afterMutation(ctx, &before, rec)
		result = rec
		return nil
	})
	if err != nil {
		return nil, uc.fail(op, owner, err)
	}

	uc.logger.Info("physical count recorded",
		zap.String("owner", owner.Key()),
		zap.Int64("counted", input.CountedQuantity),
	)
	return result, nil
}

func (uc *inventoryUseCase) UpdateThresholds(ctx context.Context, input *dto.UpdateThresholdsInput) (*model.InventoryRecord, error) {
	const op = "thresholds"
	owner := input.Owner
	if err := owner.Validate(); err != nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: err}
	}
	for _, v := range []*int64{input.LowStockThreshold, input.ReorderPoint, input.ReorderQuantity} {
		if v != nil && *v < 0 {
			return nil, &inventory.StockError{Op: op, Owner: owner, Err: fmt.Errorf("%w: thresholds cannot be negative", inventory.ErrInvalidQuantity)}
		}
	}
	if err := uc.verifyOwner(ctx, op, owner); err != nil {
		return nil, err
	}

	var result *model.InventoryRecord
	err := uc.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := uc.repo.EnsureRecord(ctx, owner, uc.cfg.Defaults); err != nil {
			return err
		}
		rec, err := uc.lock(ctx, op, owner)
		if err != nil {
			return err
		}
		before := *rec

		if input.LowStockThreshold != nil {
			rec.LowStockThreshold = *input.LowStockThreshold
		}
		if input.ReorderPoint != nil {
			rec.ReorderPoint = *input.ReorderPoint
		}
		if input.ReorderQuantity != nil {
			rec.ReorderQuantity = *input.ReorderQuantity
		}
		rec.UpdatedAt = uc.now()
		if err := uc.repo.UpdateRecord(ctx, rec); err != nil {
			return err
		}

		uc.afterMutation(ctx, &before, rec)
		result = rec
		return nil
	})
	if err != nil {
		return nil, uc.fail(op, owner, err)
	}
	return result, nil
}

// lock takes the record's exclusive lock. A missing record is NotFound:
// only adjust and threshold updates create records, and they ensure the
// row exists before locking.
func (uc *inventoryUseCase) lock(ctx context.Context, op string, owner model.OwnerRef) (*model.InventoryRecord, error) {
	rec, err := uc.repo.LockByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, &inventory.StockError{Op: op, Owner: owner, Err: inventory.ErrNotFound}
	}
	return rec, nil
}

func (uc *inventoryUseCase) verifyOwner(ctx context.Context, op string, owner model.OwnerRef) error {
	if !uc.cfg.VerifyOwners || uc.owners == nil {
		return nil
	}
	exists, err := uc.owners.Exists(ctx, owner)
	if err != nil {
		return uc.fail(op, owner, err)
	}
	if !exists {
		return &inventory.StockError{Op: op, Owner: owner, Err: inventory.ErrNotFound}
	}
	return nil
}

// fail turns an infrastructure error into the ledger taxonomy. Errors that
// already carry a ledger sentinel pass through unchanged.
func (uc *inventoryUseCase) fail(op string, owner model.OwnerRef, err error) error {
	var stockErr *inventory.StockError
	if errors.As(err, &stockErr) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return &inventory.StockError{Op: op, Owner: owner, Err: err}
	}

	kind := inventory.ErrStorageFailure
	if database.IsLockTimeout(err) {
		kind = inventory.ErrLockTimeout
	}
	uc.logger.Error("inventory operation failed",
		zap.String("op", op),
		zap.String("owner", owner.Key()),
		zap.Error(err),
	)
	return &inventory.StockError{Op: op, Owner: owner, Err: fmt.Errorf("%w: %w", kind, err)}
}

func newMovement(inventoryID string, before, after int64, reason model.Reason, notes, actorID string, at time.Time) *model.StockMovement {
	return &model.StockMovement{
		ID:                 uuid.New().String(),
		InventoryID:        inventoryID,
		Direction:          model.DirectionOf(before, after),
		QuantityBefore:     before,
		QuantityAfter:      after,
		QuantityDifference: after - before,
		Reason:             reason,
		Notes:              optional(notes),
		ActorID:            optional(actorID),
		CreatedAt:          at,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cacheKey(owner model.OwnerRef) string {
	return "inventory:" + owner.Key()
}

func snapshotVersion(rec *model.InventoryRecord) int64 {
	return rec.UpdatedAt.UnixMicro()
}
