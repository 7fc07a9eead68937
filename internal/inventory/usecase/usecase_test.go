package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOrCreate(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()

	rec, err := env.uc.ResolveOrCreate(ctx, model.Variant("v-1"))
	require.NoError(t, err)
	assert.Equal(t, model.OwnerVariant, rec.OwnerKind)
	assert.Equal(t, "v-1", rec.OwnerID)
	assert.Zero(t, rec.Quantity)
	assert.Zero(t, rec.ReservedQuantity)
	assert.Equal(t, testDefaults.LowStockThreshold, rec.LowStockThreshold)

	again, err := env.uc.ResolveOrCreate(ctx, model.Variant("v-1"))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)
	assert.Equal(t, 0, env.movementCount(t), "implicit creation writes no movement")

	// Same id under another kind is a different owner.
	product, err := env.uc.ResolveOrCreate(ctx, model.Product("v-1"))
	require.NoError(t, err)
	assert.NotEqual(t, rec.ID, product.ID)
}

func TestResolveOrCreate_ConcurrentFirstTouch(t *testing.T) {
	env := newLedger(t, 5*time.Second)
	owner := model.Product("p-race")

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := env.uc.ResolveOrCreate(context.Background(), owner)
			if assert.NoError(t, err) {
				ids[i] = rec.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var n int
	require.NoError(t, env.db.Get(&n, `SELECT count(*) FROM inventory_records`))
	assert.Equal(t, 1, n)
}

func TestAdjustQuantity_ScenarioA(t *testing.T) {
	env := newLedger(t, time.Second)
	owner := model.Product("p-1")

	rec := env.adjust(t, owner, 100, model.ReasonPurchase)
	assert.Equal(t, int64(100), rec.Quantity)

	movements, total, err := env.uc.ListMovements(context.Background(), &dto.MovementFilters{Owner: &owner})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	m := movements[0]
	assert.Equal(t, int64(0), m.QuantityBefore)
	assert.Equal(t, int64(100), m.QuantityAfter)
	assert.Equal(t, int64(100), m.QuantityDifference)
	assert.Equal(t, model.DirectionIn, m.Direction)
	assert.Equal(t, model.ReasonPurchase, m.Reason)
	assert.Equal(t, rec.ID, m.InventoryID)
}

func TestAdjustQuantity_AllowsNegativeResult(t *testing.T) {
	env := newLedger(t, time.Second)
	owner := model.Product("p-neg")

	env.adjust(t, owner, 3, model.ReasonPurchase)
	rec := env.adjust(t, owner, -5, model.ReasonAdjustment)
	assert.Equal(t, int64(-2), rec.Quantity)
	assert.Equal(t, model.StatusOutOfStock, rec.Status())
}

func TestAdjustQuantity_RecordsNotesAndActor(t *testing.T) {
	env := newLedger(t, time.Second)
	owner := model.Variant("v-notes")
	ctx := context.Background()

	_, err := env.uc.AdjustQuantity(ctx, &dto.AdjustQuantityInput{
		Owner:   owner,
		Delta:   -1,
		Reason:  model.ReasonDamage,
		Notes:   "dropped pallet",
		ActorID: "user-7",
	})
	require.NoError(t, err)

	movements, _, err := env.uc.ListMovements(ctx, &dto.MovementFilters{Owner: &owner})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	require.NotNil(t, movements[0].Notes)
	require.NotNil(t, movements[0].ActorID)
	assert.Equal(t, "dropped pallet", *movements[0].Notes)
	assert.Equal(t, "user-7", *movements[0].ActorID)
	assert.Equal(t, model.DirectionOut, movements[0].Direction)
}

func TestAdjustQuantity_Validation(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Product("p-invalid")

	tests := []struct {
		name  string
		input *dto.AdjustQuantityInput
		want  error
	}{
		{"unknown reason", &dto.AdjustQuantityInput{Owner: owner, Delta: 1, Reason: "gift"}, inventory.ErrInvalidReason},
		{"empty reason", &dto.AdjustQuantityInput{Owner: owner, Delta: 1}, inventory.ErrInvalidReason},
		{"count reason", &dto.AdjustQuantityInput{Owner: owner, Delta: 5, Reason: model.ReasonCount}, inventory.ErrInvalidReason},
		{"zero delta", &dto.AdjustQuantityInput{Owner: owner, Delta: 0, Reason: model.ReasonPurchase}, inventory.ErrInvalidQuantity},
		{"bad owner kind", &dto.AdjustQuantityInput{Owner: model.OwnerRef{Kind: "bundle", ID: "1"}, Delta: 1, Reason: model.ReasonPurchase}, inventory.ErrInvalidOwner},
		{"empty owner id", &dto.AdjustQuantityInput{Owner: model.Product(""), Delta: 1, Reason: model.ReasonPurchase}, inventory.ErrInvalidOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.uc.AdjustQuantity(ctx, tt.input)
			require.ErrorIs(t, err, tt.want)
			assert.False(t, inventory.IsRetryable(err))
		})
	}

	_, err := env.uc.GetInventory(ctx, owner)
	assert.ErrorIs(t, err, inventory.ErrNotFound, "failed validation must not create the record")
	assert.Equal(t, 0, env.movementCount(t))
}

func TestReserveRelease_ScenarioB(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Product("p-b")
	env.adjust(t, owner, 100, model.ReasonPurchase)

	rec, err := env.uc.Reserve(ctx, owner, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), rec.ReservedQuantity)
	assert.Equal(t, int64(70), rec.AvailableQuantity())
	assert.Equal(t, 1, env.movementCount(t), "a reservation is not a stock movement")

	rec = env.adjust(t, owner, -30, model.ReasonSale)
	assert.Equal(t, int64(70), rec.Quantity)
	assert.Equal(t, int64(30), rec.ReservedQuantity)

	rec, err = env.uc.Release(ctx, owner, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.ReservedQuantity)
	assert.Equal(t, int64(70), rec.AvailableQuantity())
}

func TestReserve_ScenarioC_InsufficientStock(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Product("p-c")
	env.adjust(t, owner, 5, model.ReasonPurchase)

	_, err := env.uc.Reserve(ctx, owner, 10)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var stockErr *inventory.StockError
	require.True(t, errors.As(err, &stockErr))
	assert.Equal(t, int64(10), stockErr.Requested)
	assert.Equal(t, int64(5), stockErr.Available)
	assert.Contains(t, err.Error(), "requested 10, available 5")

	rec := env.record(t, owner)
	assert.Equal(t, int64(5), rec.Quantity)
	assert.Equal(t, int64(0), rec.ReservedQuantity)
}

func TestReserve_Safety(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Variant("v-safe")
	env.adjust(t, owner, 10, model.ReasonPurchase)

	rec, err := env.uc.Reserve(ctx, owner, 10)
	require.NoError(t, err, "reserving exactly the available quantity succeeds")
	assert.Equal(t, int64(0), rec.AvailableQuantity())

	_, err = env.uc.Reserve(ctx, owner, 1)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, int64(10), env.record(t, owner).ReservedQuantity)
}

func TestReserveRelease_Validation(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Product("p-v")
	env.adjust(t, owner, 10, model.ReasonPurchase)

	for _, qty := range []int64{0, -1} {
		_, err := env.uc.Reserve(ctx, owner, qty)
		assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
		_, err = env.uc.Release(ctx, owner, qty)
		assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	}
}

func TestRelease_MoreThanHeld(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Product("p-rel")
	env.adjust(t, owner, 10, model.ReasonPurchase)
	_, err := env.uc.Reserve(ctx, owner, 4)
	require.NoError(t, err)

	_, err = env.uc.Release(ctx, owner, 5)
	require.ErrorIs(t, err, inventory.ErrInvalidRelease)
	assert.Equal(t, int64(4), env.record(t, owner).ReservedQuantity, "over-release must not clamp")
}

func TestNeverReferencedOwner_NotFound(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Variant("ghost")

	_, err := env.uc.Reserve(ctx, owner, 1)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = env.uc.Release(ctx, owner, 1)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = env.uc.PhysicalCount(ctx, &dto.PhysicalCountInput{Owner: owner, CountedQuantity: 3})
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = env.uc.GetInventory(ctx, owner)
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = env.uc.Reconcile(ctx, owner)
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	rec, err := env.repo.GetByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestPhysicalCount_ScenarioD(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Product("p-d")
	env.adjust(t, owner, 50, model.ReasonPurchase)
	_, err := env.uc.Reserve(ctx, owner, 7)
	require.NoError(t, err)

	rec, err := env.uc.PhysicalCount(ctx, &dto.PhysicalCountInput{Owner: owner, CountedQuantity: 42, ActorID: "counter-1"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.Quantity)
	assert.Equal(t, int64(7), rec.ReservedQuantity, "counting does not touch reservations")
	require.NotNil(t, rec.LastCountedAt)

	movements, _, err := env.uc.ListMovements(ctx, &dto.MovementFilters{Owner: &owner})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	m := movements[0]
	assert.Equal(t, int64(50), m.QuantityBefore)
	assert.Equal(t, int64(42), m.QuantityAfter)
	assert.Equal(t, int64(-8), m.QuantityDifference)
	assert.Equal(t, model.DirectionOut, m.Direction)
	assert.Equal(t, model.ReasonCount, m.Reason)

	stored := env.record(t, owner)
	require.NotNil(t, stored.LastCountedAt)
	assert.True(t, rec.LastCountedAt.Equal(*stored.LastCountedAt))
}

func TestPhysicalCount_AlwaysWritesOneMovement(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Product("p-idem")
	env.adjust(t, owner, 12, model.ReasonPurchase)

	for i := 0; i < 2; i++ {
		rec, err := env.uc.PhysicalCount(ctx, &dto.PhysicalCountInput{Owner: owner, CountedQuantity: 12})
		require.NoError(t, err)
		assert.Equal(t, int64(12), rec.Quantity)
	}

	movements, total, err := env.uc.ListMovements(ctx, &dto.MovementFilters{Owner: &owner, Reason: model.ReasonCount})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, m := range movements {
		assert.Zero(t, m.QuantityDifference)
		assert.Equal(t, model.DirectionIn, m.Direction)
	}

	_, err = env.uc.PhysicalCount(ctx, &dto.PhysicalCountInput{Owner: owner, CountedQuantity: -1})
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestReconcile_ReplayMatchesQuantity(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Variant("v-replay")

	env.adjust(t, owner, 40, model.ReasonPurchase)
	env.adjust(t, owner, -12, model.ReasonSale)
	env.adjust(t, owner, 3, model.ReasonReturn)
	_, err := env.uc.PhysicalCount(ctx, &dto.PhysicalCountInput{Owner: owner, CountedQuantity: 29})
	require.NoError(t, err)
	env.adjust(t, owner, -30, model.ReasonTheft)
	_, err = env.uc.Reserve(ctx, owner, 1)
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	rec := env.record(t, owner)
	assert.Equal(t, int64(-1), rec.Quantity)

	result, err := env.uc.Reconcile(ctx, owner)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, 5, result.MovementCount)
	assert.Equal(t, rec.Quantity, result.ReplayedQuantity)

	// Every movement continues where the previous one ended.
	movements, err := env.repo.ReplayMovements(ctx, rec.ID)
	require.NoError(t, err)
	var q int64
	for _, m := range movements {
		assert.Equal(t, q, m.QuantityBefore)
		q = m.QuantityAfter
	}
	assert.Equal(t, rec.Quantity, q)
}

func TestUpdateThresholds(t *testing.T) {
	env := newLedger(t, time.Second)
	ctx := context.Background()
	owner := model.Product("p-th")
	low, point, qty := int64(3), int64(5), int64(40)

	rec, err := env.uc.UpdateThresholds(ctx, &dto.UpdateThresholdsInput{
		Owner:             owner,
		LowStockThreshold: &low,
		ReorderPoint:      &point,
		ReorderQuantity:   &qty,
	})
	require.NoError(t, err)
	assert.Equal(t, low, rec.LowStockThreshold)
	assert.Equal(t, point, rec.ReorderPoint)
	assert.Equal(t, qty, rec.ReorderQuantity)
	assert.Equal(t, 0, env.movementCount(t))

	newLow := int64(0)
	rec, err = env.uc.UpdateThresholds(ctx, &dto.UpdateThresholdsInput{Owner: owner, LowStockThreshold: &newLow})
	require.NoError(t, err)
	assert.Equal(t, int64(0), rec.LowStockThreshold)
	assert.Equal(t, point, rec.ReorderPoint, "unset fields keep their value")

	negative := int64(-1)
	_, err = env.uc.UpdateThresholds(ctx, &dto.UpdateThresholdsInput{Owner: owner, ReorderPoint: &negative})
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
}

func TestVerifyOwners(t *testing.T) {
	known := model.Product("catalog-1")
	env := newLedgerWithConfig(t, usecase.Config{Defaults: testDefaults, VerifyOwners: true},
		usecase.WithOwnerDirectory(stubDirectory{known: true}))
	ctx := context.Background()

	_, err := env.uc.ResolveOrCreate(ctx, known)
	require.NoError(t, err)

	_, err = env.uc.ResolveOrCreate(ctx, model.Product("unknown"))
	assert.ErrorIs(t, err, inventory.ErrNotFound)
	_, err = env.uc.AdjustQuantity(ctx, &dto.AdjustQuantityInput{Owner: model.Variant("unknown"), Delta: 1, Reason: model.ReasonPurchase})
	assert.ErrorIs(t, err, inventory.ErrNotFound)
}
