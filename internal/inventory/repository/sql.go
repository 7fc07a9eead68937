package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-inventory-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/database"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const recordColumns = `id, owner_kind, owner_id, quantity, reserved_quantity,
            low_stock_threshold, reorder_point, reorder_quantity,
            last_counted_at, created_at, updated_at`

const movementColumns = `seq, id, inventory_id, direction, quantity_before, quantity_after,
            quantity_difference, reason, notes, actor_id, created_at`

var errLockOutsideTx = errors.New("row lock requested outside a transaction")

// SQLRepository stores the ledger in PostgreSQL or SQLite. Queries are
// written with '?' placeholders and rebound for the active driver.
type SQLRepository struct {
	DB      *sqlx.DB
	dialect database.Dialect
	now     func() time.Time
}

func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{
		DB:      db,
		dialect: database.DialectOf(db.DriverName()),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (r *SQLRepository) exec(ctx context.Context) database.Executor {
	return database.GetExecutor(ctx, r.DB)
}

func (r *SQLRepository) EnsureRecord(ctx context.Context, owner model.OwnerRef, defaults model.Thresholds) error {
	now := r.now()
	rec := &model.InventoryRecord{
		ID:                uuid.New().String(),
		OwnerKind:         owner.Kind,
		OwnerID:           owner.ID,
		LowStockThreshold: defaults.LowStockThreshold,
		ReorderPoint:      defaults.ReorderPoint,
		ReorderQuantity:   defaults.ReorderQuantity,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	query := `
        INSERT INTO inventory_records (
            id, owner_kind, owner_id, quantity, reserved_quantity,
            low_stock_threshold, reorder_point, reorder_quantity,
            created_at, updated_at
        )
        VALUES (
            :id, :owner_kind, :owner_id, 0, 0,
            :low_stock_threshold, :reorder_point, :reorder_quantity,
            :created_at, :updated_at
        )
        ON CONFLICT (owner_kind, owner_id) DO NOTHING
    `
	_, err := r.exec(ctx).NamedExecContext(ctx, query, rec)
	if err != nil {
		return fmt.Errorf("failed to ensure inventory record: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetByOwner(ctx context.Context, owner model.OwnerRef) (*model.InventoryRecord, error) {
	ex := r.exec(ctx)
	query := ex.Rebind(`SELECT ` + recordColumns + ` FROM inventory_records WHERE owner_kind = ? AND owner_id = ?`)

	var rec model.InventoryRecord
	err := ex.GetContext(ctx, &rec, query, owner.Kind, owner.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // caller decides between NotFound and auto-create
		}
		return nil, fmt.Errorf("failed to get inventory record: %w", err)
	}
	return &rec, nil
}

// LockByOwner reads the record and holds an exclusive lock on it until the
// surrounding transaction ends. On PostgreSQL this is a row lock bounded by
// the transaction's lock_timeout; SQLite transactions start IMMEDIATE and
// already hold the database write lock.
func (r *SQLRepository) LockByOwner(ctx context.Context, owner model.OwnerRef) (*model.InventoryRecord, error) {
	if !database.InTransaction(ctx) {
		return nil, errLockOutsideTx
	}
	ex := r.exec(ctx)

	var rec model.InventoryRecord
	err := ex.GetContext(ctx, &rec, ex.Rebind(lockQuery(r.dialect)), owner.Kind, owner.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock inventory record: %w", err)
	}
	return &rec, nil
}

func lockQuery(dialect database.Dialect) string {
	query := `SELECT ` + recordColumns + ` FROM inventory_records WHERE owner_kind = ? AND owner_id = ?`
	if dialect == database.DialectPostgres {
		query += ` FOR UPDATE`
	}
	return query
}

func (r *SQLRepository) FindAll(ctx context.Context, f *dto.InventoryFilters) ([]model.InventoryRecord, int, error) {
	ex := r.exec(ctx)
	var items []model.InventoryRecord
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.OwnerKind != "" {
		conditions = append(conditions, "owner_kind = :owner_kind")
		args["owner_kind"] = f.OwnerKind
	}
	switch f.Stock {
	case dto.StockLow:
		conditions = append(conditions, "quantity > 0 AND quantity <= low_stock_threshold")
	case dto.StockOut:
		conditions = append(conditions, "quantity <= 0")
	case dto.StockReorderNeeded:
		conditions = append(conditions, "reorder_point > 0 AND quantity <= reorder_point")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := r.named(ex, "SELECT count(*) FROM inventory_records"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := ex.GetContext(ctx, &count, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count inventory records: %w", err)
	}

	query := "SELECT " + recordColumns + " FROM inventory_records" + whereClause +
		" ORDER BY quantity ASC, updated_at DESC, id ASC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	listQuery, listArgs, err := r.named(ex, query, args)
	if err != nil {
		return nil, 0, err
	}
	if err := ex.SelectContext(ctx, &items, listQuery, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list inventory records: %w", err)
	}
	return items, count, nil
}

// UpdateRecord persists reservation and threshold fields. Quantity is only
// ever written together with a movement, see AdjustStockWithMovement.
func (r *SQLRepository) UpdateRecord(ctx context.Context, rec *model.InventoryRecord) error {
	query := `
        UPDATE inventory_records SET
            reserved_quantity = :reserved_quantity,
            low_stock_threshold = :low_stock_threshold,
            reorder_point = :reorder_point,
            reorder_quantity = :reorder_quantity,
            updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := r.exec(ctx).NamedExecContext(ctx, query, rec); err != nil {
		return fmt.Errorf("failed to update inventory record: %w", err)
	}
	return nil
}

// AdjustStockWithMovement writes the new quantity and its audit movement.
// Both statements run on the caller's transaction, so they land together.
func (r *SQLRepository) AdjustStockWithMovement(ctx context.Context, rec *model.InventoryRecord, movement *model.StockMovement) error {
	ex := r.exec(ctx)

	// 1. Update inventory
	updateQuery := `
        UPDATE inventory_records SET
            quantity = :quantity,
            last_counted_at = :last_counted_at,
            updated_at = :updated_at
        WHERE id = :id
    `
	if _, err := ex.NamedExecContext(ctx, updateQuery, rec); err != nil {
		return fmt.Errorf("failed to update inventory: %w", err)
	}

	// 2. Log movement
	insertLogQuery := `
        INSERT INTO stock_movements (
            id, inventory_id, direction, quantity_before, quantity_after,
            quantity_difference, reason, notes, actor_id, created_at
        )
        VALUES (
            :id, :inventory_id, :direction, :quantity_before, :quantity_after,
            :quantity_difference, :reason, :notes, :actor_id, :created_at
        )
    `
	if _, err := ex.NamedExecContext(ctx, insertLogQuery, movement); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}
	return nil
}

func (r *SQLRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	ex := r.exec(ctx)
	var items []model.StockMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.InventoryID != "" {
		conditions = append(conditions, "inventory_id = :inventory_id")
		args["inventory_id"] = f.InventoryID
	}
	if f.Reason != "" {
		conditions = append(conditions, "reason = :reason")
		args["reason"] = f.Reason
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = f.StartDate.UTC()
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at <= :end_date")
		args["end_date"] = f.EndDate.UTC()
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery, countArgs, err := r.named(ex, "SELECT count(*) FROM stock_movements"+whereClause, args)
	if err != nil {
		return nil, 0, err
	}
	if err := ex.GetContext(ctx, &count, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to count movements: %w", err)
	}

	query := "SELECT " + movementColumns + " FROM stock_movements" + whereClause + " ORDER BY created_at DESC, seq DESC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	listQuery, listArgs, err := r.named(ex, query, args)
	if err != nil {
		return nil, 0, err
	}
	if err := ex.SelectContext(ctx, &items, listQuery, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("failed to list movements: %w", err)
	}
	return items, count, nil
}

// ReplayMovements returns every movement of a record in creation order.
func (r *SQLRepository) ReplayMovements(ctx context.Context, inventoryID string) ([]model.StockMovement, error) {
	ex := r.exec(ctx)
	query := ex.Rebind(`SELECT ` + movementColumns + ` FROM stock_movements WHERE inventory_id = ? ORDER BY seq ASC`)

	var items []model.StockMovement
	if err := ex.SelectContext(ctx, &items, query, inventoryID); err != nil {
		return nil, fmt.Errorf("failed to replay movements: %w", err)
	}
	return items, nil
}

// named expands :name parameters and rebinds them for the active driver.
func (r *SQLRepository) named(ex database.Executor, query string, args map[string]interface{}) (string, []interface{}, error) {
	q, a, err := sqlx.Named(query, args)
	if err != nil {
		return "", nil, fmt.Errorf("failed to bind query: %w", err)
	}
	return ex.Rebind(q), a, nil
}
