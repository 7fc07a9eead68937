package catalog

import (
	"context"
	"fmt"

	"github.com/fekuna/omnipos-inventory-service/internal/model"
	"github.com/fekuna/omnipos-inventory-service/pkg/database"
	"github.com/jmoiron/sqlx"
)

// SQLDirectory answers whether a product or variant exists by reading the
// catalog tables (products, product_variants) from the ledger's database.
type SQLDirectory struct {
	DB *sqlx.DB
}

func NewSQLDirectory(db *sqlx.DB) *SQLDirectory {
	return &SQLDirectory{DB: db}
}

func (d *SQLDirectory) Exists(ctx context.Context, owner model.OwnerRef) (bool, error) {
	var table string
	switch owner.Kind {
	case model.OwnerProduct:
		table = "products"
	case model.OwnerVariant:
		table = "product_variants"
	default:
		return false, fmt.Errorf("%w: unknown owner kind %q", model.ErrInvalidOwner, owner.Kind)
	}

	ex := database.GetExecutor(ctx, d.DB)
	query := ex.Rebind(`SELECT count(*) FROM ` + table + ` WHERE id = ?`)

	var count int
	if err := ex.GetContext(ctx, &count, query, owner.ID); err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", owner, err)
	}
	return count > 0, nil
}
