package repository

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-inventory-service/pkg/database"
	"github.com/jmoiron/sqlx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Migrate creates the ledger tables and indexes if they don't exist.
// Safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	file := "schema/postgres.sql"
	if database.DialectOf(db.DriverName()) == database.DialectSQLite {
		file = "schema/sqlite.sql"
	}

	raw, err := schemaFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file, err)
	}

	for _, stmt := range strings.Split(string(raw), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
