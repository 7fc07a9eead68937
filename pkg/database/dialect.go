package database

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// DialectOf maps a database/sql driver name to the SQL dialect it speaks.
func DialectOf(driverName string) Dialect {
	switch driverName {
	case "sqlite3", "sqlite":
		return DialectSQLite
	default:
		return DialectPostgres
	}
}
