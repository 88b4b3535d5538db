package storage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"

	"github.com/SirClappington/enqarchive/internal/domain"
)

// Dialect hides the SQL differences between supported stores.
type Dialect interface {
	Name() string
	DriverName() string
	Placeholder(n int) string
	ColumnType(c domain.Column) string
	IsDuplicateKey(err error) bool
}

// Quote quotes an identifier. Both supported dialects use ANSI double quotes.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) DriverName() string       { return "pgx" }
func (postgresDialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (postgresDialect) ColumnType(c domain.Column) string {
	switch c.Type {
	case domain.String:
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case domain.Timestamp:
		return "TIMESTAMP"
	default:
		return "BIGINT"
	}
}

func (postgresDialect) IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string           { return "sqlite3" }
func (sqliteDialect) DriverName() string     { return "sqlite3" }
func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) ColumnType(c domain.Column) string {
	switch c.Type {
	case domain.String:
		return fmt.Sprintf("VARCHAR(%d)", c.Length)
	case domain.Timestamp:
		return "DATETIME"
	default:
		return "INTEGER"
	}
}

func (sqliteDialect) IsDuplicateKey(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		se.ExtendedCode == sqlite3.ErrConstraintUnique
}

var (
	Postgres Dialect = postgresDialect{}
	SQLite   Dialect = sqliteDialect{}
)

// DialectFor maps a configured driver name to its dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	}
	return nil, fmt.Errorf("unsupported driver %q", driver)
}
