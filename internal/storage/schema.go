package storage

import (
	"context"
	"strings"

	"github.com/SirClappington/enqarchive/internal/domain"
	apperrors "github.com/SirClappington/enqarchive/internal/errors"
)

// CreateTableSQL renders a CREATE TABLE IF NOT EXISTS statement. The primary
// key is declared without any generated default so archived rows keep the
// identity they had in the live table.
func CreateTableSQL(d Dialect, table, pk string, cols []domain.Column) string {
	defs := make([]string, 0, len(cols))
	for _, c := range cols {
		def := Quote(c.Name) + " " + d.ColumnType(c)
		if c.Name == pk {
			def += " NOT NULL PRIMARY KEY"
		}
		defs = append(defs, def)
	}
	return "CREATE TABLE IF NOT EXISTS " + Quote(table) + " (\n  " + strings.Join(defs, ",\n  ") + "\n)"
}

// EnsureArchiveTable creates the archive table of d when it is absent. An
// existing table is left as is.
func (s *Store) EnsureArchiveTable(ctx context.Context, d *domain.Descriptor) error {
	q := CreateTableSQL(s.dialect, d.ArchiveTable, d.PrimaryKey, d.ArchiveColumns())
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return apperrors.StoreUnavailable("create "+d.ArchiveTable, err).WithEntity(d.Name)
	}
	return nil
}

// EnsureLiveTable creates the live table of d when it is absent. The live
// schema is owned by the request service; this exists for tests and for
// bootstrapping an empty deployment.
func (s *Store) EnsureLiveTable(ctx context.Context, d *domain.Descriptor) error {
	q := CreateTableSQL(s.dialect, d.Table, d.PrimaryKey, d.Columns)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return apperrors.StoreUnavailable("create "+d.Table, err).WithEntity(d.Name)
	}
	return nil
}
