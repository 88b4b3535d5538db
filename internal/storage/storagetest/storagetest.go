// Package storagetest opens throwaway sqlite stores seeded with live rows.
package storagetest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SirClappington/enqarchive/internal/domain"
	"github.com/SirClappington/enqarchive/internal/storage"
)

// Open returns a sqlite store backed by a file in the test's temp dir.
func Open(t *testing.T, name string) *storage.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), name+".db")
	s, err := storage.Open(context.Background(), "sqlite3", "file:"+path+"?_busy_timeout=5000")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Request builds a live requests row.
func Request(id int64, status int64, endTime time.Time) domain.Row {
	return domain.Row{
		"id":              id,
		"file":            fmt.Sprintf("/hpss/in2p3.fr/group/file-%d", id),
		"creation_time":   endTime.Add(-time.Hour).UTC(),
		"user":            "operator",
		"client":          "treqs-client",
		"version":         "1.5",
		"email":           nil,
		"queue_id":        int64(10),
		"tape":            "IT0042",
		"position":        id * 100,
		"level":           int64(0),
		"size":            int64(1 << 20),
		"tries":           int64(1),
		"errorcode":       int64(0),
		"submission_time": endTime.Add(-50 * time.Minute).UTC(),
		"queued_time":     endTime.Add(-40 * time.Minute).UTC(),
		"end_time":        endTime.UTC(),
		"status":          status,
		"message":         "done",
	}
}

// Queue builds a live queues row.
func Queue(id int64, status int64, endTime time.Time) domain.Row {
	return domain.Row{
		"id":              id,
		"name":            fmt.Sprintf("IT%04d", id),
		"creation_time":   endTime.Add(-2 * time.Hour).UTC(),
		"mediatype_id":    int64(1),
		"nb_reqs_failed":  int64(0),
		"activation_time": endTime.Add(-time.Hour).UTC(),
		"end_time":        endTime.UTC(),
		"status":          status,
		"nb_reqs":         int64(3),
		"owner":           "operator",
		"byte_size":       int64(3 << 20),
		"nb_reqs_done":    int64(3),
	}
}

// Seed creates the live table of d and inserts rows.
func Seed(t *testing.T, s *storage.Store, d *domain.Descriptor, rows ...domain.Row) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.EnsureLiveTable(ctx, d))
	require.NoError(t, s.InTx(ctx, func(tx *sql.Tx) error {
		return s.InsertTx(ctx, tx, d.Table, d.Columns, rows)
	}))
}

// SeedArchive creates the archive table of d and inserts archive-shaped rows.
func SeedArchive(t *testing.T, s *storage.Store, d *domain.Descriptor, rows ...domain.Row) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.EnsureArchiveTable(ctx, d))
	require.NoError(t, s.InTx(ctx, func(tx *sql.Tx) error {
		return s.InsertTx(ctx, tx, d.ArchiveTable, d.ArchiveColumns(), rows)
	}))
}

// FailInsertsAbove installs a trigger aborting inserts into table for keys
// greater than id, which stands in for an archive store dropping mid-run.
func FailInsertsAbove(t *testing.T, s *storage.Store, table string, id int64) {
	t.Helper()
	q := fmt.Sprintf(`CREATE TRIGGER fail_%s BEFORE INSERT ON %s
WHEN NEW.id > %d BEGIN SELECT RAISE(ABORT, 'archive store unavailable'); END`,
		table, storage.Quote(table), id)
	_, err := s.DB().Exec(q)
	require.NoError(t, err)
}

// FailDeletes installs a trigger aborting every delete from table.
func FailDeletes(t *testing.T, s *storage.Store, table string) {
	t.Helper()
	q := fmt.Sprintf(`CREATE TRIGGER faildel_%s BEFORE DELETE ON %s
BEGIN SELECT RAISE(ABORT, 'source store unavailable'); END`, table, storage.Quote(table))
	_, err := s.DB().Exec(q)
	require.NoError(t, err)
}

// BlockTable occupies name with an index so that creating a table of that name
// fails.
func BlockTable(t *testing.T, s *storage.Store, name string) {
	t.Helper()
	_, err := s.DB().Exec(`CREATE TABLE blocker (x INTEGER)`)
	require.NoError(t, err)
	_, err = s.DB().Exec(`CREATE INDEX ` + storage.Quote(name) + ` ON blocker (x)`)
	require.NoError(t, err)
}

// Keys lists the primary keys present in table.
func Keys(t *testing.T, s *storage.Store, table string) []int64 {
	t.Helper()
	rows, err := s.DB().Query("SELECT id FROM " + storage.Quote(table) + " ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		out = append(out, id)
	}
	require.NoError(t, rows.Err())
	return out
}
