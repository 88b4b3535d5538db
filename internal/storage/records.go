package storage

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"github.com/SirClappington/enqarchive/internal/domain"
	apperrors "github.com/SirClappington/enqarchive/internal/errors"
)

// Filter is the eligibility predicate: status in Statuses and age before Before.
type Filter struct {
	StatusColumn string
	Statuses     []int64
	AgeColumn    string
	Before       time.Time
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type args struct {
	d    Dialect
	vals []any
}

func (a *args) add(v any) string {
	a.vals = append(a.vals, v)
	return a.d.Placeholder(len(a.vals))
}

func (a *args) in(column string, vals []int64) string {
	ph := make([]string, len(vals))
	for i, v := range vals {
		ph[i] = a.add(v)
	}
	return Quote(column) + " IN (" + strings.Join(ph, ", ") + ")"
}

func (a *args) where(f *Filter) string {
	return a.in(f.StatusColumn, f.Statuses) + " AND " + Quote(f.AgeColumn) + " < " + a.add(f.Before.UTC())
}

func quoteAll(names []string) string {
	q := make([]string, len(names))
	for i, n := range names {
		q[i] = Quote(n)
	}
	return strings.Join(q, ", ")
}

func columnNames(cols []domain.Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

// Count returns the number of rows in table, restricted by f when non-nil.
func (s *Store) Count(ctx context.Context, table string, f *Filter) (int64, error) {
	a := &args{d: s.dialect}
	q := "SELECT COUNT(*) FROM " + Quote(table)
	if f != nil {
		q += " WHERE " + a.where(f)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, q, a.vals...).Scan(&n); err != nil {
		return 0, apperrors.StoreUnavailable("count "+table, err)
	}
	return n, nil
}

// Keys returns the primary keys of table matching f in ascending order.
func (s *Store) Keys(ctx context.Context, table, pk string, f *Filter) ([]int64, error) {
	a := &args{d: s.dialect}
	q := "SELECT " + Quote(pk) + " FROM " + Quote(table) +
		" WHERE " + a.where(f) + " ORDER BY " + Quote(pk) + " ASC"

	rows, err := s.db.QueryContext(ctx, q, a.vals...)
	if err != nil {
		return nil, apperrors.StoreUnavailable("select keys from "+table, err)
	}
	defer rows.Close()

	var keys []int64
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, apperrors.StoreUnavailable("scan key from "+table, err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreUnavailable("select keys from "+table, err)
	}
	return keys, nil
}

// Fetch reads the rows of table whose pk is in keys, ordered by pk.
func (s *Store) Fetch(ctx context.Context, table, pk string, cols []domain.Column, keys []int64) ([]domain.Row, error) {
	return fetch(ctx, s.db, s.dialect, table, pk, cols, keys)
}

// FetchTx is Fetch inside tx.
func (s *Store) FetchTx(ctx context.Context, tx *sql.Tx, table, pk string, cols []domain.Column, keys []int64) ([]domain.Row, error) {
	return fetch(ctx, tx, s.dialect, table, pk, cols, keys)
}

// keysPerStatement bounds the keys bound into one IN list, well below the
// bind variable limits of SQLite (32766) and PostgreSQL (65535).
const keysPerStatement = 1000

// chunks splits keys into runs of at most keysPerStatement.
func chunks(keys []int64) [][]int64 {
	var out [][]int64
	for len(keys) > keysPerStatement {
		out = append(out, keys[:keysPerStatement:keysPerStatement])
		keys = keys[keysPerStatement:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}

func fetch(ctx context.Context, q queryer, d Dialect, table, pk string, cols []domain.Column, keys []int64) ([]domain.Row, error) {
	if len(keys) <= keysPerStatement {
		return fetchChunk(ctx, q, d, table, pk, cols, keys)
	}
	var out []domain.Row
	for _, chunk := range chunks(slices.Sorted(slices.Values(keys))) {
		rows, err := fetchChunk(ctx, q, d, table, pk, cols, chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

func fetchChunk(ctx context.Context, q queryer, d Dialect, table, pk string, cols []domain.Column, keys []int64) ([]domain.Row, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	a := &args{d: d}
	query := "SELECT " + quoteAll(columnNames(cols)) + " FROM " + Quote(table) +
		" WHERE " + a.in(pk, keys) + " ORDER BY " + Quote(pk) + " ASC"

	rows, err := q.QueryContext(ctx, query, a.vals...)
	if err != nil {
		return nil, apperrors.StoreUnavailable("fetch rows from "+table, err)
	}
	defer rows.Close()

	var out []domain.Row
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperrors.StoreUnavailable("scan row from "+table, err)
		}
		row := make(domain.Row, len(cols))
		for i, c := range cols {
			v, err := domain.Normalize(c, vals[i])
			if err != nil {
				return nil, apperrors.StoreUnavailable("decode row from "+table, err)
			}
			row[c.Name] = v
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.StoreUnavailable("fetch rows from "+table, err)
	}
	return out, nil
}

// InsertTx inserts rows into table inside tx. A primary key collision is
// reported as a DuplicateKey error.
func (s *Store) InsertTx(ctx context.Context, tx *sql.Tx, table string, cols []domain.Column, rows []domain.Row) error {
	if len(rows) == 0 {
		return nil
	}
	names := columnNames(cols)
	ph := make([]string, len(names))
	for i := range ph {
		ph[i] = s.dialect.Placeholder(i + 1)
	}
	query := "INSERT INTO " + Quote(table) + " (" + quoteAll(names) + ") VALUES (" + strings.Join(ph, ", ") + ")"

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return apperrors.StoreUnavailable("prepare insert into "+table, err)
	}
	defer stmt.Close()

	vals := make([]any, len(names))
	for _, row := range rows {
		for i, n := range names {
			vals[i] = row[n]
		}
		if _, err := stmt.ExecContext(ctx, vals...); err != nil {
			if s.dialect.IsDuplicateKey(err) {
				return apperrors.DuplicateKey("insert into "+table, err)
			}
			return apperrors.StoreUnavailable("insert into "+table, err)
		}
	}
	return nil
}

// DeleteTx deletes the rows of table whose pk is in keys and that still match f.
// Large key sets are deleted in several statements within tx.
func (s *Store) DeleteTx(ctx context.Context, tx *sql.Tx, table, pk string, keys []int64, f *Filter) (int64, error) {
	var total int64
	for _, chunk := range chunks(keys) {
		n, err := s.deleteChunk(ctx, tx, table, pk, chunk, f)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (s *Store) deleteChunk(ctx context.Context, tx *sql.Tx, table, pk string, keys []int64, f *Filter) (int64, error) {
	a := &args{d: s.dialect}
	query := "DELETE FROM " + Quote(table) + " WHERE " + a.in(pk, keys)
	if f != nil {
		query += " AND " + a.where(f)
	}
	res, err := tx.ExecContext(ctx, query, a.vals...)
	if err != nil {
		return 0, apperrors.StoreUnavailable("delete from "+table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.StoreUnavailable("delete from "+table, err)
	}
	return n, nil
}
