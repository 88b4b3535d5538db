package storage

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	apperrors "github.com/SirClappington/enqarchive/internal/errors"
)

// Store is one relational store handle owned by a run.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store { return &Store{db: db, dialect: dialect} }

// Open connects to a store and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, apperrors.Configuration("%v", err)
	}
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, apperrors.StoreUnavailable("open "+dialect.Name(), err)
	}
	// sqlite serializes writers; one connection keeps a run from locking itself out.
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.StoreUnavailable("ping "+dialect.Name(), err)
	}
	return New(db, dialect), nil
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Close() error { return s.db.Close() }

// InTx runs fn inside one transaction. The transaction is committed when fn
// returns nil and rolled back on every other exit path, panics included.
func (s *Store) InTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.StoreUnavailable("begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		if s.dialect.IsDuplicateKey(err) {
			return apperrors.DuplicateKey("commit", err)
		}
		return apperrors.CommitFailure("commit", err)
	}
	return nil
}
