package storage

import (
	"context"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/SirClappington/enqarchive/internal/errors"
)

const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunRecord is one entity type's outcome within one archiver run.
type RunRecord struct {
	ID              int64     `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	RunID           string    `gorm:"column:run_id;type:varchar(36);not null;index" json:"run_id"`
	Entity          string    `gorm:"column:entity;type:varchar(64);not null" json:"entity"`
	Horizon         time.Time `gorm:"column:horizon;not null" json:"horizon"`
	Total           int64     `gorm:"column:total" json:"total"`
	Eligible        int64     `gorm:"column:eligible" json:"eligible"`
	Copied          int64     `gorm:"column:copied" json:"copied"`
	AlreadyArchived int64     `gorm:"column:already_archived" json:"already_archived"`
	Purged          int64     `gorm:"column:purged" json:"purged"`
	Remaining       int64     `gorm:"column:remaining" json:"remaining"`
	Held            int64     `gorm:"column:held" json:"held"`
	Batches         int       `gorm:"column:batches" json:"batches"`
	Status          string    `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Error           string    `gorm:"column:error;type:varchar(1024)" json:"error,omitempty"`
	StartedAt       time.Time `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt      time.Time `gorm:"column:finished_at;not null" json:"finished_at"`
}

func (RunRecord) TableName() string {
	return "archive_runs"
}

// Ledger keeps the run history in the archive store.
type Ledger struct {
	db *gorm.DB
}

// NewLedger opens the ledger over an existing store handle and creates its
// table when needed.
func NewLedger(s *Store) (*Ledger, error) {
	var dialector gorm.Dialector
	if s.dialect == SQLite {
		dialector = &sqlite.Dialector{Conn: s.db}
	} else {
		dialector = postgres.New(postgres.Config{Conn: s.db})
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable("open ledger", err)
	}
	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, apperrors.StoreUnavailable("migrate ledger", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Record(ctx context.Context, rec *RunRecord) error {
	return l.db.WithContext(ctx).Create(rec).Error
}

// Recent lists the newest records first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	var out []RunRecord
	err := l.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ForRun lists the records of one run in processing order.
func (l *Ledger) ForRun(ctx context.Context, runID string) ([]RunRecord, error) {
	var out []RunRecord
	err := l.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&out).Error
	return out, err
}
