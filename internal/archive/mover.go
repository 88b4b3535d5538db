package archive

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/SirClappington/enqarchive/internal/domain"
	apperrors "github.com/SirClappington/enqarchive/internal/errors"
	"github.com/SirClappington/enqarchive/internal/metrics"
	"github.com/SirClappington/enqarchive/internal/storage"
)

// Source is the live store rows are moved out of.
type Source interface {
	Reader
	Fetch(ctx context.Context, table, pk string, cols []domain.Column, keys []int64) ([]domain.Row, error)
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	DeleteTx(ctx context.Context, tx *sql.Tx, table, pk string, keys []int64, f *storage.Filter) (int64, error)
}

// Archive is the long-term store rows are moved into.
type Archive interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	FetchTx(ctx context.Context, tx *sql.Tx, table, pk string, cols []domain.Column, keys []int64) ([]domain.Row, error)
	InsertTx(ctx context.Context, tx *sql.Tx, table string, cols []domain.Column, rows []domain.Row) error
}

const (
	DefaultMaxRows      = 1000
	DefaultCopyAttempts = 3
)

type Options struct {
	MaxRows int
	// CopyAttempts bounds how often a batch copy is retried after a key
	// collision that appeared between the lookup and the insert.
	CopyAttempts int
}

// Result is the outcome of moving one entity type. It is filled in up to the
// point of failure when Move returns an error.
type Result struct {
	Entity          string
	Total           int64
	Eligible        int64
	Copied          int64
	AlreadyArchived int64
	Purged          int64
	Remaining       int64
	Batches         int
	Discrepancies   int
	// Held counts eligible rows kept in the source because the archive
	// already holds their key with different content.
	Held int64
}

// Mover copies eligible rows to the archive and then purges them from the
// source, one batch at a time. A batch is never purged before its copy has
// been committed.
type Mover struct {
	source   Source
	archive  Archive
	sink     Sink
	selector *Selector
	opts     Options
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// NewMover builds a mover. archive may be nil when sink is set (dump-only);
// sink may be nil when archive is set.
func NewMover(source Source, archive Archive, sink Sink, opts Options, log *zap.Logger, m *metrics.Metrics) *Mover {
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultMaxRows
	}
	if opts.CopyAttempts <= 0 {
		opts.CopyAttempts = DefaultCopyAttempts
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Mover{
		source:   source,
		archive:  archive,
		sink:     sink,
		selector: NewSelector(),
		opts:     opts,
		log:      log,
		metrics:  m,
	}
}

// Move archives every row of d that is eligible at horizon.
func (m *Mover) Move(ctx context.Context, d *domain.Descriptor, horizon time.Time) (*Result, error) {
	res := &Result{Entity: d.Name}
	log := m.log.With(zap.String("entity", d.Name))

	if m.archive == nil && m.sink == nil {
		return res, apperrors.Configuration("no archive store or dump sink configured").WithEntity(d.Name)
	}

	total, err := m.selector.CountTotal(ctx, m.source, d)
	if err != nil {
		return res, err
	}
	res.Total = total

	keys, err := m.selector.Select(ctx, m.source, d, horizon)
	if err != nil {
		res.Remaining = total
		return res, err
	}
	res.Eligible = int64(len(keys))

	log.Info("eligible rows selected",
		zap.Int64("eligible", res.Eligible),
		zap.Int64("total", total),
		zap.Time("horizon", horizon))

	if len(keys) == 0 {
		res.Remaining = total
		return res, nil
	}

	batches := Partition(keys, m.opts.MaxRows)
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			m.finish(ctx, d, res)
			return res, err
		}

		bc, err := m.copyBatch(ctx, d, batch, log)
		res.Copied += bc.copied
		res.AlreadyArchived += bc.already
		res.Discrepancies += bc.discrepancies
		res.Held += int64(len(bc.held))
		if err != nil {
			m.metrics.BatchFailed(d.Name, "copy")
			log.Error("copy phase failed, batch left in source",
				zap.Int("batch", i+1),
				zap.Int64("first_key", batch[0]),
				zap.Error(err))
			m.finish(ctx, d, res)
			return res, scope(err, d, apperrors.KindCommitFailure)
		}
		m.metrics.Copied(d.Name, bc.copied, bc.already)

		purged, err := m.purgeBatch(ctx, d, bc.moved, horizon)
		if err != nil {
			m.metrics.BatchFailed(d.Name, "purge")
			log.Error("purge phase failed, batch remains in both stores",
				zap.Int("batch", i+1),
				zap.Int64("first_key", batch[0]),
				zap.Error(err))
			m.finish(ctx, d, res)
			return res, scope(err, d, apperrors.KindCommitFailure)
		}
		m.metrics.Purged(d.Name, purged)
		res.Purged += purged
		res.Batches++

		log.Debug("batch archived",
			zap.Int("batch", i+1),
			zap.Int("of", len(batches)),
			zap.Int("keys", len(batch)),
			zap.Int64("copied", bc.copied),
			zap.Int64("already_archived", bc.already),
			zap.Int64("purged", purged))
	}

	m.finish(ctx, d, res)
	log.Info("entity archived",
		zap.Int64("copied", res.Copied),
		zap.Int64("already_archived", res.AlreadyArchived),
		zap.Int64("purged", res.Purged),
		zap.Int64("held", res.Held),
		zap.Int64("remaining", res.Remaining),
		zap.Int("batches", res.Batches))
	return res, nil
}

// finish recounts the source rows left. It is best effort: a failing count
// leaves Remaining as total minus purged.
func (m *Mover) finish(ctx context.Context, d *domain.Descriptor, res *Result) {
	n, err := m.selector.CountTotal(context.WithoutCancel(ctx), m.source, d)
	if err != nil {
		m.log.Warn("recount of source rows failed", zap.String("entity", d.Name), zap.Error(err))
		res.Remaining = res.Total - res.Purged
		return
	}
	res.Remaining = n
}

type batchCopy struct {
	copied        int64
	already       int64
	discrepancies int
	// moved holds the keys whose archive row now equals the live row, either
	// freshly written or found already present.
	moved []int64
	// held holds keys archived earlier with different content. They are not
	// purged.
	held []int64
}

// copyBatch writes the batch's archive records to the archive store and the
// dump sink. Nothing is reported as moved unless every write succeeded.
func (m *Mover) copyBatch(ctx context.Context, d *domain.Descriptor, batch []int64, log *zap.Logger) (batchCopy, error) {
	var bc batchCopy
	live, err := m.source.Fetch(ctx, d.Table, d.PrimaryKey, d.Columns, batch)
	if err != nil {
		return bc, err
	}
	if len(live) == 0 {
		return bc, nil
	}
	records := make([]domain.Row, len(live))
	for i, row := range live {
		records[i] = d.ToArchive(row)
	}

	fresh := records
	if m.archive != nil {
		fresh, bc.already, bc.held, err = m.insertMissing(ctx, d, records, log)
		if err != nil {
			return batchCopy{}, err
		}
		bc.discrepancies = len(bc.held)
	}
	if m.sink != nil && len(fresh) > 0 {
		if err := m.sink.Write(ctx, d, fresh); err != nil {
			return bc, apperrors.CommitFailure("write dump", err)
		}
	}
	bc.copied = int64(len(fresh))
	bc.moved = movedKeys(live, d.PrimaryKey, bc.held)
	return bc, nil
}

func movedKeys(live []domain.Row, pk string, held []int64) []int64 {
	skip := make(map[int64]bool, len(held))
	for _, k := range held {
		skip[k] = true
	}
	out := make([]int64, 0, len(live))
	for _, row := range live {
		if k := row.Key(pk); !skip[k] {
			out = append(out, k)
		}
	}
	return out
}

// insertMissing inserts the records whose keys the archive does not hold yet,
// in one archive transaction. It returns the inserted records, the count of
// keys already present and the keys among them whose content differs.
func (m *Mover) insertMissing(ctx context.Context, d *domain.Descriptor, records []domain.Row, log *zap.Logger) ([]domain.Row, int64, []int64, error) {
	cols := d.ArchiveColumns()
	keys := make([]int64, len(records))
	for i, r := range records {
		keys[i] = r.Key(d.PrimaryKey)
	}

	var (
		fresh   []domain.Row
		already int64
		differ  []int64
	)
	for attempt := 1; ; attempt++ {
		err := m.archive.InTx(ctx, func(tx *sql.Tx) error {
			existing, err := m.archive.FetchTx(ctx, tx, d.ArchiveTable, d.PrimaryKey, cols, keys)
			if err != nil {
				return err
			}
			byKey := make(map[int64]domain.Row, len(existing))
			for _, e := range existing {
				byKey[e.Key(d.PrimaryKey)] = e
			}

			fresh, already, differ = fresh[:0], 0, differ[:0]
			for _, r := range records {
				e, ok := byKey[r.Key(d.PrimaryKey)]
				if !ok {
					fresh = append(fresh, r)
					continue
				}
				already++
				if !domain.SameContent(e, r, cols) {
					differ = append(differ, r.Key(d.PrimaryKey))
				}
			}
			return m.archive.InsertTx(ctx, tx, d.ArchiveTable, cols, fresh)
		})
		if err == nil {
			break
		}
		if !apperrors.IsKind(err, apperrors.KindDuplicateKey) {
			return nil, 0, nil, err
		}
		if attempt >= m.opts.CopyAttempts {
			return nil, 0, nil, apperrors.CommitFailure("insert archive batch", err)
		}
		log.Warn("key collision during archive insert, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	for _, k := range differ {
		m.metrics.Discrepancy(d.Name)
		log.Warn("archived row differs from live row, keeping live row in source", zap.Int64("key", k))
	}
	if already > 0 {
		log.Info("rows already archived, skipped",
			zap.Int64("already_archived", already),
			zap.Int64("first_key", keys[0]))
	}
	return fresh, already, differ, nil
}

// purgeBatch deletes keys from the source. Only rows still matching the
// eligibility predicate are removed.
func (m *Mover) purgeBatch(ctx context.Context, d *domain.Descriptor, keys []int64, horizon time.Time) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	var purged int64
	err := m.source.InTx(ctx, func(tx *sql.Tx) error {
		n, err := m.source.DeleteTx(ctx, tx, d.Table, d.PrimaryKey, keys, Filter(d, horizon))
		purged = n
		return err
	})
	if err != nil {
		if !apperrors.IsKind(err, apperrors.KindCommitFailure) {
			err = apperrors.CommitFailure("purge "+d.Table, err)
		}
		return 0, err
	}
	return purged, nil
}
