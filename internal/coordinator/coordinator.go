// Package coordinator runs the archiver over every configured entity type.
package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SirClappington/enqarchive/internal/archive"
	"github.com/SirClappington/enqarchive/internal/domain"
	apperrors "github.com/SirClappington/enqarchive/internal/errors"
	"github.com/SirClappington/enqarchive/internal/lock"
	"github.com/SirClappington/enqarchive/internal/metrics"
	"github.com/SirClappington/enqarchive/internal/storage"
)

type Options struct {
	RetentionDays int
	MaxRows       int
	CopyAttempts  int

	// Sink receives archived rows in dump and both modes. When it also
	// implements Begin(runID, horizon), a header is written at run start.
	Sink archive.Sink
	// Lock, when set, must be acquired before anything is moved.
	Lock *lock.RedisLock
	// Ledger, when set, receives one record per entity type per run.
	Ledger  *storage.Ledger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

type Coordinator struct {
	source      *storage.Store
	archive     *storage.Store
	descriptors []*domain.Descriptor
	opts        Options
	log         *zap.Logger
}

// New builds a coordinator. archive is nil in dump-only mode. Store handles
// stay owned by the caller.
func New(source, archive *storage.Store, descriptors []*domain.Descriptor, opts Options, log *zap.Logger) *Coordinator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		source:      source,
		archive:     archive,
		descriptors: descriptors,
		opts:        opts,
		log:         log,
	}
}

// Horizon is the retention cut-off for a run starting at now.
func Horizon(now time.Time, retentionDays int) time.Time {
	return now.UTC().AddDate(0, 0, -retentionDays)
}

type beginner interface {
	Begin(runID string, horizon time.Time) error
}

// Run archives every entity type in order. A failing entity type never stops
// the ones after it; its error is kept in the report.
func (c *Coordinator) Run(ctx context.Context) *Report {
	started := c.opts.Now()
	rep := &Report{
		RunID:     uuid.NewString(),
		Horizon:   Horizon(started, c.opts.RetentionDays),
		StartedAt: started,
	}
	log := c.log.With(zap.String("run_id", rep.RunID))
	defer func() { rep.FinishedAt = c.opts.Now() }()

	heartbeat := func() {}
	if c.opts.Lock != nil {
		lease, err := c.opts.Lock.Acquire(ctx)
		if err != nil {
			rep.err = apperrors.Wrap(apperrors.KindStoreUnavailable, "acquire run lock", err)
			log.Error("run not started", zap.Error(rep.err))
			return rep
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("release run lock", zap.Error(err))
			}
		}()
		heartbeat = func() {
			if err := lease.Extend(ctx); err != nil {
				log.Warn("extend run lock", zap.Error(err))
			}
		}
	}

	if b, ok := c.opts.Sink.(beginner); ok {
		if err := b.Begin(rep.RunID, rep.Horizon); err != nil {
			rep.err = apperrors.CommitFailure("write dump header", err)
			log.Error("run not started", zap.Error(rep.err))
			return rep
		}
	}

	log.Info("archive run started",
		zap.Time("horizon", rep.Horizon),
		zap.Int("entities", len(c.descriptors)))

	mover := archive.NewMover(c.source, c.moverArchive(), c.opts.Sink, archive.Options{
		MaxRows:      c.opts.MaxRows,
		CopyAttempts: c.opts.CopyAttempts,
	}, log, c.opts.Metrics)

	for _, d := range c.descriptors {
		er := c.runEntity(ctx, mover, d, rep.Horizon, log)
		rep.Entities = append(rep.Entities, er)
		c.record(ctx, rep, er, log)
		heartbeat()
	}

	if code := rep.ExitCode(); code != 0 {
		log.Error("archive run finished with failures", zap.Int("exit_code", code))
	} else {
		log.Info("archive run finished")
	}
	return rep
}

// moverArchive avoids handing the mover a typed nil.
func (c *Coordinator) moverArchive() archive.Archive {
	if c.archive == nil {
		return nil
	}
	return c.archive
}

func (c *Coordinator) runEntity(ctx context.Context, mover *archive.Mover, d *domain.Descriptor, horizon time.Time, log *zap.Logger) EntityReport {
	start := c.opts.Now()
	er := EntityReport{Entity: d.Name, ExitCode: d.ExitCode, StartedAt: start}

	var res *archive.Result
	err := ctx.Err()
	if err == nil && c.archive != nil {
		err = c.archive.EnsureArchiveTable(ctx, d)
	}
	if err == nil {
		res, err = mover.Move(ctx, d, horizon)
	}
	if res == nil {
		c.countSource(ctx, d, &er, log)
	} else {
		er.Total = res.Total
		er.Eligible = res.Eligible
		er.Copied = res.Copied
		er.AlreadyArchived = res.AlreadyArchived
		er.Purged = res.Purged
		er.Remaining = res.Remaining
		er.Held = res.Held
		er.Batches = res.Batches
		er.Discrepancies = res.Discrepancies
	}
	er.Err = err
	er.FinishedAt = c.opts.Now()

	c.opts.Metrics.EntityDone(d.Name, err == nil, er.Remaining, er.FinishedAt.Sub(start))
	if err != nil {
		log.Error("entity archival failed",
			zap.String("entity", d.Name),
			zap.Int("exit_code", d.ExitCode),
			zap.Int64("purged", er.Purged),
			zap.Error(err))
	}
	return er
}

// countSource fills Total and Remaining for an entity type that failed before
// the mover counted it. Nothing was purged, so both equal the live count.
func (c *Coordinator) countSource(ctx context.Context, d *domain.Descriptor, er *EntityReport, log *zap.Logger) {
	total, err := archive.NewSelector().CountTotal(context.WithoutCancel(ctx), c.source, d)
	if err != nil {
		log.Warn("count source rows", zap.String("entity", d.Name), zap.Error(err))
		return
	}
	er.Total = total
	er.Remaining = total
}

func (c *Coordinator) record(ctx context.Context, rep *Report, er EntityReport, log *zap.Logger) {
	if c.opts.Ledger == nil {
		return
	}
	rec := &storage.RunRecord{
		RunID:           rep.RunID,
		Entity:          er.Entity,
		Horizon:         rep.Horizon,
		Total:           er.Total,
		Eligible:        er.Eligible,
		Copied:          er.Copied,
		AlreadyArchived: er.AlreadyArchived,
		Purged:          er.Purged,
		Remaining:       er.Remaining,
		Held:            er.Held,
		Batches:         er.Batches,
		Status:          storage.RunSucceeded,
		StartedAt:       er.StartedAt,
		FinishedAt:      er.FinishedAt,
	}
	if er.Err != nil {
		rec.Status = storage.RunFailed
		rec.Error = truncate(er.Err.Error(), 1024)
	}
	if err := c.opts.Ledger.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("ledger write failed", zap.String("entity", er.Entity), zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
