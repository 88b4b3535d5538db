package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	r "github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/SirClappington/enqarchive/internal/archive"
	"github.com/SirClappington/enqarchive/internal/config"
	"github.com/SirClappington/enqarchive/internal/coordinator"
	"github.com/SirClappington/enqarchive/internal/domain"
	"github.com/SirClappington/enqarchive/internal/lock"
	"github.com/SirClappington/enqarchive/internal/metrics"
	"github.com/SirClappington/enqarchive/internal/storage"
)

var timeNow = time.Now

// app holds everything a run needs. Store handles are opened once and closed
// by close regardless of how the run ended.
type app struct {
	cfg         config.Config
	log         *zap.Logger
	descriptors []*domain.Descriptor
	source      *storage.Store
	archive     *storage.Store
	ledger      *storage.Ledger
	rdb         *r.Client
	lock        *lock.RedisLock
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
}

func loadDescriptors(cfg config.Config) ([]*domain.Descriptor, error) {
	all := domain.Builtin()
	if cfg.DescriptorsFile != "" {
		var err error
		if all, err = domain.LoadFile(cfg.DescriptorsFile); err != nil {
			return nil, err
		}
	}
	return domain.Select(all, cfg.Entities)
}

func setup(ctx context.Context, cfg config.Config, log *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	if a.descriptors, err = loadDescriptors(cfg); err != nil {
		return nil, err
	}

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	if a.source, err = storage.Open(ctx, cfg.SourceDriver, cfg.SourceDSN); err != nil {
		return nil, err
	}
	if cfg.UsesArchiveStore() {
		if a.archive, err = storage.Open(ctx, cfg.ArchiveDriver, cfg.ArchiveDSN); err != nil {
			return nil, err
		}
		if cfg.LedgerEnabled {
			ledger, lerr := storage.NewLedger(a.archive)
			if lerr != nil {
				log.Warn("run ledger disabled", zap.Error(lerr))
			}
			a.ledger = ledger
		}
	}
	if cfg.RedisAddr != "" {
		a.rdb = r.NewClient(&r.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		a.lock = lock.New(a.rdb, "archiver", cfg.LockTTL)
	}
	return a, nil
}

// runOnce performs one archive run. The dump file, when used, is opened for
// the run only.
func (a *app) runOnce(ctx context.Context) (*coordinator.Report, error) {
	opts := coordinator.Options{
		RetentionDays: a.cfg.RetentionDays,
		MaxRows:       a.cfg.MaxRows,
		Lock:          a.lock,
		Ledger:        a.ledger,
		Metrics:       a.metrics,
	}
	var dump *archive.SQLDump
	if a.cfg.UsesDump() {
		var err error
		if dump, err = archive.CreateSQLDump(a.cfg.DumpPath); err != nil {
			return nil, err
		}
		opts.Sink = dump
	}

	rep := coordinator.New(a.source, a.archive, a.descriptors, opts, a.log).Run(ctx)

	if dump != nil {
		if err := dump.Close(); err != nil {
			a.log.Error("close dump file", zap.String("path", a.cfg.DumpPath), zap.Error(err))
		}
	}
	return rep, nil
}

func (a *app) close() {
	var err error
	if a.source != nil {
		err = multierr.Append(err, a.source.Close())
	}
	if a.archive != nil {
		err = multierr.Append(err, a.archive.Close())
	}
	if a.rdb != nil {
		err = multierr.Append(err, a.rdb.Close())
	}
	if err != nil {
		a.log.Warn("closing connections", zap.Error(err))
	}
}
