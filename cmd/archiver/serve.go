package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SirClappington/enqarchive/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Archive on a schedule and serve health and metrics",
	Long: `Run archive passes on the SCHEDULE cron expression and serve /healthz,
/metrics and /runs on HTTP_ADDR. A pass still running when the next one is due
is not overlapped; the due pass is skipped.`,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	status := &server.Status{}
	cl := cronLogger{log.Sugar()}
	sched := cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl)))
	if _, err := sched.AddFunc(cfg.Schedule, func() {
		status.SetRunning(true)
		defer status.SetRunning(false)
		rep, err := a.runOnce(ctx)
		if err != nil {
			log.Error("archive run failed to start", zap.Error(err))
			return
		}
		status.SetLast(server.LastRun{RunID: rep.RunID, ExitCode: rep.ExitCode(), FinishedAt: rep.FinishedAt})
	}); err != nil {
		return err
	}

	var runs server.Runs
	if a.ledger != nil {
		runs = a.ledger
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(status, runs, a.registry, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	sched.Start()
	log.Info("archiver serving",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("schedule", cfg.Schedule))

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	log.Info("shutting down")
	<-sched.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warn("http shutdown", zap.Error(serr))
	}
	return err
}
