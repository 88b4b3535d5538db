package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SirClappington/enqarchive/internal/archive"
	"github.com/SirClappington/enqarchive/internal/coordinator"
)

var runFlags struct {
	dryRun bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one archive pass and exit",
	Long: `Run one archive pass over every configured entity type, then exit.

Exit status is 0 when every entity type was archived, -1 when requests failed,
-2 when queues failed (the first failure in processing order wins) and 1 when
the run could not start.`,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "count eligible rows without moving anything")
}

func runArchive(cmd *cobra.Command, _ []string) error {
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

	if runFlags.dryRun {
		return a.dryRun(ctx, cmd.OutOrStdout())
	}

	rep, err := a.runOnce(ctx)
	if err != nil {
		return err
	}
	if err := rep.WriteSummary(cmd.OutOrStdout()); err != nil {
		log.Warn("write summary", zap.Error(err))
	}
	exitCode = rep.ExitCode()
	return nil
}

// dryRun prints the counts a run would start from.
func (a *app) dryRun(ctx context.Context, w io.Writer) error {
	sel := archive.NewSelector()
	horizon := coordinator.Horizon(timeNow(), a.cfg.RetentionDays)
	for _, d := range a.descriptors {
		total, err := sel.CountTotal(ctx, a.source, d)
		if err != nil {
			return err
		}
		eligible, err := sel.CountEligible(ctx, a.source, d, horizon)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, ":: %d %s to archive out of %d\n", eligible, d.Name, total)
	}
	return nil
}
