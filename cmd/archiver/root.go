package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SirClappington/enqarchive/internal/config"
	"github.com/SirClappington/enqarchive/internal/logger"
)

var rootFlags struct {
	days        int
	maxRows     int
	dump        bool
	dumpPath    string
	mode        string
	entities    []string
	descriptors string
	verbose     bool
}

// exitCode carries the run outcome out of cobra, which only knows errors.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Archive and purge finished requests and queues",
	Long: `archiver copies requests and queues that reached a final status before the
retention horizon into their history tables, then deletes them from the live
tables. A batch is only deleted once its copy is committed, so an interrupted
run can simply be started again.

Settings come from the environment (SOURCE_DSN, ARCHIVE_DSN, RETENTION_DAYS,
MAX_ROWS, ARCHIVE_MODE, ...) and can be overridden with flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and returns the process exit status.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return exitCode
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVar(&rootFlags.days, "days", 0, "days to keep in the live database (RETENTION_DAYS)")
	pf.IntVar(&rootFlags.maxRows, "maxrow", 0, "rows per batch (MAX_ROWS)")
	pf.BoolVar(&rootFlags.dump, "dump", false, "export archived rows as an SQL dump instead of the archive database")
	pf.StringVar(&rootFlags.dumpPath, "dump-path", "", "SQL dump file (DUMP_PATH)")
	pf.StringVar(&rootFlags.mode, "mode", "", "store, dump or both (ARCHIVE_MODE)")
	pf.StringSliceVar(&rootFlags.entities, "entities", nil, "entity types in processing order (ENTITIES)")
	pf.StringVar(&rootFlags.descriptors, "descriptors", "", "YAML entity descriptor file (DESCRIPTORS_FILE)")
	pf.BoolVarP(&rootFlags.verbose, "verbose", "v", false, "log every batch")
}

// loadConfig reads the environment, applies flag overrides and validates.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	applyFlags(cmd, &cfg)
	return cfg, cfg.Validate()
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("days") {
		cfg.RetentionDays = rootFlags.days
	}
	if f.Changed("maxrow") {
		cfg.MaxRows = rootFlags.maxRows
	}
	if f.Changed("dump") && rootFlags.dump {
		cfg.Mode = config.ModeDump
	}
	if f.Changed("mode") {
		cfg.Mode = rootFlags.mode
	}
	if f.Changed("dump-path") {
		cfg.DumpPath = rootFlags.dumpPath
	}
	if f.Changed("entities") {
		cfg.Entities = rootFlags.entities
	}
	if f.Changed("descriptors") {
		cfg.DescriptorsFile = rootFlags.descriptors
	}
	if f.Changed("verbose") {
		cfg.Verbose = rootFlags.verbose
	}
}

func newLogger(cfg config.Config) *zap.Logger {
	return logger.New(logger.Config{
		Level:       logger.LevelFor(cfg.Verbose),
		Format:      cfg.LogFormat,
		ServiceName: "enqarchive",
	})
}
