package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	apperrors "github.com/SirClappington/enqarchive/internal/errors"
)

const (
	ModeStore = "store"
	ModeDump  = "dump"
	ModeBoth  = "both"
)

type Config struct {
	SourceDriver    string        `env:"SOURCE_DRIVER" envDefault:"postgres"`
	SourceDSN       string        `env:"SOURCE_DSN"`
	ArchiveDriver   string        `env:"ARCHIVE_DRIVER" envDefault:"postgres"`
	ArchiveDSN      string        `env:"ARCHIVE_DSN"`
	RetentionDays   int           `env:"RETENTION_DAYS" envDefault:"1"`
	MaxRows         int           `env:"MAX_ROWS" envDefault:"1000"`
	Mode            string        `env:"ARCHIVE_MODE" envDefault:"store"`
	DumpPath        string        `env:"DUMP_PATH"`
	DescriptorsFile string        `env:"DESCRIPTORS_FILE"`
	Entities        []string      `env:"ENTITIES" envSeparator:","`
	Verbose         bool          `env:"VERBOSE"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	LedgerEnabled   bool          `env:"LEDGER_ENABLED" envDefault:"true"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	LockTTL         time.Duration `env:"LOCK_TTL" envDefault:"10m"`
	Schedule        string        `env:"SCHEDULE" envDefault:"0 3 * * *"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":9102"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, apperrors.Configuration("parse environment: %v", err)
	}
	return c, nil
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(vars map[string]string) (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Environment: vars}); err != nil {
		return c, apperrors.Configuration("parse environment: %v", err)
	}
	return c, nil
}

// UsesArchiveStore reports whether archived rows are written to the archive store.
func (c Config) UsesArchiveStore() bool { return c.Mode != ModeDump }

// UsesDump reports whether archived rows are written to the dump sink.
func (c Config) UsesDump() bool { return c.Mode == ModeDump || c.Mode == ModeBoth }

// Validate checks parameters before any store is opened.
func (c Config) Validate() error {
	if c.RetentionDays < 1 {
		return apperrors.Configuration("retention days must be at least 1, got %d", c.RetentionDays)
	}
	if c.MaxRows < 1 {
		return apperrors.Configuration("max rows must be at least 1, got %d", c.MaxRows)
	}
	switch c.Mode {
	case ModeStore, ModeDump, ModeBoth:
	default:
		return apperrors.Configuration("unknown archive mode %q", c.Mode)
	}
	if c.UsesDump() && c.DumpPath == "" {
		return apperrors.Configuration("dump path is required in %s mode", c.Mode)
	}
	if err := checkStore("source", c.SourceDriver, c.SourceDSN); err != nil {
		return err
	}
	if c.UsesArchiveStore() {
		if err := checkStore("archive", c.ArchiveDriver, c.ArchiveDSN); err != nil {
			return err
		}
	}
	if c.RedisAddr != "" && c.LockTTL <= 0 {
		return apperrors.Configuration("lock ttl must be positive, got %s", c.LockTTL)
	}
	return nil
}

func checkStore(which, driver, dsn string) error {
	switch driver {
	case "postgres", "sqlite3":
	default:
		return apperrors.Configuration("%s driver %q is not supported", which, driver)
	}
	if dsn == "" {
		return apperrors.Configuration("%s dsn is required", which)
	}
	return nil
}
