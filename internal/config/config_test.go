package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/SirClappington/enqarchive/internal/errors"
)

func TestLoadFrom_Defaults(t *testing.T) {
	c, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 1, c.RetentionDays)
	assert.Equal(t, 1000, c.MaxRows)
	assert.Equal(t, ModeStore, c.Mode)
	assert.Empty(t, c.Entities)
	assert.True(t, c.LedgerEnabled)
	assert.Equal(t, 10*time.Minute, c.LockTTL)
	assert.False(t, c.Verbose)
}

func TestLoadFrom_Overrides(t *testing.T) {
	c, err := LoadFrom(map[string]string{
		"SOURCE_DRIVER":  "sqlite3",
		"SOURCE_DSN":     "file:src.db",
		"ARCHIVE_MODE":   "both",
		"DUMP_PATH":      "/tmp/dump.sql",
		"RETENTION_DAYS": "7",
		"ENTITIES":       "queues",
		"VERBOSE":        "true",
	})
	require.NoError(t, err)

	assert.Equal(t, 7, c.RetentionDays)
	assert.Equal(t, []string{"queues"}, c.Entities)
	assert.True(t, c.UsesDump())
	assert.True(t, c.UsesArchiveStore())
	assert.True(t, c.Verbose)
}

func TestLoadFrom_BadInteger(t *testing.T) {
	_, err := LoadFrom(map[string]string{"MAX_ROWS": "lots"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
}

func valid() Config {
	return Config{
		SourceDriver:  "postgres",
		SourceDSN:     "postgres://src",
		ArchiveDriver: "postgres",
		ArchiveDSN:    "postgres://arc",
		RetentionDays: 1,
		MaxRows:       1000,
		Mode:          ModeStore,
		LockTTL:       time.Minute,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, valid().Validate())

	dumpOnly := valid()
	dumpOnly.Mode = ModeDump
	dumpOnly.DumpPath = "out.sql"
	dumpOnly.ArchiveDSN = ""
	require.NoError(t, dumpOnly.Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero days", func(c *Config) { c.RetentionDays = 0 }},
		{"zero rows", func(c *Config) { c.MaxRows = 0 }},
		{"bad mode", func(c *Config) { c.Mode = "copy" }},
		{"dump without path", func(c *Config) { c.Mode = ModeBoth }},
		{"missing source dsn", func(c *Config) { c.SourceDSN = "" }},
		{"missing archive dsn", func(c *Config) { c.ArchiveDSN = "" }},
		{"unsupported driver", func(c *Config) { c.SourceDriver = "mysql" }},
		{"lock ttl", func(c *Config) { c.RedisAddr = "localhost:6379"; c.LockTTL = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsKind(err, apperrors.KindConfiguration))
		})
	}
}
