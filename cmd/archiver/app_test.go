package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirClappington/enqarchive/internal/config"
)

const tapesYAML = `
entities:
  - name: tapes
    table: tapes
    archive_table: tapes_history
    primary_key: id
    eligible_statuses: [3]
    age_field: end_time
    columns:
      - {name: id, type: integer}
      - {name: end_time, type: timestamp}
      - {name: status, type: integer}
`

func TestLoadDescriptors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tapesYAML), 0o644))

	t.Run("builtin order", func(t *testing.T) {
		ds, err := loadDescriptors(config.Config{})
		require.NoError(t, err)
		require.Len(t, ds, 2)
		assert.Equal(t, "requests", ds[0].Name)
		assert.Equal(t, "queues", ds[1].Name)
	})

	t.Run("file without selection", func(t *testing.T) {
		ds, err := loadDescriptors(config.Config{DescriptorsFile: path})
		require.NoError(t, err)
		require.Len(t, ds, 1)
		assert.Equal(t, "tapes", ds[0].Name)
	})

	t.Run("duplicate selection", func(t *testing.T) {
		_, err := loadDescriptors(config.Config{Entities: []string{"queues", "queues"}})
		assert.Error(t, err)
	})
}
