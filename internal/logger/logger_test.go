package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithSink_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithSink(Config{Level: "info", Format: "json", ServiceName: "archiver"}, zapcore.AddSync(&buf))

	log.Debug("hidden")
	log.Info("archived", zap.String("entity", "requests"), zap.Int("copied", 3))
	require.NoError(t, log.Sync())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "archived", entry["msg"])
	assert.Equal(t, "archiver", entry["service"])
	assert.Equal(t, "requests", entry["entity"])
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, "debug", LevelFor(true))
	assert.Equal(t, "info", LevelFor(false))
}

func TestNew_WritesToStderr(t *testing.T) {
	dir := t.TempDir()
	stdout, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	defer stdout.Close()
	stderr, err := os.Create(filepath.Join(dir, "stderr"))
	require.NoError(t, err)
	defer stderr.Close()

	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = stdout, stderr
	defer func() { os.Stdout, os.Stderr = origOut, origErr }()

	log := New(Config{Level: "info", Format: "json"})
	log.Info("archive run started")
	_ = log.Sync()

	out, err := os.ReadFile(stdout.Name())
	require.NoError(t, err)
	assert.Empty(t, out)
	errOut, err := os.ReadFile(stderr.Name())
	require.NoError(t, err)
	assert.Contains(t, string(errOut), "archive run started")
}
