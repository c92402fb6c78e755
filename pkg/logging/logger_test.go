package logging

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_RejectsSecondCall(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	path := filepath.Join(t.TempDir(), "logs", "zonedb.log")
	require.NoError(t, Init(Config{Level: LevelDebug, OutputPath: path, MaxSizeMB: 1}))
	assert.Error(t, Init(Config{}))

	Info("hello", "k", 1)
	require.NoError(t, Close())
	assert.FileExists(t, path)
}

func TestContextHelpers(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	var buf bytes.Buffer
	InitWriter(&buf, LevelDebug)

	WithZone(3).Debug("zone loaded")
	WithOp("put").Info("done")
	WithDB("0:4+3").Warn("failed")

	out := buf.String()
	assert.Contains(t, out, "zone=3")
	assert.Contains(t, out, "op=put")
	assert.Contains(t, out, "db=0:4+3")
	assert.Contains(t, out, "error=boom")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(LevelDebug))
	assert.Equal(t, slog.LevelError, ParseLevel(LevelError))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestGetLogger_LazyDefault(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	assert.NotNil(t, GetLogger())
}
