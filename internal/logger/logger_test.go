package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"":        zapcore.InfoLevel,
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseLevel("loud")
	assert.Error(t, err)
}

func TestNewWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWriter("info", "json", &buf)
	require.NoError(t, err)

	l.Debug("hidden")
	l.Info("file skipped", zap.String("path", "/r/a"), zap.String("stage", "stat"))
	require.NoError(t, l.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "file skipped", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "/r/a", entry["path"])
	assert.Contains(t, entry, "time")
}

func TestNewWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWriter("debug", "console", &buf)
	require.NoError(t, err)
	l.Debug("walking", zap.String("root", "/data"))
	assert.Contains(t, buf.String(), "walking")
	assert.Contains(t, buf.String(), `"root": "/data"`)
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ops.log")
	l, err := New("info", "json", path)
	require.NoError(t, err)
	l.Warn("disk slow")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "disk slow")
}

func TestNewErrors(t *testing.T) {
	_, err := New("nope", "json", "stderr")
	assert.Error(t, err)
	_, err = New("info", "json", filepath.Join(t.TempDir(), "no", "such", "dir.log"))
	assert.Error(t, err)
}
