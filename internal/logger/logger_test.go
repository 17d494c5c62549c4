package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestNew_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slurper.log")

	l, err := New(Options{Level: "debug", File: path})
	require.NoError(t, err)

	l.Info("imported", "submission_id", "abc")
	l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"imported"`)
	assert.Contains(t, string(data), `"submission_id":"abc"`)
}

func TestLogger_RedactsContactDetails(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("requester_email", "jane@example.edu").Warn("check", "phone", "555-0100", "lab", "Smith Lab")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["requester_email"])
	assert.Equal(t, "[REDACTED]", fields["phone"])
	assert.Equal(t, "Smith Lab", fields["lab"])
}

func TestLogger_OddKeyValues(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Len(t, out, 3)
	assert.True(t, strings.EqualFold("dangling", out[2].(string)))
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Debug("ignored")
	l.Error("ignored", "k", "v")
	l.Sync()
}
