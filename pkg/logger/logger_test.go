package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestFileOnlyWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assistant.log")

	log, err := NewFileOnly(path, "debug")
	require.NoError(t, err)
	log.Info("turn processed")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"turn processed"`)
}

func TestFileOnlyWithoutPathIsNop(t *testing.T) {
	log, err := NewFileOnly("", "")
	require.NoError(t, err)
	log.Info("dropped")
}
