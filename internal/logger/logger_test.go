package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Domenick1991/flightseats/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(config.LogConfig{Level: "info", Format: "json", File: path, MaxSizeMB: 1}, "test")
	require.NoError(t, err)

	log.Info("hello")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"service":"test"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, "test")
	assert.Error(t, err)
}
