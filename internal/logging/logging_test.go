package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileOutputRotatesThroughLumberjack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quote.log")
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Output = path

	logger := New(cfg)
	logger.Info("quote committed", zap.String("quote_no", "QT202601010001"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"quote_no":"QT202601010001"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quote.log")
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Level = "warn"
	cfg.Output = path

	logger := New(cfg)
	logger.Info("hidden")
	logger.Warn("retrying save")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "retrying save")
}

func TestInitializeReplacesGlobals(t *testing.T) {
	prev := Logger
	t.Cleanup(func() {
		Logger = prev
		Sugar = prev.Sugar()
	})

	require.NoError(t, Initialize(Config{Level: "bogus", Format: "json", Output: "stdout"}))
	assert.NotSame(t, prev, Logger)
	assert.NotNil(t, Sugar)
}

func TestGlobalHelpers(t *testing.T) {
	prev := Logger
	t.Cleanup(func() {
		Logger = prev
		Sugar = prev.Sugar()
	})

	path := filepath.Join(t.TempDir(), "quote.log")
	cfg := DefaultConfig()
	cfg.Format = "json"
	cfg.Level = "debug"
	cfg.Output = path
	require.NoError(t, Initialize(cfg))

	Debug("command failed", zap.String("reason", "bad input"))
	With(zap.String("command", "quotectl quote show")).Info("loaded")
	Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"reason":"bad input"`)
	assert.Contains(t, string(data), `"command":"quotectl quote show"`)
}
