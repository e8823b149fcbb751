package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

// syncBuffer adapts a strings.Builder to zapcore.WriteSyncer.
type syncBuffer struct {
	strings.Builder
}

func (b *syncBuffer) Sync() error { return nil }

func TestGetLoggerBeforeInitializeIsNop(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
	// Must be safe to use without initialization.
	logger.Info("should go nowhere")
}

func TestInitializeWritesStructuredOutput(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "flowpilot-test",
	}, zapcore.Lock(buf))

	GetLogger().Info("hello from test")
	Sync()

	out := buf.String()
	assert.Contains(t, out, "hello from test")
	assert.Contains(t, out, "flowpilot-test")
}

func TestInitializeHappensOnlyOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}

	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.Lock(first))
	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.Lock(second))

	GetLogger().Info("routed to the first writer")
	Sync()

	assert.Contains(t, first.String(), "routed to the first writer")
	assert.Empty(t, second.String())
}

func TestInitializeWithLogFileCreatesIt(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logFile := filepath.Join(t.TempDir(), "flowpilot.log")
	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{
		Level:   "info",
		Format:  "console",
		LogFile: logFile,
	}, zapcore.Lock(buf))

	GetLogger().Info("file sink check")
	Sync()

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file sink check")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "shouting", Format: "json"}, zapcore.Lock(buf))

	logger := GetLogger()
	logger.Debug("dropped at info level")
	logger.Info("kept at info level")
	Sync()

	out := buf.String()
	assert.NotContains(t, out, "dropped at info level")
	assert.Contains(t, out, "kept at info level")
}

func TestIsInitializedTracksLoggerState(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.False(t, IsInitialized())

	Initialize(config.LoggerConfig{Level: "info", Format: "json"}, zapcore.Lock(&syncBuffer{}))
	assert.True(t, IsInitialized())
}
