package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFieldConstructors(t *testing.T) {
	assert.Equal(t, Field{Key: "s", Value: "v"}, String("s", "v"))
	assert.Equal(t, Field{Key: "i", Value: 42}, Int("i", 42))
	assert.Equal(t, Field{Key: "i64", Value: int64(42)}, Int64("i64", 42))
	assert.Equal(t, Field{Key: "f", Value: 1.5}, Float64("f", 1.5))
	assert.Equal(t, Field{Key: "b", Value: true}, Bool("b", true))
	assert.Equal(t, Field{Key: "d", Value: time.Second}, Duration("d", time.Second))

	assert.Equal(t, Field{Key: "error", Value: "boom"}, Err(errors.New("boom")))
	assert.Equal(t, Field{Key: "error", Value: "<nil>"}, Err(nil))
}

func TestZapLoggerEmitsFields(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	log := NewLoggerFromCore(core)

	log.Info("portfolio summary computed",
		String("portfolio_id", "p-1"),
		Int("items", 3),
		Duration("took", 5*time.Millisecond),
	)

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "portfolio summary computed", entries[0].Message)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "p-1", ctx["portfolio_id"])
	assert.EqualValues(t, 3, ctx["items"])
}

func TestWithAttachesFieldsToChildOnly(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	parent := NewLoggerFromCore(core)
	child := parent.With(String("component", "gwp"))

	parent.Info("parent entry")
	child.Info("child entry")

	entries := observed.All()
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0].ContextMap(), "component")
	assert.Equal(t, "gwp", entries[1].ContextMap()["component"])
}

func TestNamed(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	log := NewLoggerFromCore(core).Named("app").Named("http")

	log.Warn("slow request")

	entries := observed.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "app.http", entries[0].LoggerName)
}

func TestNewLoggerDefaults(t *testing.T) {
	log, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestNewLoggerConsoleFormat(t *testing.T) {
	log, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestSetLevelAdjustsSeverityAtRuntime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := NewLogger(LogConfig{Level: "info", Format: "json", OutputPaths: []string{path}})
	require.NoError(t, err)

	log.Debug("suppressed entry")
	require.True(t, SetLevel(log, "debug"))

	// The level is shared with children, so named loggers pick it up too.
	log.Named("gwp").Debug("visible entry")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "suppressed entry")
	assert.Contains(t, string(data), "visible entry")
}

func TestSetLevelUnsupportedLoggers(t *testing.T) {
	assert.False(t, SetLevel(NewNopLogger(), "debug"))

	core, _ := observer.New(zapcore.DebugLevel)
	assert.False(t, SetLevel(NewLoggerFromCore(core), "debug"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("bogus"))
}

func TestDefaultLogger(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	nop := NewNopLogger()
	SetDefault(nop)
	assert.Equal(t, nop, Default())

	// nil must not replace the current default
	SetDefault(nil)
	assert.Equal(t, nop, Default())
}

func TestNopLoggerIsSilentAndChainable(t *testing.T) {
	log := NewNopLogger()
	child := log.With(String("k", "v")).Named("x")
	child.Debug("ignored")
	child.Info("ignored")
	child.Warn("ignored")
	child.Error("ignored")
}
