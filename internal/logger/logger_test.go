package logger

import (
	"errors"
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

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	cfg := DefaultConfig()
	cfg.LogFile = path

	l, err := New(cfg)
	require.NoError(t, err)
	l.WithOperation("quote").Info("quote fetched", zap.String("input_mint", "SOL"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, `"msg":"quote fetched"`)
	assert.Contains(t, line, `"operation":"quote"`)
	assert.Contains(t, line, `"correlation_id"`)
}

func TestNewWithoutFile(t *testing.T) {
	l, err := New(&Config{Development: true})
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestTrackPerformance(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	end := TrackPerformance(zap.New(core), "broadcast")
	end()

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Operation completed", entries[1].Message)
	assert.Contains(t, entries[1].ContextMap(), "duration_ms")
}

type captureCore struct {
	zapcore.LevelEnabler
	messages []string
	fields   int
}

func (c *captureCore) With([]zapcore.Field) zapcore.Core { return c }
func (c *captureCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(e, c)
}
func (c *captureCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	c.messages = append(c.messages, e.Message)
	c.fields += len(fields)
	return nil
}
func (c *captureCore) Sync() error { return nil }

func TestFieldFilterCoreRewritesKnownMessages(t *testing.T) {
	inner := &captureCore{LevelEnabler: zapcore.InfoLevel}
	l := zap.New(&FieldFilterCore{core: inner}).With(zap.String("wallet", "w"))

	l.Info("swap broadcast", zap.String("signature", strings.Repeat("a", 40)+"ZZZZZZZZ"))
	l.Error("swap failed", zap.Error(errors.New("slippage exceeded")))
	l.Info("something else")
	l.Debug("dropped")

	require.Len(t, inner.messages, 3)
	assert.Contains(t, inner.messages[0], "aaaaaaaa...ZZZZZZZZ")
	assert.Contains(t, inner.messages[1], "slippage exceeded")
	assert.Equal(t, "something else", inner.messages[2])
	assert.Zero(t, inner.fields)
}
