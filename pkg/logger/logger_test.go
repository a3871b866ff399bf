package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"llm-batch-call/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New(&config.LoggingConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)

	lg, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, lg.Sugar())
}

func TestForFileWritesLog(t *testing.T) {
	lg, err := New(&config.LoggingConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "in_process.log")
	log, closeFn, err := lg.ForFile(path)
	require.NoError(t, err)
	log.Infof("处理第 %d 批", 1)
	log.Debug("不会写入")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "处理第 1 批")
	assert.NotContains(t, string(data), "不会写入")
}

func TestContextLogger(t *testing.T) {
	fallback := zap.NewNop().Sugar()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))

	fileLog := zap.NewExample().Sugar()
	ctx := IntoContext(context.Background(), fileLog)
	assert.Same(t, fileLog, FromContext(context.WithoutCancel(ctx), fallback))
	assert.Equal(t, context.Background(), IntoContext(context.Background(), nil))
}
