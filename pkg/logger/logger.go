package logger

import (
	"os"
	"path/filepath"
	"strings"

	"llm-batch-call/config"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 持有基础 core，按需为单个输入文件派生带文件输出的日志
type Logger struct {
	base    *zap.Logger
	level   zap.AtomicLevel
	encoder zapcore.EncoderConfig
}

// New 根据配置构造日志，输出到 stderr
func New(cfg *config.LoggingConfig) (*Logger, error) {
	if cfg == nil {
		cfg = config.NewDefaultLoggingConfig()
	}
	level := zap.NewAtomicLevelAt(parseLevel(cfg.Level))

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "", "console":
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, errors.Errorf("不支持的日志格式: %s", cfg.Format)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level)
	return &Logger{
		base:    zap.New(core, zap.AddCaller()),
		level:   level,
		encoder: encCfg,
	}, nil
}

// Wrap 使用已有的 zap.Logger，测试中常用 zaptest / observer
func Wrap(l *zap.Logger) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return &Logger{
		base:    l,
		level:   zap.NewAtomicLevelAt(zapcore.DebugLevel),
		encoder: encCfg,
	}
}

func (l *Logger) Zap() *zap.Logger {
	return l.base
}

func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.base.Sugar()
}

// ForFile 返回同时写入 path 的日志，关闭函数只关闭该文件
func (l *Logger) ForFile(path string) (*zap.SugaredLogger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, errors.Wrap(err, "创建日志目录失败")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "打开日志文件失败: %s", path)
	}
	fileCore := zapcore.NewCore(zapcore.NewConsoleEncoder(l.encoder), zapcore.AddSync(f), l.level)
	lg := zap.New(zapcore.NewTee(l.base.Core(), fileCore), zap.AddCaller())
	closeFn := func() error {
		_ = lg.Sync()
		return f.Close()
	}
	return lg.Sugar(), closeFn, nil
}

func (l *Logger) Sync() {
	_ = l.base.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
