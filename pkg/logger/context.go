package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// IntoContext 把当前文件的日志挂到 ctx 上，下游组件的告警随之写入文件日志
func IntoContext(ctx context.Context, log *zap.SugaredLogger) context.Context {
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, log)
}

// FromContext 取出 ctx 上的日志，没有时返回 fallback
func FromContext(ctx context.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if log, ok := ctx.Value(ctxKey{}).(*zap.SugaredLogger); ok {
		return log
	}
	return fallback
}
