package service

import (
	"time"

	"llm-batch-call/pkg/model"

	"go.uber.org/zap"
)

// progressReporter 按本次需要处理的行数（而非文件总行数）报告进度
type progressReporter struct {
	log     *zap.SugaredLogger
	start   int
	end     int
	started time.Time
}

func newProgressReporter(log *zap.SugaredLogger, start, end int) *progressReporter {
	return &progressReporter{log: log, start: start, end: end, started: time.Now()}
}

func (r *progressReporter) batchDone(n int, stats model.Stats, cursor int) {
	todo := r.end - r.start
	done := cursor - r.start
	percent := 100.0
	if todo > 0 {
		percent = float64(done) * 100 / float64(todo)
	}
	eta := time.Duration(0)
	if done > 0 {
		eta = time.Duration(float64(time.Since(r.started)) / float64(done) * float64(r.end-cursor))
	}
	r.log.Infof("第 %d 批完成: 成功 %d, API错误 %d, 空结果 %d, JSON错误 %d, 其他 %d | 进度 %d/%d (%.1f%%), 剩余 %d 行, 预计 %s",
		n, stats.Success, stats.APIError, stats.EmptyResult, stats.JSONError, stats.Other,
		done, todo, percent, r.end-cursor, eta.Round(time.Second))
}
