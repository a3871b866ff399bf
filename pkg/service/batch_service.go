package service

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"llm-batch-call/config"
	"llm-batch-call/pkg/logger"
	"llm-batch-call/pkg/model"
	"llm-batch-call/pkg/progress"
	"llm-batch-call/pkg/prompt"
	"llm-batch-call/pkg/provider"
	"llm-batch-call/pkg/reader"
	"llm-batch-call/pkg/sink"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

var generatedSuffixes = []string{"_output", "_error", "_raw", "_progress"}

// Request 描述一次运行的输入
type Request struct {
	InputPath string // 文件或目录
	Prompt    model.PromptSpec
	Selector  reader.Selector
	StartPos  int // 从 1 开始，0 与 1 等价
	EndPos    int // 从 1 开始且包含，0 表示到文件末尾
}

type FileSummary struct {
	Path        string
	Stats       model.Stats // 本次运行处理的记录
	StartOffset int
	EndOffset   int
	Batches     int
	Skipped     bool
	Interrupted bool
	Err         error
}

type Summary struct {
	RunID       string
	Files       []FileSummary
	Stats       model.Stats
	FailedFiles int
	Interrupted bool
}

// statusCounter 由支持统计的镜像实现
type statusCounter interface {
	CountByStatus(ctx context.Context, runID, source string) (map[string]int64, error)
}

type Option func(*BatchService)

func WithMirrors(mirrors ...sink.Mirror) Option {
	return func(s *BatchService) { s.mirrors = append(s.mirrors, mirrors...) }
}

func WithRunID(id string) Option {
	return func(s *BatchService) { s.runID = id }
}

func WithClock(now func() time.Time) Option {
	return func(s *BatchService) { s.now = now }
}

// BatchService 逐个文件执行 读取 → 并发调用 → 分类 → 写出 → 检查点 循环
type BatchService struct {
	cfg      *config.GlobalConfig
	provider provider.Provider
	logger   *logger.Logger
	log      *zap.SugaredLogger
	mirrors  []sink.Mirror
	runID    string
	now      func() time.Time
}

func NewBatchService(cfg *config.GlobalConfig, p provider.Provider, lg *logger.Logger, opts ...Option) *BatchService {
	if cfg.Output == nil {
		cfg.Output = config.NewDefaultOutputConfig()
	}
	s := &BatchService{
		cfg:      cfg,
		provider: p,
		logger:   lg,
		log:      lg.Sugar(),
		runID:    uuid.NewString(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BatchService) RunID() string { return s.runID }

// Run 处理单个文件或目录下的全部文件，单个文件失败不影响其它文件
func (s *BatchService) Run(ctx context.Context, req Request) (*Summary, error) {
	inputs, root, err := listInputs(req.InputPath)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, errors.Errorf("在 %s 中未找到可处理的文件", req.InputPath)
	}

	system := prompt.Render(req.Prompt, s.cfg.Process.PromptStyle)
	var tmpl *prompt.Template
	var fallbackHeader []string
	if t, ok := prompt.ParseTemplate(req.Prompt.OutputSchema); ok {
		fallbackHeader = t.Keys()
		if s.cfg.Process.ValidateOutput {
			tmpl = t
			s.log.Infof("启用输出校验: %s", t.Describe())
		}
	} else if s.cfg.Process.ValidateOutput {
		s.log.Warn("输出格式不是 JSON 对象，跳过输出校验")
	}
	processor := NewRecordProcessor(s.provider, system, tmpl)

	s.log.Infof("运行 %s: 共 %d 个文件，提供商 %s (%s)，批大小 %d，并发 %d",
		s.runID, len(inputs), s.provider.Name(), s.provider.Kind(), s.cfg.Process.BatchSize, s.cfg.Process.ConcurrencyLimit)

	summary := &Summary{RunID: s.runID}
	startTime := time.Now()
	for i, path := range inputs {
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}
		s.log.Infof("[%d/%d] 处理文件 %s", i+1, len(inputs), path)
		fs := s.processFile(ctx, fileJob{
			path:           path,
			root:           root,
			req:            req,
			processor:      processor,
			fallbackHeader: fallbackHeader,
		})
		if fs.Err != nil {
			summary.FailedFiles++
			s.log.Errorf("处理文件 %s 失败: %v", path, fs.Err)
		}
		if fs.Interrupted {
			summary.Interrupted = true
		}
		summary.Stats.Merge(fs.Stats)
		summary.Files = append(summary.Files, fs)
	}

	st := summary.Stats
	s.log.Infof("全部完成: 文件 %d 个 (失败 %d)，记录 %d 条: 成功 %d, API错误 %d, 空结果 %d, JSON错误 %d, 其他 %d",
		len(summary.Files), summary.FailedFiles, st.Total, st.Success, st.APIError, st.EmptyResult, st.JSONError, st.Other)
	s.log.Infof("耗时：%s", time.Since(startTime))
	return summary, nil
}

type fileJob struct {
	path           string
	root           string
	req            Request
	processor      *RecordProcessor
	fallbackHeader []string
}

func (s *BatchService) processFile(ctx context.Context, job fileJob) (fs FileSummary) {
	fs.Path = job.path
	files := model.NewOutputFileSet(job.path, s.outputDir(job.root, job.path), s.now())

	flog, closeLog, err := s.logger.ForFile(files.ProcessLog)
	if err != nil {
		s.log.Warnf("无法创建文件日志 %s: %v", files.ProcessLog, err)
		flog, closeLog = s.log, func() error { return nil }
	}
	defer func() {
		if err := closeLog(); err != nil {
			s.log.Warnf("关闭文件日志失败: %v", err)
		}
	}()

	if _, err := reader.DetectFormat(job.path); err != nil {
		fs.Err = err
		return fs
	}
	rd := reader.New(flog)
	total, err := rd.TotalRows(job.path)
	if err != nil {
		fs.Err = errors.Wrap(err, "统计行数失败")
		return fs
	}

	state, err := progress.Load(files.Progress)
	if err != nil {
		fs.Err = err
		return fs
	}
	if state == nil {
		state = &model.ProgressState{}
	}

	start, end := window(job.req, total, state.LastOffset)
	if state.LastOffset > 0 && state.LastOffset >= job.req.StartPos-1 {
		flog.Infof("检测到进度文件，从第 %d 行继续 (已处理 %d 条)", state.LastOffset+1, state.Stats.Total)
	}
	fs.StartOffset, fs.EndOffset = start, start
	if start >= end {
		flog.Infof("文件 %s 的指定范围已处理完成 (共 %d 行)", job.path, total)
		fs.Skipped = true
		return fs
	}

	out, err := sink.Open(files, flog, sink.Options{
		RunID:          s.runID,
		Source:         job.path,
		Backup:         s.cfg.Output.Backup,
		FallbackHeader: job.fallbackHeader,
		Mirrors:        s.mirrors,
	})
	if err != nil {
		fs.Err = errors.Wrap(err, "打开输出文件失败")
		return fs
	}
	defer func() {
		if err := out.Close(); err != nil {
			flog.Errorf("关闭输出文件失败: %v", err)
			if fs.Err == nil {
				fs.Err = err
			}
		}
	}()

	state.RunID = s.runID
	state.Source = job.path
	reporter := newProgressReporter(flog, start, end)
	flog.Infof("开始处理 %s: 共 %d 行，本次处理第 %d-%d 行，剩余 %d 行",
		job.path, total, start+1, end, end-start)

	cursor := start
	batchSize := s.cfg.Process.BatchSize
	for cursor < end {
		if ctx.Err() != nil {
			flog.Warnf("收到中断信号，停止处理，下次从第 %d 行继续", cursor+1)
			fs.Interrupted = true
			break
		}

		count := batchSize
		if end-cursor < count {
			count = end - cursor
		}
		batch, err := rd.ReadBatch(job.path, cursor, count, job.req.Selector)
		if err != nil {
			fs.Err = errors.Wrapf(err, "读取第 %d 行开始的批次失败", cursor+1)
			return fs
		}
		if batch.Consumed == 0 {
			break
		}

		stats, err := s.runBatch(logger.IntoContext(ctx, flog), out, job.processor, batch.Records)
		if err != nil {
			fs.Err = err
			return fs
		}
		if err := out.Flush(); err != nil {
			fs.Err = errors.Wrap(err, "刷新输出文件失败")
			return fs
		}

		state.Advance(cursor+batch.Consumed, stats, s.now())
		if err := progress.Save(files.Progress, state); err != nil {
			fs.Err = err
			return fs
		}
		cursor += batch.Consumed
		fs.Batches++
		fs.Stats.Merge(stats)
		fs.EndOffset = cursor
		reporter.batchDone(fs.Batches, stats, cursor)
	}

	st := state.Stats
	flog.Infof("文件 %s 处理完成: 本次 %d 条，累计 %d 条: 成功 %d, API错误 %d, 空结果 %d, JSON错误 %d, 其他 %d",
		job.path, fs.Stats.Total, st.Total, st.Success, st.APIError, st.EmptyResult, st.JSONError, st.Other)
	s.reportMirrors(ctx, flog, job.path)
	return fs
}

// runBatch 同时派发整批记录，全部完成后才返回；写出失败或写出时 panic 都不推进检查点
func (s *BatchService) runBatch(ctx context.Context, out *sink.Sink, processor *RecordProcessor, records []model.InputRecord) (model.Stats, error) {
	// 已派发的批次允许在中断后继续完成
	dispatchCtx := context.WithoutCancel(ctx)
	results := make([]model.Result, len(records))
	writeErrs := make([]error, len(records))

	var wg conc.WaitGroup
	for i := range records {
		wg.Go(func() {
			results[i] = processor.Process(dispatchCtx, records[i])
			writeErrs[i] = out.Route(dispatchCtx, records[i], results[i])
		})
	}
	if p := wg.WaitAndRecover(); p != nil {
		return model.Stats{}, errors.Errorf("写出结果时发生异常: %v", p.Value)
	}

	var stats model.Stats
	for i, r := range results {
		if writeErrs[i] != nil {
			return model.Stats{}, errors.Wrapf(writeErrs[i], "写入第 %d 行结果失败", records[i].Offset+1)
		}
		stats.Add(r.Kind)
	}
	return stats, nil
}

func (s *BatchService) reportMirrors(ctx context.Context, flog *zap.SugaredLogger, source string) {
	for _, m := range s.mirrors {
		counter, ok := m.(statusCounter)
		if !ok {
			continue
		}
		counts, err := counter.CountByStatus(context.WithoutCancel(ctx), s.runID, source)
		if err != nil {
			flog.Warnf("查询镜像 %s 统计失败: %v", m.Name(), err)
			continue
		}
		flog.Infof("镜像 %s 中本次运行的记录: %v", m.Name(), counts)
	}
}

// outputDir 为空配置时返回空串，即与输入文件同目录
func (s *BatchService) outputDir(root, path string) string {
	if s.cfg.Output.Dir == "" {
		return ""
	}
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = "."
	}
	return filepath.Join(s.cfg.Output.Dir, rel)
}

// window 计算本次处理的 [start, end)，检查点位置大于起始位置时以检查点为准
func window(req Request, total, checkpoint int) (int, int) {
	start := req.StartPos - 1
	if start < 0 {
		start = 0
	}
	if checkpoint > start {
		start = checkpoint
	}
	end := total
	if req.EndPos > 0 && req.EndPos < end {
		end = req.EndPos
	}
	return start, end
}

// listInputs 目录模式下按文件名排序，跳过本工具生成的输出文件
func listInputs(path string) ([]string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "输入路径不存在: %s", path)
	}
	if !info.IsDir() {
		return []string{path}, filepath.Dir(path), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "读取目录失败: %s", path)
	}
	var inputs []string
	for _, e := range entries {
		if e.IsDir() || !reader.IsCandidate(e.Name()) || isGenerated(e.Name()) {
			continue
		}
		inputs = append(inputs, filepath.Join(path, e.Name()))
	}
	sort.Strings(inputs)
	return inputs, path, nil
}

func isGenerated(name string) bool {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	for _, suffix := range generatedSuffixes {
		if strings.HasSuffix(stem, suffix) {
			return true
		}
	}
	return false
}
