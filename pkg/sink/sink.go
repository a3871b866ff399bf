package sink

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"llm-batch-call/pkg/model"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var failureHeader = []string{"content", "reason", "offset"}

// Mirror 接收每条分类结果的副本，失败只记录警告
type Mirror interface {
	Name() string
	Mirror(ctx context.Context, rec model.ProcessedRecord) error
}

type Options struct {
	RunID  string
	Source string
	Backup bool
	// FallbackHeader 在整次运行没有成功记录时作为成功表的表头
	FallbackHeader []string
	Mirrors        []Mirror
}

// Sink 将分类结果写入成功表、原始响应日志和失败表，每次追加都持有写锁
type Sink struct {
	files model.OutputFileSet
	opts  Options
	log   *zap.SugaredLogger

	mu       sync.Mutex
	success  table
	failure  table
	raw      *os.File
	header   []string
	backedUp []string
}

// Open 先备份已存在的输出文件，再以追加方式打开
func Open(files model.OutputFileSet, log *zap.SugaredLogger, opts Options) (*Sink, error) {
	if err := os.MkdirAll(filepath.Dir(files.Success), 0755); err != nil {
		return nil, errors.Wrap(err, "创建输出目录失败")
	}
	s := &Sink{files: files, opts: opts, log: log}

	if opts.Backup {
		copied, err := backupExisting(files)
		if err != nil {
			return nil, err
		}
		s.backedUp = copied
		if len(copied) > 0 {
			log.Infof("已备份 %d 个已有输出文件到 %s", len(copied), files.BackupDir)
		}
	}

	var err error
	if s.success, err = openTable(files.Success); err != nil {
		return nil, err
	}
	if s.failure, err = openTable(files.Failure); err != nil {
		s.success.close()
		return nil, err
	}
	if s.failure.header() == nil {
		if err := s.failure.writeHeader(failureHeader); err != nil {
			s.closeTables()
			return nil, errors.Wrap(err, "写入失败表表头失败")
		}
	}
	if s.raw, err = os.OpenFile(files.Raw, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err != nil {
		s.closeTables()
		return nil, errors.Wrapf(err, "打开原始响应文件失败: %s", files.Raw)
	}
	// 续跑时沿用文件中已有的表头
	s.header = s.success.header()
	return s, nil
}

func (s *Sink) Files() model.OutputFileSet { return s.files }

func (s *Sink) BackedUp() []string { return s.backedUp }

// Header 返回当前成功表表头，尚未确定时为 nil
func (s *Sink) Header() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.header...)
}

// WriteSuccess 表头固定为第一条成功记录的键，键集合不一致时告警但照常写入
func (s *Sink) WriteSuccess(rec model.InputRecord, fields *model.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := fields.Keys()
	if s.header == nil {
		if err := s.success.writeHeader(keys); err != nil {
			return errors.Wrap(err, "写入成功表表头失败")
		}
		s.header = keys
	} else if !sameKeySet(s.header, keys) {
		s.log.Warnf("第 %d 行的字段 %v 与表头 %v 不一致，按表头写入", rec.Offset+1, keys, s.header)
	}

	values := make([]interface{}, len(s.header))
	for i, col := range s.header {
		values[i], _ = fields.Get(col)
	}
	if err := s.success.appendRow(s.header, values); err != nil {
		return errors.Wrap(err, "写入成功表失败")
	}
	return nil
}

// WriteFailure 写入原始内容与分类原因
func (s *Sink) WriteFailure(rec model.InputRecord, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure.appendRow(failureHeader, []interface{}{rec.Content, reason, rec.Offset}); err != nil {
		return errors.Wrap(err, "写入失败表失败")
	}
	return nil
}

// WriteRaw 追加一行原始响应
func (s *Sink) WriteRaw(entry model.RawEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := encodeLine(s.raw, entry); err != nil {
		return errors.Wrap(err, "写入原始响应失败")
	}
	return nil
}

// Route 按分类结果写入对应的输出，并同步到镜像
func (s *Sink) Route(ctx context.Context, rec model.InputRecord, result model.Result) error {
	entry := model.RawEntry{
		Timestamp: time.Now(),
		RunID:     s.opts.RunID,
		Offset:    rec.Offset,
		Status:    result.Kind.String(),
		Content:   rec.Content,
		Response:  result.Raw,
		Reason:    result.Reason(),
	}
	if err := s.WriteRaw(entry); err != nil {
		return err
	}

	var err error
	if result.Kind == model.ResultSuccess {
		err = s.WriteSuccess(rec, result.Fields)
	} else {
		err = s.WriteFailure(rec, result.Reason())
	}
	if err != nil {
		return err
	}

	s.mirror(ctx, rec, result)
	return nil
}

func (s *Sink) mirror(ctx context.Context, rec model.InputRecord, result model.Result) {
	if len(s.opts.Mirrors) == 0 {
		return
	}
	pr := model.ProcessedRecord{
		ID:        uuid.NewString(),
		RunID:     s.opts.RunID,
		Source:    s.opts.Source,
		Offset:    rec.Offset,
		Status:    result.Kind.String(),
		Content:   rec.Content,
		Reason:    result.Reason(),
		CreatedAt: time.Now(),
	}
	if result.Fields != nil {
		pr.Fields = *result.Fields
	}
	for _, m := range s.opts.Mirrors {
		if err := m.Mirror(ctx, pr); err != nil {
			s.log.Warnf("写入镜像 %s 失败: %v", m.Name(), err)
		}
	}
}

// Flush 在写检查点前调用，确保本批结果已落盘
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.success.flush(); err != nil {
		return err
	}
	if err := s.failure.flush(); err != nil {
		return err
	}
	return s.raw.Sync()
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	if s.header == nil && len(s.opts.FallbackHeader) > 0 {
		if err := s.success.writeHeader(s.opts.FallbackHeader); err != nil {
			firstErr = err
		}
	}
	if err := s.closeTables(); err != nil && firstErr == nil {
		firstErr = err
	}
	if s.raw != nil {
		if err := s.raw.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Sink) closeTables() error {
	var firstErr error
	if s.success != nil {
		firstErr = s.success.close()
	}
	if s.failure != nil {
		if err := s.failure.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func sameKeySet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
