package reader

import (
	"path/filepath"
	"strings"
	"sync"

	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrUnsupportedFormat = errors.New("不支持的文件格式")

type Format int

const (
	FormatCSV Format = iota
	FormatJSONL
	FormatXLSX
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSONL:
		return "jsonl"
	default:
		return "xlsx"
	}
}

// DetectFormat 按扩展名识别输入格式
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json", ".jsonl":
		return FormatJSONL, nil
	case ".xlsx":
		return FormatXLSX, nil
	}
	return 0, errors.Wrapf(ErrUnsupportedFormat, "%s", path)
}

// IsCandidate 判断目录模式下是否应该处理该文件，.xls 会被选中并在读取时报错
func IsCandidate(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".json", ".jsonl", ".xlsx", ".xls":
		return true
	}
	return false
}

// Reader 按窗口读取表格类文件，不修改源文件
type Reader struct {
	log *zap.SugaredLogger

	mu        sync.Mutex
	encodings map[string]cachedEncoding
	warned    map[string]bool
}

func New(log *zap.SugaredLogger) *Reader {
	return &Reader{
		log:       log,
		encodings: make(map[string]cachedEncoding),
		warned:    make(map[string]bool),
	}
}

// ReadBatch 从 offset 开始读取最多 count 行
func (r *Reader) ReadBatch(path string, offset, count int, sel Selector) (model.Batch, error) {
	if offset < 0 || count <= 0 {
		return model.Batch{}, nil
	}
	format, err := DetectFormat(path)
	if err != nil {
		return model.Batch{}, err
	}
	switch format {
	case FormatCSV:
		return r.readCSV(path, offset, count, sel)
	case FormatJSONL:
		return r.readJSONL(path, offset, count, sel)
	default:
		return r.readXLSX(path, offset, count, sel)
	}
}

// TotalRows 返回数据行数，csv / xlsx 不含表头，jsonl 按物理行计数
func (r *Reader) TotalRows(path string) (int, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return 0, err
	}
	switch format {
	case FormatCSV:
		return r.countCSV(path)
	case FormatJSONL:
		return r.countJSONL(path)
	default:
		return r.countXLSX(path)
	}
}

func (r *Reader) record(path string, offset int, values []string, sel Selector) model.InputRecord {
	projected, outOfRange := sel.project(values)
	if outOfRange {
		r.warnOnce(path, "列选择 %s 超出文件 %s 的列数 %d，越界的列被忽略", sel, path, len(values))
	}
	return model.InputRecord{Offset: offset, Content: fold(projected)}
}

func (r *Reader) warnOnce(path, template string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.warned[path] {
		return
	}
	r.warned[path] = true
	r.log.Warnf(template, args...)
}
