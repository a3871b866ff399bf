package sink

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// table 是一个只追加的输出表
type table interface {
	// header 返回文件中已有的表头，新文件返回 nil
	header() []string
	writeHeader(cols []string) error
	appendRow(cols []string, values []interface{}) error
	flush() error
	close() error
}

func openTable(path string) (table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl":
		return openJSONLTable(path)
	case ".xlsx":
		return openXLSXTable(path)
	default:
		return openCSVTable(path)
	}
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvTable struct {
	f        *os.File
	w        *csv.Writer
	existing []string
}

// openCSVTable 新文件写入 UTF-8 BOM，便于 Excel 直接打开
func openCSVTable(path string) (*csvTable, error) {
	existing, err := readCSVHeader(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "打开输出文件失败: %s", path)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "读取文件信息失败: %s", path)
	}
	if info.Size() == 0 {
		if _, err := f.Write(utf8BOM); err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "写入文件失败: %s", path)
		}
	}
	return &csvTable{f: f, w: csv.NewWriter(f), existing: existing}, nil
}

func readCSVHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "打开输出文件失败: %s", path)
	}
	defer f.Close()
	br := bufio.NewReader(f)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	cols, err := csv.NewReader(br).Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "读取已有表头失败: %s", path)
	}
	return cols, nil
}

func (t *csvTable) header() []string { return t.existing }

func (t *csvTable) writeHeader(cols []string) error {
	t.existing = cols
	return t.write(cols)
}

func (t *csvTable) appendRow(_ []string, values []interface{}) error {
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = model.Stringify(v)
	}
	return t.write(row)
}

func (t *csvTable) write(row []string) error {
	if err := t.w.Write(row); err != nil {
		return err
	}
	t.w.Flush()
	return t.w.Error()
}

func (t *csvTable) flush() error { return t.f.Sync() }

func (t *csvTable) close() error {
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		t.f.Close()
		return err
	}
	return t.f.Close()
}

// jsonlTable 每行一个对象，表头只用于决定键的顺序
type jsonlTable struct {
	f        *os.File
	existing []string
}

func openJSONLTable(path string) (*jsonlTable, error) {
	existing, err := readJSONLHeader(path)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "打开输出文件失败: %s", path)
	}
	return &jsonlTable{f: f, existing: existing}, nil
}

func readJSONLHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "打开输出文件失败: %s", path)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := model.NewFields()
		if err := fields.UnmarshalJSON([]byte(line)); err != nil {
			return nil, nil
		}
		return fields.Keys(), nil
	}
	return nil, sc.Err()
}

func (t *jsonlTable) header() []string { return t.existing }

func (t *jsonlTable) writeHeader(cols []string) error {
	t.existing = cols
	return nil
}

func (t *jsonlTable) appendRow(cols []string, values []interface{}) error {
	row := model.NewFields()
	for i, c := range cols {
		var v interface{}
		if i < len(values) {
			v = values[i]
		}
		row.Set(c, v)
	}
	b, err := row.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = t.f.Write(append(b, '\n'))
	return err
}

func (t *jsonlTable) flush() error { return t.f.Sync() }

func (t *jsonlTable) close() error { return t.f.Close() }

// xlsxTable 在内存中追加，flush 时整体保存
type xlsxTable struct {
	path     string
	f        *excelize.File
	sheet    string
	nextRow  int
	existing []string
	dirty    bool
}

func openXLSXTable(path string) (*xlsxTable, error) {
	t := &xlsxTable{path: path, nextRow: 1}
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "打开输出工作簿失败: %s", path)
		}
		t.f = f
		t.sheet = f.GetSheetList()[0]
		rows, err := f.GetRows(t.sheet)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "读取输出工作簿失败: %s", path)
		}
		if len(rows) > 0 {
			t.existing = rows[0]
		}
		t.nextRow = len(rows) + 1
		return t, nil
	}
	t.f = excelize.NewFile()
	t.sheet = t.f.GetSheetList()[0]
	t.dirty = true
	return t, t.flush()
}

func (t *xlsxTable) header() []string { return t.existing }

func (t *xlsxTable) writeHeader(cols []string) error {
	t.existing = cols
	values := make([]interface{}, len(cols))
	for i, c := range cols {
		values[i] = c
	}
	return t.appendRow(cols, values)
}

func (t *xlsxTable) appendRow(_ []string, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, t.nextRow)
	if err != nil {
		return err
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = model.Stringify(v)
	}
	if err := t.f.SetSheetRow(t.sheet, cell, &row); err != nil {
		return err
	}
	t.nextRow++
	t.dirty = true
	return nil
}

func (t *xlsxTable) flush() error {
	if !t.dirty {
		return nil
	}
	if err := t.f.SaveAs(t.path); err != nil {
		return errors.Wrapf(err, "保存工作簿失败: %s", t.path)
	}
	t.dirty = false
	return nil
}

func (t *xlsxTable) close() error {
	err := t.flush()
	if cerr := t.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// encodeLine 输出一行 JSON，不转义 HTML 字符
func encodeLine(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
