package reader

import (
	"bufio"
	"io"
	"os"
	"strings"

	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"
)

const maxLineSize = 64 * 1024 * 1024

func (r *Reader) scanLines(path string) (*bufio.Scanner, io.Closer, error) {
	enc, err := r.encodingFor(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "打开文件失败: %s", path)
	}
	sc := bufio.NewScanner(transform.NewReader(f, enc.enc.NewDecoder()))
	sc.Buffer(make([]byte, 0, 1024*1024), maxLineSize)
	return sc, f, nil
}

// readJSONL 中 offset 与 count 均按物理行计算，空行被消耗但不产生记录
func (r *Reader) readJSONL(path string, offset, count int, sel Selector) (model.Batch, error) {
	sc, closer, err := r.scanLines(path)
	if err != nil {
		return model.Batch{}, err
	}
	defer closer.Close()

	line := 0
	for line < offset && sc.Scan() {
		line++
	}
	batch := model.Batch{}
	for batch.Consumed < count && sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		batch.Consumed++
		line++
		if text == "" {
			continue
		}
		batch.Records = append(batch.Records, r.record(path, line-1, jsonValues(text), sel))
	}
	if err := sc.Err(); err != nil {
		return model.Batch{}, errors.Wrapf(err, "读取文件失败: %s", path)
	}
	return batch, nil
}

// jsonValues 按键顺序取出对象的值，非对象行整体作为一个值
func jsonValues(line string) []string {
	fields := model.NewFields()
	if err := fields.UnmarshalJSON([]byte(line)); err != nil || fields.Len() == 0 {
		return []string{line}
	}
	values := make([]string, 0, fields.Len())
	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		values = append(values, model.Stringify(v))
	}
	return values
}

func (r *Reader) countJSONL(path string) (int, error) {
	sc, closer, err := r.scanLines(path)
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	n := 0
	for sc.Scan() {
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, errors.Wrapf(err, "统计行数失败: %s", path)
	}
	return n, nil
}
