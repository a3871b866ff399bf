package reader

import (
	"encoding/csv"
	"io"
	"os"

	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
	"golang.org/x/text/transform"
)

func (r *Reader) openCSV(path string) (*csv.Reader, io.Closer, error) {
	enc, err := r.encodingFor(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "打开文件失败: %s", path)
	}
	cr := csv.NewReader(transform.NewReader(f, enc.enc.NewDecoder()))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr, f, nil
}

func (r *Reader) readCSV(path string, offset, count int, sel Selector) (model.Batch, error) {
	cr, closer, err := r.openCSV(path)
	if err != nil {
		return model.Batch{}, err
	}
	defer closer.Close()

	// 表头
	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return model.Batch{}, nil
		}
		return model.Batch{}, errors.Wrapf(err, "读取表头失败: %s", path)
	}
	for i := 0; i < offset; i++ {
		if _, err := cr.Read(); err != nil {
			if err == io.EOF {
				return model.Batch{}, nil
			}
			return model.Batch{}, errors.Wrapf(err, "跳过第 %d 行失败", i+1)
		}
	}

	batch := model.Batch{Records: make([]model.InputRecord, 0, count)}
	for i := 0; i < count; i++ {
		values, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.Batch{}, errors.Wrapf(err, "读取第 %d 行失败", offset+i+1)
		}
		batch.Records = append(batch.Records, r.record(path, offset+i, values, sel))
		batch.Consumed++
	}
	return batch, nil
}

func (r *Reader) countCSV(path string) (int, error) {
	cr, closer, err := r.openCSV(path)
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	cr.ReuseRecord = true

	n := 0
	for {
		_, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.Wrapf(err, "统计行数失败: %s", path)
		}
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n - 1, nil
}
