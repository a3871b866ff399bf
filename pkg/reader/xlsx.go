package reader

import (
	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// withFirstSheetRows 遍历第一个工作表的行，fn 返回 false 时停止
func withFirstSheetRows(path string, fn func(row int, values []string) (bool, error)) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return errors.Wrapf(err, "打开工作簿失败: %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		return errors.Wrapf(err, "读取工作表失败: %s", sheets[0])
	}
	defer rows.Close()

	row := 0
	for rows.Next() {
		values, err := rows.Columns()
		if err != nil {
			return errors.Wrapf(err, "读取第 %d 行失败", row+1)
		}
		more, err := fn(row, values)
		if err != nil {
			return err
		}
		if !more {
			break
		}
		row++
	}
	return rows.Error()
}

// readXLSX 中空白行与 jsonl 空行一样被消耗但不产生记录，行号保持不变
func (r *Reader) readXLSX(path string, offset, count int, sel Selector) (model.Batch, error) {
	batch := model.Batch{Records: make([]model.InputRecord, 0, count)}
	err := withFirstSheetRows(path, func(row int, values []string) (bool, error) {
		// 第 0 行为表头
		dataRow := row - 1
		if dataRow < offset {
			return true, nil
		}
		batch.Consumed++
		if fold(values) != "" {
			batch.Records = append(batch.Records, r.record(path, dataRow, values, sel))
		}
		return batch.Consumed < count, nil
	})
	if err != nil {
		return model.Batch{}, err
	}
	return batch, nil
}

func (r *Reader) countXLSX(path string) (int, error) {
	n := 0
	err := withFirstSheetRows(path, func(int, []string) (bool, error) {
		n++
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	return n - 1, nil
}
