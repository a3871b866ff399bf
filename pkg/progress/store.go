package progress

import (
	"encoding/json"
	"os"
	"path/filepath"

	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
)

// Load 读取检查点，文件不存在时返回 nil, nil
func Load(path string) (*model.ProgressState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "读取进度文件失败: %s", path)
	}
	var state model.ProgressState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.Wrapf(err, "解析进度文件失败: %s", path)
	}
	if state.LastOffset < 0 {
		return nil, errors.Errorf("进度文件 %s 中 lastOffset 为负数", path)
	}
	if !state.Stats.Consistent() {
		return nil, errors.Errorf("进度文件 %s 的统计不一致: total=%d", path, state.Stats.Total)
	}
	return &state, nil
}

// Save 全量重写检查点：写临时文件、落盘后重命名
func Save(path string, state *model.ProgressState) error {
	if !state.Stats.Consistent() {
		return errors.Errorf("统计不一致，拒绝写入检查点: %+v", state.Stats)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.Wrap(err, "序列化进度失败")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "创建目录失败: %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(err, "创建临时文件失败")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, "写入临时文件失败")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, "同步临时文件失败")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "关闭临时文件失败")
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.Wrapf(err, "替换进度文件失败: %s", path)
	}
	return nil
}
