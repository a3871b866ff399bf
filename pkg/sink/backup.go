package sink

import (
	"io"
	"os"
	"path/filepath"

	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
)

// backupExisting 将已存在的输出文件复制到备份目录，返回备份后的路径
func backupExisting(files model.OutputFileSet) ([]string, error) {
	var copied []string
	for _, src := range files.Appendable() {
		info, err := os.Stat(src)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return copied, errors.Wrapf(err, "读取文件信息失败: %s", src)
		}
		if info.IsDir() {
			continue
		}
		if err := os.MkdirAll(files.BackupDir, 0755); err != nil {
			return copied, errors.Wrapf(err, "创建备份目录失败: %s", files.BackupDir)
		}
		dst := filepath.Join(files.BackupDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return copied, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "打开文件失败: %s", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "创建备份文件失败: %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return errors.Wrapf(err, "复制文件失败: %s", src)
	}
	return out.Close()
}
