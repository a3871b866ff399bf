package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DuckDBConfig 配置可选的 DuckDB 结果镜像
type DuckDBConfig struct {
	DBPath string `json:"dbPath" yaml:"dbPath"` // DuckDB 数据库文件路径，为空表示内存库
	Table  string `json:"table" yaml:"table"`   // 镜像表名
}

func (d *DuckDBConfig) Validate() []error {
	var errs = make([]error, 0)
	if d.Table == "" {
		errs = append(errs, errors.Errorf("DuckDB 镜像表名不能为空"))
	}
	if d.DBPath == "" {
		return errs
	}

	// 确保目录存在
	dir := filepath.Dir(d.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		errs = append(errs, errors.Errorf("创建 DuckDB 目录失败: %v", err))
	}

	return errs
}

func NewDefaultDuckDBConfig() *DuckDBConfig {
	return &DuckDBConfig{
		DBPath: "./data/results.duckdb",
		Table:  "processed_record",
	}
}

func (d *DuckDBConfig) DSN() string {
	return d.DBPath
}
