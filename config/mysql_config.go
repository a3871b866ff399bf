package config

import (
	"time"

	"github.com/pkg/errors"
)

// MySQLConfig 配置可选的 MySQL / TiDB 结果镜像，Replicas 只用于统计查询
type MySQLConfig struct {
	DSN             string        `json:"dsn" yaml:"dsn"`
	Replicas        []string      `json:"replicas" yaml:"replicas"`
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	AutoMigrate     bool          `json:"autoMigrate" yaml:"autoMigrate"`
}

func (m *MySQLConfig) Validate() []error {
	var errs = make([]error, 0)
	if m.DSN == "" {
		errs = append(errs, errors.Errorf("MySQL dsn 不能为空"))
	}
	if m.MaxOpenConns < 0 || m.MaxIdleConns < 0 {
		errs = append(errs, errors.Errorf("MySQL 连接池大小不能为负数"))
	}
	return errs
}
