package config

import (
	"strings"

	"github.com/pkg/errors"
)

type OutputConfig struct {
	Dir    string `json:"dir" yaml:"dir"`       // 为空时输出到输入文件所在目录
	Backup bool   `json:"backup" yaml:"backup"` // 追加前备份已有输出
}

func (o *OutputConfig) Validate() []error {
	var errs = make([]error, 0)
	if o.Dir != "" && strings.TrimSpace(o.Dir) == "" {
		errs = append(errs, errors.New("输出目录不能只包含空白字符"))
	}
	return errs
}

func NewDefaultOutputConfig() *OutputConfig {
	return &OutputConfig{Backup: true}
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // console 或 json
}

func (l *LoggingConfig) Validate() []error {
	var errs = make([]error, 0)
	switch strings.ToLower(l.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, errors.Errorf("不支持的日志级别: %s", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, errors.Errorf("不支持的日志格式: %s", l.Format))
	}
	return errs
}

func NewDefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{Level: "info", Format: "console"}
}
