package config

import (
	"time"

	"github.com/pkg/errors"
)

const (
	PromptStyleCombined   = "combined"
	PromptStyleStructured = "structured"
	PromptStyleSystemOnly = "system_only"
)

// ProcessConfig 控制批处理、重试和并发
type ProcessConfig struct {
	BatchSize        int           `json:"batchSize" yaml:"batchSize"`
	MaxRetries       int           `json:"maxRetries" yaml:"maxRetries"`             // 重试次数，不含首次请求
	RetryInterval    time.Duration `json:"retryInterval" yaml:"retryInterval"`       // 退避基数
	RetryMaxInterval time.Duration `json:"retryMaxInterval" yaml:"retryMaxInterval"` // 退避上限
	ConcurrencyLimit int           `json:"concurrencyLimit" yaml:"concurrencyLimit"`
	MaxInputTokens   int           `json:"maxInputTokens" yaml:"maxInputTokens"`
	PromptStyle      string        `json:"promptStyle" yaml:"promptStyle"`
	ValidateOutput   bool          `json:"validateOutput" yaml:"validateOutput"`
}

func (p *ProcessConfig) Validate() []error {
	var errs = make([]error, 0)
	if p.BatchSize <= 0 {
		errs = append(errs, errors.Errorf("batchSize 必须大于 0"))
	}
	if p.MaxRetries < 0 {
		errs = append(errs, errors.Errorf("maxRetries 不能为负数"))
	}
	if p.RetryInterval <= 0 {
		errs = append(errs, errors.Errorf("retryInterval 必须大于 0"))
	}
	if p.RetryMaxInterval < p.RetryInterval {
		errs = append(errs, errors.Errorf("retryMaxInterval 不能小于 retryInterval"))
	}
	if p.ConcurrencyLimit <= 0 {
		errs = append(errs, errors.Errorf("concurrencyLimit 必须大于 0"))
	}
	if p.MaxInputTokens <= 0 {
		errs = append(errs, errors.Errorf("maxInputTokens 必须大于 0"))
	}
	switch p.PromptStyle {
	case PromptStyleCombined, PromptStyleStructured, PromptStyleSystemOnly:
	default:
		errs = append(errs, errors.Errorf("不支持的 promptStyle: %s", p.PromptStyle))
	}
	return errs
}

func NewDefaultProcessConfig() *ProcessConfig {
	return &ProcessConfig{
		BatchSize:        5,
		MaxRetries:       5,
		RetryInterval:    time.Second,
		RetryMaxInterval: 10 * time.Second,
		ConcurrencyLimit: 10,
		MaxInputTokens:   64000,
		PromptStyle:      PromptStyleCombined,
	}
}
