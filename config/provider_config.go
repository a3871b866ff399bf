package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// ProviderConfig 描述一个远程文本生成服务
type ProviderConfig struct {
	Name            string                 `json:"-" yaml:"-"`
	Kind            string                 `json:"kind" yaml:"kind"` // openai_compatible / agent / anthropic，为空时自动推断
	BaseURL         string                 `json:"baseUrl" yaml:"baseUrl"`
	APIKey          string                 `json:"apiKey" yaml:"apiKey"`
	APIKeyEnv       string                 `json:"apiKeyEnv" yaml:"apiKeyEnv"`
	Model           string                 `json:"model" yaml:"model"`
	EndpointPath    string                 `json:"endpointPath" yaml:"endpointPath"`
	AppID           string                 `json:"appId" yaml:"appId"`
	Timeout         time.Duration          `json:"timeout" yaml:"timeout"`
	ConcurrentLimit int                    `json:"concurrentLimit" yaml:"concurrentLimit"` // 覆盖 process.concurrencyLimit
	MaxTokens       int64                  `json:"maxTokens" yaml:"maxTokens"`
	ModelParams     map[string]interface{} `json:"modelParams" yaml:"modelParams"`
}

func (p *ProviderConfig) Validate() []error {
	var errs = make([]error, 0)
	if p.BaseURL == "" && p.Kind != "anthropic" {
		errs = append(errs, errors.Errorf("提供商 %s 缺少 baseUrl", p.Name))
	}
	if p.Model == "" && p.AppID == "" {
		errs = append(errs, errors.Errorf("提供商 %s 缺少 model", p.Name))
	}
	if p.Timeout < 0 {
		errs = append(errs, errors.Errorf("提供商 %s 的 timeout 不能为负数", p.Name))
	}
	if p.ConcurrentLimit < 0 {
		errs = append(errs, errors.Errorf("提供商 %s 的 concurrentLimit 不能为负数", p.Name))
	}
	return errs
}

// ResolveAPIKey 优先使用 apiKey，其次读取 apiKeyEnv 指定的环境变量
func (p *ProviderConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// RequestTimeout 返回单次请求超时，未配置时为 60 秒
func (p *ProviderConfig) RequestTimeout() time.Duration {
	if p.Timeout <= 0 {
		return 60 * time.Second
	}
	return p.Timeout
}
