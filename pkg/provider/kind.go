package provider

import (
	"net/url"
	"strings"

	"llm-batch-call/config"

	"github.com/pkg/errors"
)

// Kind 决定请求与响应的报文格式
type Kind string

const (
	KindOpenAICompatible Kind = "openai_compatible"
	KindAgent            Kind = "agent"
	KindAnthropic        Kind = "anthropic"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindOpenAICompatible, KindAgent, KindAnthropic:
		return k, nil
	}
	return "", errors.Errorf("不支持的提供商类型: %s", s)
}

// InferKind 按固定优先级确定类型：
// 显式 kind > 配置了 appId 的百炼应用 > anthropic.com 主机 > OpenAI 兼容
func InferKind(cfg *config.ProviderConfig) (Kind, error) {
	if cfg.Kind != "" {
		return ParseKind(cfg.Kind)
	}
	if cfg.AppID != "" {
		return KindAgent, nil
	}
	if strings.Contains(hostOf(cfg.BaseURL), "anthropic.com") {
		return KindAnthropic, nil
	}
	return KindOpenAICompatible, nil
}

// EndpointPath 返回聊天补全路径，显式配置优先，否则按主机推断
func EndpointPath(baseURL, configured string) string {
	if configured != "" {
		return configured
	}
	host := hostOf(baseURL)
	switch {
	case strings.Contains(host, "dashscope.aliyuncs.com"):
		return "/chat/completions"
	case strings.Contains(host, "volces.com"):
		return "/api/v3/chat/completions"
	default:
		return "/v1/chat/completions"
	}
}

func joinURL(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func hostOf(baseURL string) string {
	lower := strings.ToLower(baseURL)
	if u, err := url.Parse(lower); err == nil && u.Host != "" {
		return u.Host
	}
	return lower
}
