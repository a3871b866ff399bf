package provider

import (
	"testing"
	"time"

	"llm-batch-call/config"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointPath(t *testing.T) {
	cases := []struct {
		base, configured, want string
	}{
		{"https://dashscope.aliyuncs.com/compatible-mode/v1", "", "/chat/completions"},
		{"https://ark.cn-beijing.volces.com", "", "/api/v3/chat/completions"},
		{"https://api.deepseek.com", "", "/v1/chat/completions"},
		{"HTTPS://DASHSCOPE.ALIYUNCS.COM", "", "/chat/completions"},
		{"https://api.deepseek.com", "/beta/chat/completions", "/beta/chat/completions"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, EndpointPath(c.base, c.configured), c.base)
	}
	assert.Equal(t, "https://a.com/v1/chat/completions", joinURL("https://a.com/", "/v1/chat/completions"))
}

func TestInferKind(t *testing.T) {
	cases := []struct {
		cfg  config.ProviderConfig
		want Kind
	}{
		{config.ProviderConfig{BaseURL: "https://api.deepseek.com"}, KindOpenAICompatible},
		{config.ProviderConfig{BaseURL: "https://dashscope.aliyuncs.com", AppID: "x"}, KindAgent},
		{config.ProviderConfig{BaseURL: "https://api.anthropic.com"}, KindAnthropic},
		{config.ProviderConfig{BaseURL: "https://api.anthropic.com", AppID: "x"}, KindAgent},
		{config.ProviderConfig{Kind: "OpenAI_Compatible", AppID: "x"}, KindOpenAICompatible},
	}
	for _, c := range cases {
		got, err := InferKind(&c.cfg)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := InferKind(&config.ProviderConfig{Kind: "grpc"})
	assert.Error(t, err)
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 10 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for k, d := range want {
		assert.Equal(t, d, b.Delay(k), "attempt %d", k)
	}

	assert.Equal(t, 10*time.Second, Backoff{Base: time.Second}.Delay(20))
	assert.Equal(t, 3*time.Second, Backoff{Base: 5 * time.Second, Max: 3 * time.Second}.Delay(0))
}

func TestExtractPayload(t *testing.T) {
	cases := []struct {
		name    string
		content string
		keys    []string
		err     error
	}{
		{"fenced", "说明\n```json\n{\"a\": 1, \"b\": 2}\n```\n结束", []string{"a", "b"}, nil},
		{"fence without tag", "```\n{\"x\": true}\n```", []string{"x"}, nil},
		{"broken fence falls through", "```\nnot json\n``` 正文 {\"c\": 3}", []string{"c"}, nil},
		{"whole", ` {"z": 1, "y": {"k": "v"}} `, []string{"z", "y"}, nil},
		{"brace span", `前缀 {"a": "{}"} 后缀`, []string{"a"}, nil},
		{"empty object", "{}", nil, ErrEmptyPayload},
		{"null", "null", nil, ErrEmptyPayload},
		{"prose", "没有 JSON", nil, ErrNoPayload},
		{"unbalanced", "{\"a\": 1", nil, ErrNoPayload},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fields, err := ExtractPayload(c.content)
			if c.err != nil {
				assert.True(t, errors.Is(err, c.err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.keys, fields.Keys())
		})
	}
}

func TestCheckTokenLimit(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"))
	assert.Equal(t, 2, EstimateTokens("中文测试"))

	assert.NoError(t, CheckTokenLimit("abc", "abc", 2))
	err := CheckTokenLimit("abc", "abcd", 2)
	assert.True(t, errors.Is(err, ErrTokenLimitExceeded))
	assert.NoError(t, CheckTokenLimit("abc", "abcd", 0))
}
