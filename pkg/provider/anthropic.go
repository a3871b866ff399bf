package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"llm-batch-call/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

const defaultAnthropicMaxTokens = 4096

// anthropicTransport 通过 Messages API 调用，SDK 自带的重试被关闭，由 Client 统一重试
type anthropicTransport struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	params    map[string]interface{}
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func newAnthropicTransport(cfg *config.ProviderConfig, hc *http.Client) (*anthropicTransport, error) {
	if cfg.Model == "" {
		return nil, errors.Errorf("提供商 %s 缺少 model", cfg.Name)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.ResolveAPIKey()),
		option.WithHTTPClient(hc),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &anthropicTransport{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
		params:    cfg.ModelParams,
	}, nil
}

func (t *anthropicTransport) send(ctx context.Context, system, user string) (exchange, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(t.model),
		MaxTokens: t.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if v, ok := t.params["temperature"]; ok {
		params.Temperature = anthropic.Float(cast.ToFloat64(v))
	}
	if v, ok := t.params["top_p"]; ok {
		params.TopP = anthropic.Float(cast.ToFloat64(v))
	}

	message, err := t.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return exchange{status: apiErr.StatusCode, body: []byte(apiErr.RawJSON())}, nil
		}
		return exchange{}, err
	}
	return exchange{status: http.StatusOK, body: []byte(message.RawJSON())}, nil
}

func (t *anthropicTransport) content(body []byte) (string, error) {
	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "响应体不是合法 JSON")
	}
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.Wrap(ErrEmptyResponse, "响应中没有文本块")
	}
	return b.String(), nil
}
