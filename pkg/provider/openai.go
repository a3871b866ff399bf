package provider

import (
	"context"
	"encoding/json"
	"net/http"

	"llm-batch-call/config"

	"github.com/pkg/errors"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// openAITransport 发送 OpenAI 风格的 chat completion 请求
type openAITransport struct {
	url    string
	apiKey string
	model  string
	params map[string]interface{}
	hc     *http.Client
}

func newOpenAITransport(cfg *config.ProviderConfig, hc *http.Client) (*openAITransport, error) {
	if cfg.BaseURL == "" {
		return nil, errors.Errorf("提供商 %s 缺少 baseUrl", cfg.Name)
	}
	return &openAITransport{
		url:    joinURL(cfg.BaseURL, EndpointPath(cfg.BaseURL, cfg.EndpointPath)),
		apiKey: cfg.ResolveAPIKey(),
		model:  cfg.Model,
		params: cfg.ModelParams,
		hc:     hc,
	}, nil
}

func (t *openAITransport) send(ctx context.Context, system, user string) (exchange, error) {
	payload := mergeParams(t.params, 2)
	payload["model"] = t.model
	payload["messages"] = []chatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
	return postJSON(ctx, t.hc, t.url, t.apiKey, payload)
}

func (t *openAITransport) content(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "响应体不是合法 JSON")
	}
	if len(resp.Choices) == 0 {
		return "", errors.Wrap(ErrEmptyResponse, "缺少 choices 字段")
	}
	return resp.Choices[0].Message.Content, nil
}
