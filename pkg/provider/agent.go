package provider

import (
	"context"
	"encoding/json"
	"net/http"

	"llm-batch-call/config"

	"github.com/pkg/errors"
)

// agentTransport 调用百炼应用接口 /api/v1/apps/{appId}/completion
type agentTransport struct {
	url    string
	apiKey string
	params map[string]interface{}
	hc     *http.Client
}

type agentResponse struct {
	Output *struct {
		Text string `json:"text"`
	} `json:"output"`
}

func newAgentTransport(cfg *config.ProviderConfig, hc *http.Client) (*agentTransport, error) {
	if cfg.BaseURL == "" || cfg.AppID == "" {
		return nil, errors.Errorf("提供商 %s 需要 baseUrl 与 appId", cfg.Name)
	}
	return &agentTransport{
		url:    joinURL(cfg.BaseURL, "/api/v1/apps/"+cfg.AppID+"/completion"),
		apiKey: cfg.ResolveAPIKey(),
		params: cfg.ModelParams,
		hc:     hc,
	}, nil
}

func (t *agentTransport) send(ctx context.Context, system, user string) (exchange, error) {
	parameters := mergeParams(t.params, 1)
	parameters["system_prompt"] = system
	payload := map[string]interface{}{
		"input":      map[string]string{"prompt": user},
		"parameters": parameters,
	}
	return postJSON(ctx, t.hc, t.url, t.apiKey, payload)
}

func (t *agentTransport) content(body []byte) (string, error) {
	var resp agentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", errors.Wrap(err, "响应体不是合法 JSON")
	}
	if resp.Output == nil {
		return "", errors.Wrap(ErrEmptyResponse, "缺少 output 字段")
	}
	return resp.Output.Text, nil
}
