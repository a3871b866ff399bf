package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

const maxResponseBytes = 32 << 20

// postJSON 发送 JSON 请求并读取完整响应体，非 2xx 状态码不视为错误
func postJSON(ctx context.Context, hc *http.Client, url, apiKey string, payload interface{}) (exchange, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return exchange{}, errors.Wrap(err, "序列化请求失败")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return exchange{}, errors.Wrap(err, "构造请求失败")
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return exchange{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return exchange{}, errors.Wrap(err, "读取响应失败")
	}
	return exchange{status: resp.StatusCode, body: data}, nil
}

func mergeParams(params map[string]interface{}, extra int) map[string]interface{} {
	out := make(map[string]interface{}, len(params)+extra)
	for k, v := range params {
		out[k] = v
	}
	return out
}
