package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"llm-batch-call/config"
	"llm-batch-call/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestAgentTransport(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/apps/app-123/completion", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		fmt.Fprint(w, `{"output": {"text": "{\"label\": \"违规\"}"}, "request_id": "r1"}`)
	}))
	defer srv.Close()

	cfg := &config.ProviderConfig{Name: "bailian", BaseURL: srv.URL, AppID: "app-123", APIKey: "k"}
	c, err := New(cfg, testProcess(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.Equal(t, KindAgent, c.Kind())

	res := c.Dispatch(context.Background(), "系统提示", "内容")
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	require.Equal(t, model.ResultSuccess, res.Kind, res.Reason())
	v, _ := res.Fields.Get("label")
	assert.Equal(t, "违规", v)
	assert.Equal(t, "内容", got["input"].(map[string]interface{})["prompt"])
	assert.Equal(t, "系统提示", got["parameters"].(map[string]interface{})["system_prompt"])
}

func TestAgentTransportMissingOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"request_id": "r1"}`)
	}))
	defer srv.Close()

	cfg := &config.ProviderConfig{Name: "bailian", BaseURL: srv.URL, AppID: "app-123"}
	c, err := New(cfg, testProcess(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	assert.Equal(t, model.ResultEmpty, c.Dispatch(context.Background(), "s", "u").Kind)
}

func TestAnthropicTransport(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",`+
			`"content":[{"type":"text","text":"{\"label\": \"正常\"}"}],`+
			`"stop_reason":"end_turn","stop_sequence":null,"usage":{"input_tokens":3,"output_tokens":5}}`)
	}))
	defer srv.Close()

	cfg := &config.ProviderConfig{
		Name:        "claude",
		Kind:        "anthropic",
		BaseURL:     srv.URL,
		APIKey:      "k",
		Model:       "claude-test",
		ModelParams: map[string]interface{}{"temperature": 0.1},
	}
	c, err := New(cfg, testProcess(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	res := c.Dispatch(context.Background(), "系统提示", "内容")
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(<-bodies, &got))
	require.Equal(t, model.ResultSuccess, res.Kind, res.Reason())
	assert.Equal(t, "claude-test", got["model"])
	assert.EqualValues(t, defaultAnthropicMaxTokens, got["max_tokens"])
	assert.Equal(t, 0.1, got["temperature"])
}

func TestAnthropicTransportRateLimited(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	process := testProcess()
	process.MaxRetries = 1
	cfg := &config.ProviderConfig{Name: "claude", Kind: "anthropic", BaseURL: srv.URL, APIKey: "k", Model: "claude-test"}
	c, err := New(cfg, process, zaptest.NewLogger(t).Sugar(), WithSleep((&delayRecorder{}).sleep))
	require.NoError(t, err)

	res := c.Dispatch(context.Background(), "s", "u")
	assert.Equal(t, model.ResultAPIError, res.Kind)
	assert.Equal(t, "429", res.Status)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}
