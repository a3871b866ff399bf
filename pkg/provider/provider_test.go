package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"llm-batch-call/config"
	"llm-batch-call/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func testProcess() *config.ProcessConfig {
	p := config.NewDefaultProcessConfig()
	p.RetryInterval = 500 * time.Millisecond
	p.RetryMaxInterval = 10 * time.Second
	return p
}

func newTestClient(t *testing.T, baseURL string, process *config.ProcessConfig, opts ...Option) *Client {
	t.Helper()
	cfg := &config.ProviderConfig{
		Name:        "test",
		BaseURL:     baseURL,
		APIKey:      "sk-test",
		Model:       "test-model",
		ModelParams: map[string]interface{}{"temperature": 0.2},
	}
	c, err := New(cfg, process, zaptest.NewLogger(t).Sugar(), opts...)
	require.NoError(t, err)
	return c
}

func chatBody(content string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"choices": []interface{}{
			map[string]interface{}{"message": map[string]string{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

func TestDispatchSuccess(t *testing.T) {
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		bodies <- body
		fmt.Fprint(w, chatBody("```json\n{\"label\": \"正常\", \"score\": 0.9}\n```"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testProcess())
	res := c.Dispatch(context.Background(), "系统提示", "待处理内容")
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(<-bodies, &got))

	require.Equal(t, model.ResultSuccess, res.Kind, res.Reason())
	assert.Equal(t, []string{"label", "score"}, res.Fields.Keys())
	assert.Equal(t, "test-model", got["model"])
	assert.Equal(t, 0.2, got["temperature"])
	messages := got["messages"].([]interface{})
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]interface{})["role"])
	assert.Equal(t, "待处理内容", messages[1].(map[string]interface{})["content"])
}

func TestDispatchRetriesWithBackoff(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, chatBody(`{"ok": true}`))
	}))
	defer srv.Close()

	rec := &delayRecorder{}
	c := newTestClient(t, srv.URL, testProcess(), WithSleep(rec.sleep))
	res := c.Dispatch(context.Background(), "s", "u")

	assert.Equal(t, model.ResultSuccess, res.Kind)
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}, rec.delays)
}

func TestDispatchRetriesExhausted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	process := testProcess()
	process.MaxRetries = 2
	rec := &delayRecorder{}
	c := newTestClient(t, srv.URL, process, WithSleep(rec.sleep))
	res := c.Dispatch(context.Background(), "s", "u")

	assert.Equal(t, model.ResultAPIError, res.Kind)
	assert.Equal(t, "429", res.Status)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
	assert.Len(t, rec.delays, 2)
	assert.True(t, strings.HasPrefix(res.Reason(), "ApiError[429]"))
}

func TestDispatchNonRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"bad request"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, testProcess(), WithSleep((&delayRecorder{}).sleep))
	res := c.Dispatch(context.Background(), "s", "u")

	assert.Equal(t, model.ResultAPIError, res.Kind)
	assert.Equal(t, "400", res.Status)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Contains(t, res.Message, "bad request")
}

func TestDispatchClassification(t *testing.T) {
	cases := []struct {
		name string
		body string
		want model.ResultKind
	}{
		{"whole object", chatBody(`{"a": 1}`), model.ResultSuccess},
		{"embedded object", chatBody(`结果如下：{"a": 1} 以上`), model.ResultSuccess},
		{"empty content", chatBody(""), model.ResultEmpty},
		{"empty object", chatBody("{}"), model.ResultEmpty},
		{"null payload", chatBody("null"), model.ResultEmpty},
		{"no choices", `{"choices": []}`, model.ResultEmpty},
		{"prose", chatBody("无法判断"), model.ResultParseError},
		{"array", chatBody("[1, 2]"), model.ResultParseError},
		{"body not json", `<html>oops</html>`, model.ResultParseError},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, c.body)
			}))
			defer srv.Close()

			res := newTestClient(t, srv.URL, testProcess()).Dispatch(context.Background(), "s", "u")
			assert.Equal(t, c.want, res.Kind, res.Reason())
			assert.Equal(t, c.body, res.Raw)
		})
	}
}

func TestDispatchTokenLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	process := testProcess()
	process.MaxInputTokens = 10
	c := newTestClient(t, srv.URL, process)
	res := c.Dispatch(context.Background(), "系统", strings.Repeat("字", 60))

	assert.Equal(t, model.ResultAPIError, res.Kind)
	assert.Equal(t, StatusTokenLimitExceeded, res.Status)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestDispatchTransportErrorRetried(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	process := testProcess()
	process.MaxRetries = 1
	rec := &delayRecorder{}
	res := newTestClient(t, url, process, WithSleep(rec.sleep)).Dispatch(context.Background(), "s", "u")

	assert.Equal(t, model.ResultAPIError, res.Kind)
	assert.Equal(t, StatusTransport, res.Status)
	assert.Len(t, rec.delays, 1)
}

func TestGateBoundsInFlightRequests(t *testing.T) {
	var inFlight, peak int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		fmt.Fprint(w, chatBody(`{"a": 1}`))
	}))
	defer srv.Close()

	process := testProcess()
	process.ConcurrencyLimit = 3
	c := newTestClient(t, srv.URL, process)
	assert.Equal(t, 3, c.Gate().Size())

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, model.ResultSuccess, c.Dispatch(context.Background(), "s", "u").Kind)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

func TestGateAcquireCancelled(t *testing.T) {
	g := NewGate(1)
	require.NoError(t, g.Acquire(context.Background()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, g.Acquire(ctx))
	g.Release()
	assert.Equal(t, 1, NewGate(0).Size())
}
