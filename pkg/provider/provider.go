package provider

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"llm-batch-call/config"
	"llm-batch-call/pkg/logger"
	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	StatusTokenLimitExceeded = "TokenLimitExceeded"
	StatusTransport          = "TransportError"
	StatusCancelled          = "Cancelled"
)

var ErrEmptyResponse = errors.New("响应中没有可用的结果")

// Provider 对一条记录发起一次远程调用并返回分类结果，不会返回 error
type Provider interface {
	Name() string
	Kind() Kind
	Dispatch(ctx context.Context, system, user string) model.Result
}

// exchange 是一次 HTTP 往返的状态码与响应体
type exchange struct {
	status int
	body   []byte
}

// transport 封装不同服务的报文格式
type transport interface {
	send(ctx context.Context, system, user string) (exchange, error)
	// content 从 200 响应体中取出模型输出的文本
	content(body []byte) (string, error)
}

type options struct {
	httpClient *http.Client
	gate       *Gate
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*options)

func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithGate 使多个 Client 共享同一个并发闸门
func WithGate(g *Gate) Option {
	return func(o *options) { o.gate = g }
}

// WithSleep 替换退避等待函数，测试中用于记录延迟
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *options) { o.sleep = fn }
}

// Client 在并发闸门内执行请求，负责重试、退避与结果分类
type Client struct {
	name           string
	kind           Kind
	transport      transport
	gate           *Gate
	backoff        Backoff
	maxRetries     int
	maxInputTokens int
	sleep          func(ctx context.Context, d time.Duration) error
	log            *zap.SugaredLogger
}

func New(cfg *config.ProviderConfig, process *config.ProcessConfig, log *zap.SugaredLogger, opts ...Option) (*Client, error) {
	o := options{sleep: sleepCtx}
	for _, opt := range opts {
		opt(&o)
	}
	kind, err := InferKind(cfg)
	if err != nil {
		return nil, err
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: cfg.RequestTimeout()}
	}
	if o.gate == nil {
		limit := process.ConcurrencyLimit
		if cfg.ConcurrentLimit > 0 {
			limit = cfg.ConcurrentLimit
		}
		o.gate = NewGate(limit)
	}

	var t transport
	switch kind {
	case KindAgent:
		t, err = newAgentTransport(cfg, o.httpClient)
	case KindAnthropic:
		t, err = newAnthropicTransport(cfg, o.httpClient)
	default:
		t, err = newOpenAITransport(cfg, o.httpClient)
	}
	if err != nil {
		return nil, err
	}

	return &Client{
		name:           cfg.Name,
		kind:           kind,
		transport:      t,
		gate:           o.gate,
		backoff:        Backoff{Base: process.RetryInterval, Max: process.RetryMaxInterval},
		maxRetries:     process.MaxRetries,
		maxInputTokens: process.MaxInputTokens,
		sleep:          o.sleep,
		log:            log,
	}, nil
}

func (c *Client) Name() string { return c.name }

func (c *Client) Kind() Kind { return c.kind }

func (c *Client) Gate() *Gate { return c.gate }

// Dispatch 最多发起 1+maxRetries 次请求；429/502/503/504 与传输错误可重试
func (c *Client) Dispatch(ctx context.Context, system, user string) model.Result {
	if err := CheckTokenLimit(system, user, c.maxInputTokens); err != nil {
		return model.APIError(StatusTokenLimitExceeded, err.Error(), "")
	}

	if err := c.gate.Acquire(ctx); err != nil {
		return model.APIError(StatusCancelled, err.Error(), "")
	}
	defer c.gate.Release()

	log := logger.FromContext(ctx, c.log)
	for attempt := 0; ; attempt++ {
		ex, err := c.transport.send(ctx, system, user)

		var status, reason string
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return model.APIError(StatusCancelled, ctx.Err().Error(), "")
			}
			status, reason = StatusTransport, err.Error()
		case ex.status == http.StatusOK:
			return c.classify(ex.body)
		case retryableStatus(ex.status):
			status, reason = strconv.Itoa(ex.status), fmt.Sprintf("HTTP %d", ex.status)
		default:
			return model.APIError(strconv.Itoa(ex.status),
				fmt.Sprintf("HTTP %d: %s", ex.status, model.Truncate(strings.TrimSpace(string(ex.body)), model.SnippetLimit)),
				string(ex.body))
		}

		if attempt >= c.maxRetries {
			log.Errorf("达到最大重试次数 %d，请求失败: %s", c.maxRetries, reason)
			return model.APIError(status, fmt.Sprintf("达到最大重试次数 %d: %s", c.maxRetries, reason), string(ex.body))
		}
		delay := c.backoff.Delay(attempt)
		log.Warnf("请求失败 (%s)，%s 后进行第 %d 次重试", reason, delay, attempt+1)
		if err := c.sleep(ctx, delay); err != nil {
			return model.APIError(StatusCancelled, err.Error(), "")
		}
	}
}

// classify 处理 200 响应
func (c *Client) classify(body []byte) model.Result {
	raw := string(body)
	text, err := c.transport.content(body)
	if errors.Is(err, ErrEmptyResponse) {
		return model.Empty(err.Error(), raw)
	}
	if err != nil {
		return model.ParseError(err.Error(), raw, raw)
	}
	if strings.TrimSpace(text) == "" {
		return model.Empty("模型返回内容为空", raw)
	}

	fields, err := ExtractPayload(text)
	switch {
	case errors.Is(err, ErrEmptyPayload):
		return model.Empty(err.Error(), raw)
	case err != nil:
		return model.ParseError(err.Error(), text, raw)
	}
	return model.Success(fields, raw)
}

func retryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
