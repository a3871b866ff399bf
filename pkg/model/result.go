package model

import (
	"fmt"
	"unicode/utf8"
)

type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultEmpty
	ResultAPIError
	ResultParseError
	ResultUnexpected
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultEmpty:
		return "empty_result"
	case ResultAPIError:
		return "api_error"
	case ResultParseError:
		return "json_error"
	default:
		return "other"
	}
}

// SnippetLimit 是 ParseError 中保留的原始内容长度（字符）
const SnippetLimit = 200

// Result 是一条记录的分类结果，每条已派发的记录恰好对应一个
type Result struct {
	Kind    ResultKind
	Fields  *Fields // 仅 ResultSuccess
	Status  string  // ResultAPIError: HTTP 状态码或原因，如 "429"、"TokenLimitExceeded"
	Message string
	Snippet string // ResultParseError: 截断后的原始内容
	Raw     string // 未经处理的响应体
}

func Success(fields *Fields, raw string) Result {
	return Result{Kind: ResultSuccess, Fields: fields, Raw: raw}
}

func Empty(message, raw string) Result {
	return Result{Kind: ResultEmpty, Message: message, Raw: raw}
}

func APIError(status, message, raw string) Result {
	return Result{Kind: ResultAPIError, Status: status, Message: message, Raw: raw}
}

func ParseError(message, content, raw string) Result {
	return Result{Kind: ResultParseError, Message: message, Snippet: Truncate(content, SnippetLimit), Raw: raw}
}

func Unexpected(message string) Result {
	return Result{Kind: ResultUnexpected, Message: message}
}

// Reason 返回写入失败表的原因描述
func (r Result) Reason() string {
	switch r.Kind {
	case ResultSuccess:
		return ""
	case ResultEmpty:
		if r.Message == "" {
			return "EmptyResponse"
		}
		return "EmptyResponse: " + r.Message
	case ResultAPIError:
		return fmt.Sprintf("ApiError[%s]: %s", r.Status, r.Message)
	case ResultParseError:
		if r.Snippet == "" {
			return "ParseError: " + r.Message
		}
		return fmt.Sprintf("ParseError: %s | %s", r.Message, r.Snippet)
	default:
		return "UnexpectedError: " + r.Message
	}
}

// Truncate 按字符截断，超出部分以 ... 结尾
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
