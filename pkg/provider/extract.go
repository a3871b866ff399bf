package provider

import (
	"regexp"
	"strings"

	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
)

var (
	ErrNoPayload    = errors.New("无法从响应内容中解析出 JSON 对象")
	ErrEmptyPayload = errors.New("响应 JSON 为空")
)

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractPayload 依次尝试：代码块内容、完整内容、首个 '{' 到最后一个 '}'，
// 第一个能解析为 JSON 对象的候选胜出。顺序不可调整。
func ExtractPayload(content string) (*model.Fields, error) {
	for _, candidate := range payloadCandidates(content) {
		fields, ok := parseObject(candidate)
		if !ok {
			continue
		}
		if fields.Len() == 0 {
			return nil, ErrEmptyPayload
		}
		return fields, nil
	}
	return nil, ErrNoPayload
}

func payloadCandidates(content string) []string {
	candidates := make([]string, 0, 3)
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, content)
	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		candidates = append(candidates, content[start:end+1])
	}
	return candidates
}

// parseObject 只接受 JSON 对象，null 视为空对象
func parseObject(s string) (*model.Fields, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	fields := model.NewFields()
	if s == "null" {
		return fields, true
	}
	if err := fields.UnmarshalJSON([]byte(s)); err != nil {
		return nil, false
	}
	return fields, true
}
