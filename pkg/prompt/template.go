package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"llm-batch-call/pkg/model"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

var (
	ErrMissingFields    = errors.New("MissingFields")
	ErrInvalidFieldType = errors.New("InvalidFieldType")
	ErrInvalidEnumValue = errors.New("InvalidEnumValue")
)

type fieldRule struct {
	kind    string   // string / number / 空表示只要求存在
	allowed []string // 非空时为枚举
}

// Template 是从输出格式解析出的字段约束
type Template struct {
	keys  []string
	rules map[string]fieldRule
}

// ParseTemplate 输出格式不是 JSON 对象时返回 false
func ParseTemplate(outputSchema string) (*Template, bool) {
	text := strings.TrimSpace(outputSchema)
	if !strings.HasPrefix(text, "{") || !strings.HasSuffix(text, "}") {
		return nil, false
	}
	fields := model.NewFields()
	if err := json.Unmarshal([]byte(text), fields); err != nil {
		return nil, false
	}
	t := &Template{rules: make(map[string]fieldRule, fields.Len())}
	for _, k := range fields.Keys() {
		v, _ := fields.Get(k)
		var rule fieldRule
		switch val := v.(type) {
		case string:
			switch strings.ToLower(val) {
			case "string", "number":
				rule.kind = strings.ToLower(val)
			}
		case []interface{}:
			for _, item := range val {
				rule.allowed = append(rule.allowed, model.Stringify(item))
			}
		}
		t.keys = append(t.keys, k)
		t.rules[k] = rule
	}
	return t, true
}

func (t *Template) Keys() []string {
	return append([]string(nil), t.keys...)
}

// Validate 检查必需字段、类型与枚举，允许额外字段
func (t *Template) Validate(fields *model.Fields) error {
	var missing []string
	for _, k := range t.keys {
		if _, ok := fields.Get(k); !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return errors.Wrapf(ErrMissingFields, "输出缺少必需的字段: %s", strings.Join(missing, ", "))
	}

	for _, k := range t.keys {
		rule := t.rules[k]
		v, _ := fields.Get(k)
		switch rule.kind {
		case "string":
			if _, ok := v.(string); !ok {
				return errors.Wrapf(ErrInvalidFieldType, "字段 %q 必须是字符串类型", k)
			}
		case "number":
			if !isNumber(v) {
				return errors.Wrapf(ErrInvalidFieldType, "字段 %q 必须是数字类型", k)
			}
		}
		if len(rule.allowed) > 0 {
			got := model.Stringify(v)
			if !contains(rule.allowed, got) {
				return errors.Wrapf(ErrInvalidEnumValue, "字段 %q 的值 %q 不在 [%s] 中", k, got, strings.Join(rule.allowed, ", "))
			}
		}
	}
	return nil
}

func isNumber(v interface{}) bool {
	switch val := v.(type) {
	case json.Number:
		return true
	case string:
		return false
	case nil, bool:
		return false
	default:
		_, err := cast.ToFloat64E(val)
		return err == nil
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Describe 用于日志
func (t *Template) Describe() string {
	parts := make([]string, 0, len(t.keys))
	for _, k := range t.keys {
		r := t.rules[k]
		switch {
		case len(r.allowed) > 0:
			parts = append(parts, fmt.Sprintf("%s∈{%s}", k, strings.Join(r.allowed, "|")))
		case r.kind != "":
			parts = append(parts, fmt.Sprintf("%s:%s", k, r.kind))
		default:
			parts = append(parts, k)
		}
	}
	return strings.Join(parts, ", ")
}
