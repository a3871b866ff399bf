package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// Fields 是保持键顺序的 JSON 对象，用于承载模型返回的结构化结果
type Fields struct {
	keys   []string
	values map[string]interface{}
}

func NewFields() *Fields {
	return &Fields{values: make(map[string]interface{})}
}

// Set 写入字段，已存在的键保持原来的位置
func (f *Fields) Set(key string, value interface{}) {
	if f.values == nil {
		f.values = make(map[string]interface{})
	}
	if _, exists := f.values[key]; !exists {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

func (f *Fields) Get(key string) (interface{}, bool) {
	if f == nil || f.values == nil {
		return nil, false
	}
	v, ok := f.values[key]
	return v, ok
}

// Keys 返回按出现顺序排列的键
func (f *Fields) Keys() []string {
	if f == nil {
		return nil
	}
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

func (f *Fields) Len() int {
	if f == nil {
		return 0
	}
	return len(f.keys)
}

// Value 实现 driver.Valuer 接口，用于将 Fields 存储到数据库
func (f Fields) Value() (driver.Value, error) {
	if len(f.keys) == 0 {
		return nil, nil
	}
	b, err := f.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner 接口，用于从数据库读取 Fields
func (f *Fields) Scan(value interface{}) error {
	f.keys = nil
	f.values = nil
	var b []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.Errorf("不支持的字段类型: %T", value)
	}
	return f.UnmarshalJSON(b)
}

// UnmarshalJSON 按原始键顺序解析 JSON 对象，嵌套对象同样保序，数字保留为 json.Number
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("不是 JSON 对象")
	}
	f.keys = nil
	f.values = make(map[string]interface{})
	if err := f.decodeMembers(dec); err != nil {
		return err
	}
	// 对象之后不允许再有其它内容
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("JSON 对象后存在多余内容")
	}
	return nil
}

// decodeMembers 读取 '{' 之后的成员直到对应的 '}'
func (f *Fields) decodeMembers(dec *json.Decoder) error {
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return errors.Errorf("非法的键: %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return err
		}
		f.Set(key, v)
	}
	_, err := dec.Token()
	return err
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		nested := NewFields()
		if err := nested.decodeMembers(dec); err != nil {
			return nil, err
		}
		return nested, nil
	case '[':
		items := make([]interface{}, 0)
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return items, nil
	}
	return nil, errors.Errorf("非法的分隔符: %v", delim)
}

// MarshalJSON 按键顺序输出，不转义 HTML 字符
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range f.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := encodeJSON(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := encodeJSON(f.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Stringify 将单元格或字段值转换为文本，嵌套结构输出为 JSON
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case map[string]interface{}, []interface{}, *Fields, Fields:
		b, err := encodeJSON(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		b, jerr := encodeJSON(v)
		if jerr != nil {
			return ""
		}
		return string(b)
	}
	return s
}
