package reader

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Span 是闭区间 [Lo, Hi] 的 0 基列下标
type Span struct {
	Lo, Hi int
}

// Selector 是按起点排序且互不相邻的列区间，nil 表示使用全部列。
// 区间在投影时才按行宽展开，超大的范围不会预先占用内存。
type Selector []Span

// ParseSelector 解析 1 基的列表达式，如 "1,2,3"、"1-5"、"1-3,7"
func ParseSelector(expr string) (Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	var spans []Span
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err1 := strconv.Atoi(strings.TrimSpace(lo))
			end, err2 := strconv.Atoi(strings.TrimSpace(hi))
			if err1 != nil || err2 != nil {
				return nil, errors.Errorf("非法的列范围: %s", part)
			}
			if start < 1 || end < start {
				return nil, errors.Errorf("非法的列范围: %s", part)
			}
			spans = append(spans, Span{Lo: start - 1, Hi: end - 1})
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, errors.Errorf("非法的列序号: %s", part)
		}
		spans = append(spans, Span{Lo: n - 1, Hi: n - 1})
	}
	return merge(spans), nil
}

// merge 合并重叠或相邻的区间
func merge(spans []Span) Selector {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Lo < spans[j].Lo })
	out := Selector{spans[0]}
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.Lo <= last.Hi+1 {
			if sp.Hi > last.Hi {
				last.Hi = sp.Hi
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

// String 以 1 基形式输出，便于日志
func (s Selector) String() string {
	if len(s) == 0 {
		return "全部"
	}
	parts := make([]string, 0, len(s))
	for _, sp := range s {
		switch {
		case sp.Lo == sp.Hi:
			parts = append(parts, strconv.Itoa(sp.Lo+1))
		case sp.Hi == sp.Lo+1:
			parts = append(parts, strconv.Itoa(sp.Lo+1), strconv.Itoa(sp.Hi+1))
		default:
			parts = append(parts, strconv.Itoa(sp.Lo+1)+"-"+strconv.Itoa(sp.Hi+1))
		}
	}
	return strings.Join(parts, ",")
}

// project 返回选中的列，越界的下标被忽略，第二个返回值表示是否有越界
func (s Selector) project(values []string) ([]string, bool) {
	if len(s) == 0 {
		return values, false
	}
	out := make([]string, 0, len(values))
	outOfRange := false
	for _, sp := range s {
		if sp.Hi >= len(values) {
			outOfRange = true
		}
		for idx := sp.Lo; idx <= sp.Hi && idx < len(values); idx++ {
			out = append(out, values[idx])
		}
	}
	return out, outOfRange
}

// fold 用空格拼接非空值
func fold(values []string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, " ")
}
