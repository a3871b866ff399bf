package model

import "time"

// Stats 是五类结果的累计计数，Total 恒等于其余各项之和
type Stats struct {
	Total       int `json:"total"`
	Success     int `json:"success"`
	APIError    int `json:"apiError"`
	EmptyResult int `json:"emptyResult"`
	JSONError   int `json:"jsonError"`
	Other       int `json:"other"`
}

func (s *Stats) Add(kind ResultKind) {
	s.Total++
	switch kind {
	case ResultSuccess:
		s.Success++
	case ResultEmpty:
		s.EmptyResult++
	case ResultAPIError:
		s.APIError++
	case ResultParseError:
		s.JSONError++
	default:
		s.Other++
	}
}

func (s *Stats) Merge(o Stats) {
	s.Total += o.Total
	s.Success += o.Success
	s.APIError += o.APIError
	s.EmptyResult += o.EmptyResult
	s.JSONError += o.JSONError
	s.Other += o.Other
}

func (s Stats) Consistent() bool {
	return s.Total == s.Success+s.APIError+s.EmptyResult+s.JSONError+s.Other
}

func (s Stats) Failed() int {
	return s.Total - s.Success
}

// ProgressState 是单个输入文件的检查点，LastOffset 单调不减
type ProgressState struct {
	LastOffset int       `json:"lastOffset"`
	Stats      Stats     `json:"stats"`
	LastUpdate time.Time `json:"lastUpdate"`
	RunID      string    `json:"runId,omitempty"`
	Source     string    `json:"source,omitempty"`
}

// Advance 推进检查点并合并本批统计，不会回退
func (p *ProgressState) Advance(offset int, batch Stats, now time.Time) {
	if offset > p.LastOffset {
		p.LastOffset = offset
	}
	p.Stats.Merge(batch)
	p.LastUpdate = now
}
