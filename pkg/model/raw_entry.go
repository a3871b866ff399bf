package model

import "time"

// RawEntry 是原始响应日志中的一行
type RawEntry struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id"`
	Offset    int       `json:"offset"`
	Status    string    `json:"status"`
	Content   string    `json:"content"`
	Response  string    `json:"response"`
	Reason    string    `json:"reason,omitempty"`
}
