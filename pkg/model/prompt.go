package model

// PromptSpec 加载后不可变
type PromptSpec struct {
	System       string `json:"system"`
	Task         string `json:"task"`
	OutputSchema string `json:"output"`
}
