package prompt

import (
	"fmt"

	"llm-batch-call/config"
	"llm-batch-call/pkg/model"
)

// Render 将提示词三部分组合为一条指令，未知样式按 combined 处理
func Render(spec model.PromptSpec, style string) string {
	switch style {
	case config.PromptStyleSystemOnly:
		return spec.System
	case config.PromptStyleStructured:
		return fmt.Sprintf("[系统]\n%s\n\n[任务]\n%s\n\n[输出格式]\n%s", spec.System, spec.Task, spec.OutputSchema)
	default:
		return fmt.Sprintf("%s\n\n%s\n\n输出格式：\n%s", spec.System, spec.Task, spec.OutputSchema)
	}
}
