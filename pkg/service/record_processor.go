package service

import (
	"context"
	"fmt"
	"strings"

	"llm-batch-call/pkg/model"
	"llm-batch-call/pkg/prompt"
	"llm-batch-call/pkg/provider"
)

// RecordProcessor 处理单条记录，即使调用失败或发生 panic 也会返回分类结果
type RecordProcessor struct {
	provider provider.Provider
	system   string
	template *prompt.Template
}

func NewRecordProcessor(p provider.Provider, system string, template *prompt.Template) *RecordProcessor {
	return &RecordProcessor{provider: p, system: system, template: template}
}

func (p *RecordProcessor) Process(ctx context.Context, rec model.InputRecord) (result model.Result) {
	defer func() {
		if r := recover(); r != nil {
			result = model.Unexpected(fmt.Sprintf("处理第 %d 行时发生异常: %v", rec.Offset+1, r))
		}
	}()

	// 列选择后内容为空的记录不发起调用
	if strings.TrimSpace(rec.Content) == "" {
		return model.Empty(fmt.Sprintf("第 %d 行内容为空，未发起调用", rec.Offset+1), "")
	}
	result = p.provider.Dispatch(ctx, p.system, rec.Content)
	if result.Kind != model.ResultSuccess || p.template == nil {
		return result
	}
	// 输出格式校验失败按 JSON 错误处理
	if err := p.template.Validate(result.Fields); err != nil {
		return model.ParseError(err.Error(), model.Stringify(result.Fields), result.Raw)
	}
	return result
}
