package model

// InputRecord 表示输入文件中的一行，所有列已拼接为一段文本
type InputRecord struct {
	Offset  int    `json:"offset"` // 行在源文件中的位置，从 0 开始，跨运行稳定
	Content string `json:"content"`
}

// Batch 是一次读取窗口的结果
type Batch struct {
	Records []InputRecord
	// Consumed 是本次实际消耗的行数，检查点按它推进
	Consumed int
}
