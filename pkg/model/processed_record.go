package model

import "time"

// ProcessedRecord 表示一条已分类的记录，写入 DuckDB / MySQL 镜像表
type ProcessedRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`              // UUID
	RunID     string    `gorm:"column:run_id;size:36;index" json:"run_id"` // 本次运行 ID
	Source    string    `gorm:"size:512;index" json:"source"`              // 输入文件路径
	Offset    int       `gorm:"column:row_offset" json:"offset"`           // 行在源文件中的位置
	Status    string    `gorm:"size:32;index" json:"status"`               // 分类结果
	Content   string    `gorm:"type:text" json:"content"`                  // 原始输入内容
	Fields    Fields    `gorm:"type:text" json:"fields"`                   // 成功时的结构化结果
	Reason    string    `gorm:"type:text" json:"reason"`                   // 失败原因
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (ProcessedRecord) TableName() string {
	return "processed_record"
}
