package model

import "time"

// CompletionRecord 用户首次通过流程测验的完成事实，只追加不修改
// (user_id, process_id) 唯一约束是全部下游聚合的幂等基础
// swagger:model CompletionRecord
type CompletionRecord struct {
	BaseModel
	UserID      string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_process" json:"userId"`
	ProcessID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_process" json:"processId"`
	CompletedAt time.Time `gorm:"not null;index" json:"completedAt"`
}

func (CompletionRecord) TableName() string {
	return "process_completions"
}
