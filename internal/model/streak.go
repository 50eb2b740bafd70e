package model

import "time"

// StreakState 用户连续活跃天数，按完成记录的逻辑日期推进
// 派生状态：随时可以通过回放 process_completions 重建
// swagger:model StreakState
type StreakState struct {
	UserID           string    `gorm:"primaryKey;type:varchar(36)" json:"userId"`
	StreakCount      int       `gorm:"not null;default:0" json:"streakCount"`
	LastActivityDate time.Time `gorm:"type:date" json:"lastActivityDate"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (StreakState) TableName() string {
	return "streak_states"
}
