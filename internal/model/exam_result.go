package model

import "time"

// ExamResult 每次测验提交的原始记录，不管通过与否都保留
// swagger:model ExamResult
type ExamResult struct {
	BaseModel
	UserID      string    `gorm:"index;type:varchar(36);not null" json:"userId"`
	ProcessID   string    `gorm:"index;type:varchar(36);not null" json:"processId"`
	Score       int       `gorm:"not null" json:"score"`
	Passed      bool      `gorm:"not null" json:"passed"`
	SubmittedAt time.Time `gorm:"not null" json:"submittedAt"`
}

func (ExamResult) TableName() string {
	return "exam_results"
}
