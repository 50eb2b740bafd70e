package model

// Process 培训流程，属于且仅属于一个分类
// swagger:model Process
type Process struct {
	UUIDBase
	Title      string `gorm:"size:255;not null" json:"title"`
	CategoryID string `gorm:"index;type:varchar(36);not null" json:"categoryId"`
	Published  bool   `gorm:"default:false;index" json:"published"`
}

func (Process) TableName() string {
	return "processes"
}
