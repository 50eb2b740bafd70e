package model

// Category 培训流程分类，徽章按分类发放
// swagger:model Category
type Category struct {
	UUIDBase
	Name string `gorm:"size:100;not null" json:"name"`
	Icon string `gorm:"size:255" json:"icon"`
}

func (Category) TableName() string {
	return "categories"
}
