package model

import "time"

// UserBadge 分类徽章，分类下全部已发布流程完成后一次性授予
// 授予后不回收，后续新发布流程不影响既有徽章
// swagger:model UserBadge
type UserBadge struct {
	BaseModel
	UserID     string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_category" json:"userId"`
	CategoryID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_user_category" json:"categoryId"`
	AwardedAt  time.Time `gorm:"not null" json:"awardedAt"`
}

func (UserBadge) TableName() string {
	return "user_badges"
}
