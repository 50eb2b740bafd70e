package repository

import (
	"levelup_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BadgeRepository struct {
	DB *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{DB: db}
}

// AwardIfAbsent 与完成台账同款的冲突安全插入，(user_id, category_id) 唯一
func (r *BadgeRepository) AwardIfAbsent(badge *model.UserBadge) (bool, error) {
	result := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "category_id"}},
		DoNothing: true,
	}).Create(badge)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *BadgeRepository) FindByUser(userID string) ([]model.UserBadge, error) {
	var badges []model.UserBadge
	err := r.DB.Where("user_id = ?", userID).Order("awarded_at asc").Find(&badges).Error
	if err != nil {
		return nil, err
	}
	return badges, nil
}

func (r *BadgeRepository) FindAll() ([]model.UserBadge, error) {
	var badges []model.UserBadge
	err := r.DB.Order("awarded_at asc").Find(&badges).Error
	if err != nil {
		return nil, err
	}
	return badges, nil
}
