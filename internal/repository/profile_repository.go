package repository

import (
	"levelup_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository struct {
	DB *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

func (r *ProfileRepository) FindByID(id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.DB.Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) FindAll() ([]model.Profile, error) {
	var profiles []model.Profile
	err := r.DB.Order("created_at asc").Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

// EnsureExists 身份提供方下发的用户第一次出现时落一条资料行
func (r *ProfileRepository) EnsureExists(id, nickname string, role model.UserRole) error {
	profile := model.Profile{
		UUIDBase: model.UUIDBase{ID: id},
		Nickname: nickname,
		Role:     role,
	}
	return r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&profile).Error
}

// AddPoints 积分原子递增，避免读改写丢更新
func (r *ProfileRepository) AddPoints(userID string, delta int) error {
	return r.DB.Model(&model.Profile{}).
		Where("id = ?", userID).
		UpdateColumn("points", gorm.Expr("points + ?", delta)).Error
}
