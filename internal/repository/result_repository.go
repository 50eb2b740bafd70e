package repository

import (
	"levelup_backend/internal/model"

	"gorm.io/gorm"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

// Create 每次提交都记一条，通过与否都保留
func (r *ResultRepository) Create(result *model.ExamResult) error {
	return r.DB.Create(result).Error
}

func (r *ResultRepository) FindByUser(userID string) ([]model.ExamResult, error) {
	var results []model.ExamResult
	err := r.DB.Where("user_id = ?", userID).Order("submitted_at desc").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
