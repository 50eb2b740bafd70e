package repository

import (
	"levelup_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) FindByProcessID(processID string) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Where("process_id = ?", processID).Order("created_at asc").Find(&questions).Error
	if err != nil {
		return nil, err
	}
	return questions, nil
}
