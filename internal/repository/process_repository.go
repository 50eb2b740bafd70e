package repository

import (
	"levelup_backend/internal/model"

	"gorm.io/gorm"
)

type ProcessRepository struct {
	DB *gorm.DB
}

func NewProcessRepository(db *gorm.DB) *ProcessRepository {
	return &ProcessRepository{DB: db}
}

func (r *ProcessRepository) FindByID(id string) (*model.Process, error) {
	var process model.Process
	err := r.DB.Where("id = ?", id).First(&process).Error
	if err != nil {
		return nil, err
	}
	return &process, nil
}

// FindPublished 获取全部已发布流程，排行榜分母
func (r *ProcessRepository) FindPublished() ([]model.Process, error) {
	var processes []model.Process
	err := r.DB.Where("published = ?", true).Find(&processes).Error
	if err != nil {
		return nil, err
	}
	return processes, nil
}

// FindPublishedIDsByCategory 获取分类下已发布流程ID集合，徽章判定用
func (r *ProcessRepository) FindPublishedIDsByCategory(categoryID string) ([]string, error) {
	var ids []string
	err := r.DB.Model(&model.Process{}).
		Where("category_id = ? AND published = ?", categoryID, true).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
