package repository

import (
	"levelup_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CompletionRepository struct {
	DB *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{DB: db}
}

// CreateIfAbsent 冲突安全的单条插入，靠 (user_id, process_id) 唯一索引兜底
// 不做先查后插：并发重复提交下只有一条记录落库
// 返回值表示本次调用是否真正新建了完成记录
func (r *CompletionRepository) CreateIfAbsent(record *model.CompletionRecord) (bool, error) {
	result := r.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "process_id"}},
		DoNothing: true,
	}).Create(record)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// FindByUser 按完成时间升序返回，回放重建派生状态时依赖该顺序
func (r *CompletionRepository) FindByUser(userID string) ([]model.CompletionRecord, error) {
	var records []model.CompletionRecord
	err := r.DB.Where("user_id = ?", userID).Order("completed_at asc, id asc").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *CompletionRepository) FindAll() ([]model.CompletionRecord, error) {
	var records []model.CompletionRecord
	err := r.DB.Order("completed_at asc, id asc").Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FindUserIDs 出现在台账中的全部用户，后台对账遍历用
func (r *CompletionRepository) FindUserIDs() ([]string, error) {
	var ids []string
	err := r.DB.Model(&model.CompletionRecord{}).Distinct("user_id").Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
