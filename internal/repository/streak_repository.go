package repository

import (
	"errors"
	"levelup_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StreakRepository struct {
	DB *gorm.DB
}

func NewStreakRepository(db *gorm.DB) *StreakRepository {
	return &StreakRepository{DB: db}
}

func (r *StreakRepository) FindByUser(userID string) (*model.StreakState, error) {
	var state model.StreakState
	err := r.DB.Where("user_id = ?", userID).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// Update 在事务内对用户行加排他锁后执行变更，同一用户的并发完成串行化
// 行不存在时以零值状态调用 fn，写回走 upsert
func (r *StreakRepository) Update(userID string, fn func(state *model.StreakState) error) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var state model.StreakState
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).First(&state).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			state = model.StreakState{UserID: userID}
		} else if err != nil {
			return err
		}

		if err := fn(&state); err != nil {
			return err
		}

		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).Create(&state).Error
	})
}
