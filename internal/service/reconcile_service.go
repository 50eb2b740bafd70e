package service

import (
	"context"
	"errors"
	"levelup_backend/internal/model"
	"levelup_backend/pkg/logger"
	"levelup_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ReconcileLedger 对账所需的台账读口径
type ReconcileLedger interface {
	FindByUser(userID string) ([]model.CompletionRecord, error)
	FindUserIDs() ([]string, error)
}

// ReconcileService 对账：台账是唯一权威，连续天数和徽章都能从它重放出来
// 台账写成功而下游失败的请求靠这里兜底修复
type ReconcileService struct {
	Ledger    ReconcileLedger
	Streaks   StreakStore
	Badges    BadgeStore
	Processes ProcessStore
}

func NewReconcileService(
	ledger ReconcileLedger,
	streaks StreakStore,
	badges BadgeStore,
	processes ProcessStore,
) *ReconcileService {
	return &ReconcileService{
		Ledger:    ledger,
		Streaks:   streaks,
		Badges:    badges,
		Processes: processes,
	}
}

// RebuildUser 按完成时间升序回放单个用户的台账，覆盖写派生状态
// 与增量路径等价：同样的台账必然得到同样的连续天数与徽章集合
func (s *ReconcileService) RebuildUser(ctx context.Context, userID string) error {
	records, err := s.Ledger.FindByUser(userID)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	replayed := ReplayStreak(userID, records)
	err = s.Streaks.Update(userID, func(state *model.StreakState) error {
		state.StreakCount = replayed.StreakCount
		state.LastActivityDate = replayed.LastActivityDate
		return nil
	})
	if err != nil {
		return err
	}

	return s.rebuildBadges(userID, records)
}

// rebuildBadges 对用户触及过的每个分类重做完成度判定
// 徽章只补不删：授予是"完成时点"的一次性事实，不随后续发布回收
func (s *ReconcileService) rebuildBadges(userID string, records []model.CompletionRecord) error {
	completed := make(map[string]bool, len(records))
	// 分类 -> 该分类下最后一次完成时间，补发徽章时当作授予时间
	lastCompleted := make(map[string]time.Time)

	for _, rec := range records {
		completed[rec.ProcessID] = true

		process, err := s.Processes.FindByID(rec.ProcessID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 流程被移除但完成事实保留，跳过徽章判定
			continue
		}
		if err != nil {
			return err
		}
		if rec.CompletedAt.After(lastCompleted[process.CategoryID]) {
			lastCompleted[process.CategoryID] = rec.CompletedAt
		}
	}

	for categoryID, awardedAt := range lastCompleted {
		publishedIDs, err := s.Processes.FindPublishedIDsByCategory(categoryID)
		if err != nil {
			return err
		}
		if len(publishedIDs) == 0 {
			continue
		}

		complete := true
		for _, id := range publishedIDs {
			if !completed[id] {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}

		awarded, err := s.Badges.AwardIfAbsent(&model.UserBadge{
			UserID:     userID,
			CategoryID: categoryID,
			AwardedAt:  awardedAt,
		})
		if err != nil {
			return err
		}
		if awarded {
			monitoring.BadgesAwarded.Inc()
			logger.Log.Info("badge backfilled during reconciliation",
				zap.String("userId", userID),
				zap.String("categoryId", categoryID))
		}
	}

	return nil
}

// RebuildAll 遍历台账中出现过的全部用户
func (s *ReconcileService) RebuildAll(ctx context.Context) error {
	userIDs, err := s.Ledger.FindUserIDs()
	if err != nil {
		monitoring.ReconcileRuns.WithLabelValues("error").Inc()
		return err
	}

	var failed int
	for _, userID := range userIDs {
		if err := s.RebuildUser(ctx, userID); err != nil {
			failed++
			logger.Log.Error("user reconciliation failed",
				zap.String("userId", userID), zap.Error(err))
		}
	}

	if failed > 0 {
		monitoring.ReconcileRuns.WithLabelValues("error").Inc()
	} else {
		monitoring.ReconcileRuns.WithLabelValues("ok").Inc()
	}

	logger.Log.Info("reconciliation pass finished",
		zap.Int("users", len(userIDs)),
		zap.Int("failed", failed))
	return nil
}
