package service

import (
	"context"
	"errors"
	"levelup_backend/internal/config"
	"levelup_backend/internal/model"
	"levelup_backend/internal/util"
	"levelup_backend/pkg/logger"
	"levelup_backend/pkg/monitoring"
	"levelup_backend/pkg/tracing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 引擎对存储层的依赖收窄成小接口，属性测试用内存实现替换
// 仓库层的具体类型逐一满足这些接口

type CompletionLedger interface {
	CreateIfAbsent(record *model.CompletionRecord) (bool, error)
	FindByUser(userID string) ([]model.CompletionRecord, error)
}

type StreakStore interface {
	Update(userID string, fn func(state *model.StreakState) error) error
	FindByUser(userID string) (*model.StreakState, error)
}

type BadgeStore interface {
	AwardIfAbsent(badge *model.UserBadge) (bool, error)
	FindByUser(userID string) ([]model.UserBadge, error)
}

type ProcessStore interface {
	FindByID(id string) (*model.Process, error)
	FindPublished() ([]model.Process, error)
	FindPublishedIDsByCategory(categoryID string) ([]string, error)
}

type QuestionStore interface {
	FindByProcessID(processID string) ([]model.Question, error)
}

type ResultLog interface {
	Create(result *model.ExamResult) error
}

type ProfileStore interface {
	FindByID(id string) (*model.Profile, error)
	AddPoints(userID string, delta int) error
}

type CategoryStore interface {
	FindAll() ([]model.Category, error)
}

// CacheInvalidator 新完成落账后踢掉排行榜缓存
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// EngineService 进度与游戏化引擎：判分 -> 完成台账 -> 连续天数/积分/徽章
// 各页面共用的唯一入口，台账写入是权威事实，下游失败不回滚、可重放修复
type EngineService struct {
	Ledger     CompletionLedger
	Streaks    StreakStore
	Badges     BadgeStore
	Processes  ProcessStore
	Questions  QuestionStore
	Results    ResultLog
	Profiles   ProfileStore
	Categories CategoryStore
	Cache      CacheInvalidator

	Config config.EngineConfig

	// 可注入的时钟，测试与回填场景用
	Now func() time.Time
}

func NewEngineService(
	ledger CompletionLedger,
	streaks StreakStore,
	badges BadgeStore,
	processes ProcessStore,
	questions QuestionStore,
	results ResultLog,
	profiles ProfileStore,
	categories CategoryStore,
	cache CacheInvalidator,
	cfg config.EngineConfig,
) *EngineService {
	return &EngineService{
		Ledger:     ledger,
		Streaks:    streaks,
		Badges:     badges,
		Processes:  processes,
		Questions:  questions,
		Results:    results,
		Profiles:   profiles,
		Categories: categories,
		Cache:      cache,
		Config:     cfg,
		Now:        time.Now,
	}
}

// SubmitExamResult 一次提交的处理结论
type SubmitExamResult struct {
	Score            int  `json:"score"`
	Passed           bool `json:"passed"`
	NewCompletion    bool `json:"newCompletion"`
	AlreadyCompleted bool `json:"alreadyCompleted"`
}

// SubmitExam 判分并在首次通过时落完成台账，连带推进连续天数、积分与徽章
// 重复提交（并发或重试）只产生一条完成记录，下游只在首次创建时触发
func (s *EngineService) SubmitExam(ctx context.Context, userID, processID string, answers AnswerSheet) (*SubmitExamResult, error) {
	ctx, span := tracing.Tracer.Start(ctx, "engine.SubmitExam")
	defer span.End()

	process, err := s.Processes.FindByID(processID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrProcessNotFound
	}
	if err != nil {
		return nil, err
	}
	if !process.Published {
		return nil, util.ErrProcessNotPublished
	}

	questions, err := s.Questions.FindByProcessID(processID)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, util.ErrNoQuestions
	}

	score := EvaluateExam(questions, answers, s.Config.PassThreshold)
	now := s.Now()

	// 提交流水只是审计记录，写失败不拦截主流程
	if err := s.Results.Create(&model.ExamResult{
		UserID:      userID,
		ProcessID:   processID,
		Score:       score.Score,
		Passed:      score.Passed,
		SubmittedAt: now,
	}); err != nil {
		logger.Log.Warn("exam result log write failed",
			zap.String("userId", userID),
			zap.String("processId", processID),
			zap.Error(err))
	}

	if !score.Passed {
		monitoring.ExamSubmissions.WithLabelValues("failed").Inc()
		return &SubmitExamResult{Score: score.Score}, nil
	}

	// 台账写入是唯一的权威事实，失败直接上抛，调用方重新提交
	created, err := s.Ledger.CreateIfAbsent(&model.CompletionRecord{
		UserID:      userID,
		ProcessID:   processID,
		CompletedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if !created {
		monitoring.ExamSubmissions.WithLabelValues("replay").Inc()
		return &SubmitExamResult{Score: score.Score, Passed: true, AlreadyCompleted: true}, nil
	}

	monitoring.ExamSubmissions.WithLabelValues("passed").Inc()
	monitoring.CompletionsCreated.Inc()

	// 以下派生更新都以台账为准、可独立重放，任何一步失败只记日志等对账修复
	if err := s.Profiles.AddPoints(userID, s.Config.CompletionPoints); err != nil {
		logger.Log.Error("points increment failed, pending reconciliation",
			zap.String("userId", userID), zap.Error(err))
	}

	if err := s.touchStreak(userID, now); err != nil {
		logger.Log.Error("streak update failed, pending reconciliation",
			zap.String("userId", userID), zap.Error(err))
	}

	if _, err := s.checkCategoryBadge(ctx, userID, process.CategoryID, now); err != nil {
		logger.Log.Error("badge check failed, pending reconciliation",
			zap.String("userId", userID),
			zap.String("categoryId", process.CategoryID),
			zap.Error(err))
	}

	if s.Cache != nil {
		s.Cache.Invalidate(ctx)
	}

	return &SubmitExamResult{Score: score.Score, Passed: true, NewCompletion: true}, nil
}

// touchStreak 行锁内推进连续天数，同一用户的并发完成串行执行
func (s *EngineService) touchStreak(userID string, completedAt time.Time) error {
	return s.Streaks.Update(userID, func(state *model.StreakState) error {
		advanceStreak(state, completedAt)
		return nil
	})
}

// checkCategoryBadge 全量重算分类完成度：分类下已发布流程集合与用户台账求交
// 集合非空且相等才授予，插入冲突安全，已有徽章不重复也不回收
func (s *EngineService) checkCategoryBadge(ctx context.Context, userID, categoryID string, awardedAt time.Time) (bool, error) {
	_, span := tracing.Tracer.Start(ctx, "engine.checkCategoryBadge")
	defer span.End()

	publishedIDs, err := s.Processes.FindPublishedIDsByCategory(categoryID)
	if err != nil {
		return false, err
	}
	if len(publishedIDs) == 0 {
		return false, nil
	}

	records, err := s.Ledger.FindByUser(userID)
	if err != nil {
		return false, err
	}
	completed := make(map[string]bool, len(records))
	for _, rec := range records {
		completed[rec.ProcessID] = true
	}

	for _, id := range publishedIDs {
		if !completed[id] {
			return false, nil
		}
	}

	awarded, err := s.Badges.AwardIfAbsent(&model.UserBadge{
		UserID:     userID,
		CategoryID: categoryID,
		AwardedAt:  awardedAt,
	})
	if err != nil {
		return false, err
	}
	if awarded {
		monitoring.BadgesAwarded.Inc()
		logger.Log.Info("category badge awarded",
			zap.String("userId", userID),
			zap.String("categoryId", categoryID))
	}
	return awarded, nil
}

// UserProgress 个人进度视图：完成率、积分、连续天数与徽章
type UserProgress struct {
	Percentage  int          `json:"percentage"`
	Completed   int          `json:"completed"`
	Published   int          `json:"published"`
	Points      int          `json:"points"`
	StreakCount int          `json:"streakCount"`
	Badges      []BadgeValue `json:"badges"`
}

// BadgeValue 徽章带上分类名称与图标用于展示
type BadgeValue struct {
	CategoryID string    `json:"categoryId"`
	Name       string    `json:"name"`
	Icon       string    `json:"icon"`
	AwardedAt  time.Time `json:"awardedAt"`
}

func (s *EngineService) GetUserProgress(ctx context.Context, userID string) (*UserProgress, error) {
	profile, err := s.Profiles.FindByID(userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	published, err := s.Processes.FindPublished()
	if err != nil {
		return nil, err
	}
	publishedSet := make(map[string]bool, len(published))
	for _, p := range published {
		publishedSet[p.ID] = true
	}

	records, err := s.Ledger.FindByUser(userID)
	if err != nil {
		return nil, err
	}
	completed := 0
	for _, rec := range records {
		if publishedSet[rec.ProcessID] {
			completed++
		}
	}

	streak := 0
	if state, err := s.Streaks.FindByUser(userID); err == nil {
		streak = state.StreakCount
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	badges, err := s.Badges.FindByUser(userID)
	if err != nil {
		return nil, err
	}
	categories, err := s.Categories.FindAll()
	if err != nil {
		return nil, err
	}
	badgeValues := decorateBadges(badges, categories)

	return &UserProgress{
		Percentage:  roundPercent(completed, len(published)),
		Completed:   completed,
		Published:   len(published),
		Points:      profile.Points,
		StreakCount: streak,
		Badges:      badgeValues,
	}, nil
}

func decorateBadges(badges []model.UserBadge, categories []model.Category) []BadgeValue {
	byID := make(map[string]model.Category, len(categories))
	for _, cat := range categories {
		byID[cat.ID] = cat
	}

	values := make([]BadgeValue, 0, len(badges))
	for _, b := range badges {
		cat := byID[b.CategoryID]
		values = append(values, BadgeValue{
			CategoryID: b.CategoryID,
			Name:       cat.Name,
			Icon:       cat.Icon,
			AwardedAt:  b.AwardedAt,
		})
	}
	return values
}
