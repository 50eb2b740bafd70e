package service

import (
	"context"
	"encoding/json"
	"levelup_backend/internal/model"
	"levelup_backend/internal/repository"
	"levelup_backend/pkg/logger"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const leaderboardCacheKey = "leaderboard:v1"

// LeaderboardEntry 排行榜条目，纯读侧派生，从不落库
type LeaderboardEntry struct {
	UserID     string       `json:"userId"`
	Nickname   string       `json:"nickname"`
	AvatarURL  string       `json:"avatarUrl"`
	Percentage int          `json:"percentage"`
	Points     int          `json:"points"`
	Badges     []BadgeValue `json:"badges"`
}

// BuildLeaderboard 纯函数：固定输入必得固定输出
// 完成率 = round(100 * |用户完成 ∩ 已发布| / |已发布|)，无已发布流程时一律 0
// 按完成率降序，平分保持 profiles 的输入顺序（稳定排序，上游没有次级排序键）
func BuildLeaderboard(
	profiles []model.Profile,
	published []model.Process,
	completions []model.CompletionRecord,
	badges []model.UserBadge,
	categories []model.Category,
) []LeaderboardEntry {
	publishedSet := make(map[string]bool, len(published))
	for _, p := range published {
		publishedSet[p.ID] = true
	}

	completedByUser := make(map[string]map[string]bool)
	for _, rec := range completions {
		if !publishedSet[rec.ProcessID] {
			continue
		}
		if completedByUser[rec.UserID] == nil {
			completedByUser[rec.UserID] = make(map[string]bool)
		}
		completedByUser[rec.UserID][rec.ProcessID] = true
	}

	badgesByUser := make(map[string][]model.UserBadge)
	for _, b := range badges {
		badgesByUser[b.UserID] = append(badgesByUser[b.UserID], b)
	}

	entries := make([]LeaderboardEntry, 0, len(profiles))
	for _, profile := range profiles {
		entries = append(entries, LeaderboardEntry{
			UserID:     profile.ID,
			Nickname:   profile.Nickname,
			AvatarURL:  profile.AvatarURL,
			Percentage: roundPercent(len(completedByUser[profile.ID]), len(published)),
			Points:     profile.Points,
			Badges:     decorateBadges(badgesByUser[profile.ID], categories),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Percentage > entries[j].Percentage
	})

	return entries
}

// LeaderboardService 全量重算排行榜，redis 短TTL缓存，新完成落账时失效
type LeaderboardService struct {
	ProfileRepo    *repository.ProfileRepository
	ProcessRepo    *repository.ProcessRepository
	CompletionRepo *repository.CompletionRepository
	BadgeRepo      *repository.BadgeRepository
	CategoryRepo   *repository.CategoryRepository
	Redis          *redis.Client
	CacheTTL       time.Duration
}

func NewLeaderboardService(
	profileRepo *repository.ProfileRepository,
	processRepo *repository.ProcessRepository,
	completionRepo *repository.CompletionRepository,
	badgeRepo *repository.BadgeRepository,
	categoryRepo *repository.CategoryRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
) *LeaderboardService {
	return &LeaderboardService{
		ProfileRepo:    profileRepo,
		ProcessRepo:    processRepo,
		CompletionRepo: completionRepo,
		BadgeRepo:      badgeRepo,
		CategoryRepo:   categoryRepo,
		Redis:          rdb,
		CacheTTL:       cacheTTL,
	}
}

func (s *LeaderboardService) GetLeaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	// 缓存只是加速，取不到就直接回源
	if s.Redis != nil {
		cached, err := s.Redis.Get(ctx, leaderboardCacheKey).Bytes()
		if err == nil {
			var entries []LeaderboardEntry
			if err := json.Unmarshal(cached, &entries); err == nil {
				return entries, nil
			}
		} else if err != redis.Nil {
			logger.Log.Warn("leaderboard cache read failed", zap.Error(err))
		}
	}

	profiles, err := s.ProfileRepo.FindAll()
	if err != nil {
		return nil, err
	}
	published, err := s.ProcessRepo.FindPublished()
	if err != nil {
		return nil, err
	}
	completions, err := s.CompletionRepo.FindAll()
	if err != nil {
		return nil, err
	}
	badges, err := s.BadgeRepo.FindAll()
	if err != nil {
		return nil, err
	}
	categories, err := s.CategoryRepo.FindAll()
	if err != nil {
		return nil, err
	}

	entries := BuildLeaderboard(profiles, published, completions, badges, categories)

	if s.Redis != nil && s.CacheTTL > 0 {
		if payload, err := json.Marshal(entries); err == nil {
			if err := s.Redis.Set(ctx, leaderboardCacheKey, payload, s.CacheTTL).Err(); err != nil {
				logger.Log.Warn("leaderboard cache write failed", zap.Error(err))
			}
		}
	}

	return entries, nil
}

// Invalidate 实现引擎的 CacheInvalidator
func (s *LeaderboardService) Invalidate(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, leaderboardCacheKey).Err(); err != nil {
		logger.Log.Warn("leaderboard cache invalidation failed", zap.Error(err))
	}
}
