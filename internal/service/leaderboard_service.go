package service

import (
	"context"
	"cyberlearn_backend/internal/config"
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/pkg/logger"
	"cyberlearn_backend/pkg/tracing"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const anonymousDisplayName = "Anonymous"

type LeaderboardStore interface {
	FindTop(ctx context.Context, limit int) ([]model.LeaderboardRow, error)
	FindByUserID(ctx context.Context, userID string) (*model.LeaderboardRow, error)
	CountAbove(ctx context.Context, points int) (int64, error)
}

type AvatarResolver interface {
	AvatarURL(ctx context.Context, key string) (string, error)
}

type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	UserID           string  `json:"userId"`
	DisplayName      string  `json:"displayName"`
	AvatarURL        string  `json:"avatarUrl,omitempty"`
	TotalPoints      int     `json:"totalPoints"`
	ModulesCompleted int     `json:"modulesCompleted"`
	LessonsCompleted int     `json:"lessonsCompleted"`
	QuizzesPassed    int     `json:"quizzesPassed"`
	AverageQuizScore float64 `json:"averageQuizScore"`
	StreakDays       int     `json:"streakDays"`
}

type LeaderboardService struct {
	Store   LeaderboardStore
	Avatars AvatarResolver
	Cache   LeaderboardCache

	mu  sync.RWMutex
	cfg config.LeaderboardConfig
}

func NewLeaderboardService(store LeaderboardStore, avatars AvatarResolver, cache LeaderboardCache, cfg config.LeaderboardConfig) *LeaderboardService {
	if cache == nil {
		cache = NoopLeaderboardCache{}
	}
	return &LeaderboardService{
		Store:   store,
		Avatars: avatars,
		Cache:   cache,
		cfg:     cfg,
	}
}

// UpdateConfig 配置热更新
func (s *LeaderboardService) UpdateConfig(cfg config.LeaderboardConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *LeaderboardService) limit(n int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 {
		n = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && n > s.cfg.MaxLimit {
		n = s.cfg.MaxLimit
	}
	return n
}

// LoadTop 名次按查询顺序从 1 连续编号，同分不做额外排序
func (s *LeaderboardService) LoadTop(ctx context.Context, n int) ([]LeaderboardEntry, error) {
	n = s.limit(n)

	ctx, span := tracing.Start(ctx, "LeaderboardService.LoadTop")
	defer span.End()

	if entries, ok := s.Cache.GetTop(ctx, n); ok {
		return entries, nil
	}

	rows, err := s.Store.FindTop(ctx, n)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, s.toEntry(ctx, &rows[i], i+1))
	}

	s.mu.RLock()
	ttl := s.cfg.CacheTTL
	s.mu.RUnlock()
	s.Cache.SetTop(ctx, n, entries, ttl)

	return entries, nil
}

// LoadCurrentUserRank 不在 top 中时单独查询并按更高积分人数计算名次
func (s *LeaderboardService) LoadCurrentUserRank(ctx context.Context, identity Identity, top []LeaderboardEntry) (*LeaderboardEntry, error) {
	if !identity.Authenticated() {
		return nil, nil
	}
	for i := range top {
		if top[i].UserID == identity.UserID {
			entry := top[i]
			return &entry, nil
		}
	}

	ctx, span := tracing.Start(ctx, "LeaderboardService.LoadCurrentUserRank")
	defer span.End()

	row, err := s.Store.FindByUserID(ctx, identity.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load leaderboard entry for %s: %w", identity.UserID, err)
	}

	above, err := s.Store.CountAbove(ctx, row.TotalPoints)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("count leaderboard rank for %s: %w", identity.UserID, err)
	}

	entry := s.toEntry(ctx, row, int(above)+1)
	return &entry, nil
}

func (s *LeaderboardService) toEntry(ctx context.Context, row *model.LeaderboardRow, rank int) LeaderboardEntry {
	entry := LeaderboardEntry{
		Rank:             rank,
		UserID:           row.UserID,
		DisplayName:      anonymousDisplayName,
		TotalPoints:      row.TotalPoints,
		ModulesCompleted: row.ModulesCompleted,
		LessonsCompleted: row.LessonsCompleted,
		QuizzesPassed:    row.QuizzesPassed,
		AverageQuizScore: row.AverageQuizScore,
		StreakDays:       row.StreakDays,
	}
	if row.DisplayName != nil && *row.DisplayName != "" {
		entry.DisplayName = *row.DisplayName
	}
	if row.AvatarKey != nil && *row.AvatarKey != "" && s.Avatars != nil {
		url, err := s.Avatars.AvatarURL(ctx, *row.AvatarKey)
		if err != nil {
			logger.Log.Warn("Failed to resolve avatar URL",
				zap.String("userID", row.UserID),
				zap.Error(err))
		} else {
			entry.AvatarURL = url
		}
	}
	return entry
}
