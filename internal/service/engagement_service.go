package service

import (
	"context"
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/internal/repository"
	"cyberlearn_backend/pkg/logger"
	"cyberlearn_backend/pkg/monitoring"
	"cyberlearn_backend/pkg/tracing"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"
)

// 积分规则
const (
	PointsPerLesson     = 10
	PointsPerModule     = 50
	PointsPerQuizPassed = 20
)

const dayLayout = "2006-01-02"

// EngagementService 从进度和测验记录重新计算排行榜汇总
type EngagementService struct {
	ProgressRepo    *repository.ProgressRepository
	AttemptRepo     *repository.QuizAttemptRepository
	ModuleRepo      *repository.ModuleRepository
	LeaderboardRepo *repository.LeaderboardRepository
	Cache           LeaderboardCache

	Now func() time.Time
}

func NewEngagementService(
	progressRepo *repository.ProgressRepository,
	attemptRepo *repository.QuizAttemptRepository,
	moduleRepo *repository.ModuleRepository,
	leaderboardRepo *repository.LeaderboardRepository,
	cache LeaderboardCache,
) *EngagementService {
	if cache == nil {
		cache = NoopLeaderboardCache{}
	}
	return &EngagementService{
		ProgressRepo:    progressRepo,
		AttemptRepo:     attemptRepo,
		ModuleRepo:      moduleRepo,
		LeaderboardRepo: leaderboardRepo,
		Cache:           cache,
		Now:             time.Now,
	}
}

// Refresh 定时任务入口
func (s *EngagementService) Refresh(ctx context.Context) error {
	start := time.Now()
	defer func() {
		monitoring.EngagementRefreshDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracing.Start(ctx, "EngagementService.Refresh")
	defer span.End()

	records, err := s.ProgressRepo.FindCompleted(ctx)
	if err != nil {
		return fmt.Errorf("load completed lessons: %w", err)
	}
	attempts, err := s.AttemptRepo.FindAllScores(ctx)
	if err != nil {
		return fmt.Errorf("load quiz attempts: %w", err)
	}
	counts, err := s.ModuleRepo.LessonCounts(ctx)
	if err != nil {
		return fmt.Errorf("load lesson counts: %w", err)
	}

	aggregates := ComputeEngagement(records, attempts, counts, s.Now())
	if err := s.LeaderboardRepo.SaveAggregates(ctx, aggregates); err != nil {
		span.RecordError(err)
		return fmt.Errorf("save engagement aggregates: %w", err)
	}
	s.Cache.Invalidate(ctx)

	logger.Log.Info("Engagement aggregates refreshed",
		zap.Int("users", len(aggregates)),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

type lessonKey struct {
	moduleID    string
	lessonIndex int
}

type userActivity struct {
	completed    map[lessonKey]bool
	passed       map[lessonKey]bool
	percentSum   int
	attemptCount int
	days         map[string]bool
}

// ComputeEngagement 纯计算，结果按 user_id 排序
func ComputeEngagement(records []model.ProgressRecord, attempts []model.QuizAttempt, lessonCounts map[string]int, now time.Time) []model.EngagementAggregate {
	users := make(map[string]*userActivity)
	get := func(userID string) *userActivity {
		u, ok := users[userID]
		if !ok {
			u = &userActivity{
				completed: make(map[lessonKey]bool),
				passed:    make(map[lessonKey]bool),
				days:      make(map[string]bool),
			}
			users[userID] = u
		}
		return u
	}

	for _, r := range records {
		if !r.Completed {
			continue
		}
		u := get(r.UserID)
		u.completed[lessonKey{r.ModuleID, r.LessonIndex}] = true
		if r.CompletedAt != nil {
			u.days[r.CompletedAt.UTC().Format(dayLayout)] = true
		}
	}

	for i := range attempts {
		a := &attempts[i]
		u := get(a.UserID)
		u.attemptCount++
		u.percentSum += a.Percentage()
		if Passed(a.Score, a.TotalQuestions) {
			u.passed[lessonKey{a.ModuleID, a.LessonIndex}] = true
		}
		if !a.CompletedAt.IsZero() {
			u.days[a.CompletedAt.UTC().Format(dayLayout)] = true
		}
	}

	updatedAt := now.UTC()
	out := make([]model.EngagementAggregate, 0, len(users))
	for userID, u := range users {
		modules := completedModules(u.completed, lessonCounts)
		avg := 0.0
		if u.attemptCount > 0 {
			avg = math.Round(float64(u.percentSum)/float64(u.attemptCount)*100) / 100
		}
		out = append(out, model.EngagementAggregate{
			UserID:           userID,
			TotalPoints:      PointsPerLesson*len(u.completed) + PointsPerModule*modules + PointsPerQuizPassed*len(u.passed),
			ModulesCompleted: modules,
			LessonsCompleted: len(u.completed),
			QuizzesPassed:    len(u.passed),
			AverageQuizScore: avg,
			StreakDays:       streakDays(u.days, now),
			UpdatedAt:        updatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// completedModules 课时全部完成的模块数，没有课时的模块不计
func completedModules(completed map[lessonKey]bool, lessonCounts map[string]int) int {
	done := make(map[string]int)
	for k := range completed {
		if k.lessonIndex >= 0 && k.lessonIndex < lessonCounts[k.moduleID] {
			done[k.moduleID]++
		}
	}

	modules := 0
	for moduleID, n := range done {
		if total := lessonCounts[moduleID]; total > 0 && n == total {
			modules++
		}
	}
	return modules
}

// streakDays 截止今天或昨天的连续活跃天数 (UTC)
func streakDays(days map[string]bool, now time.Time) int {
	day := now.UTC()
	if !days[day.Format(dayLayout)] {
		day = day.AddDate(0, 0, -1)
		if !days[day.Format(dayLayout)] {
			return 0
		}
	}

	streak := 0
	for days[day.Format(dayLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
