package testutil

import (
	"context"
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/pkg/database"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB 每次调用都返回一个独立的内存 SQLite
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	// 内存库只在单个连接内可见
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

// Question 选项为 A/B/C/D，correct 为正确选项
func Question(text, correct string) model.QuizQuestion {
	return model.QuizQuestion{
		Question: text,
		Options: []model.QuizOption{
			{Label: "A", Text: "first"},
			{Label: "B", Text: "second"},
			{Label: "C", Text: "third"},
			{Label: "D", Text: "fourth"},
		},
		CorrectAnswer: correct,
		Explanation:   "because " + correct,
	}
}

// SeedModule 每个 quizzes 元素对应一课及其题目
func SeedModule(tb testing.TB, db *gorm.DB, id string, order int, quizzes ...[]model.QuizQuestion) *model.LearningModule {
	tb.Helper()
	m := &model.LearningModule{
		ID:    id,
		Title: "Module " + id,
		Order: order,
	}
	for i, q := range quizzes {
		m.Lessons = append(m.Lessons, model.Lesson{
			Title:           "Lesson",
			VideoURL:        "https://cdn.example.com/v.mp4",
			DurationSeconds: 60 * (i + 1),
			Quiz:            q,
		})
	}
	if err := db.Create(m).Error; err != nil {
		tb.Fatalf("seed module: %v", err)
	}
	return m
}

func SeedCompletion(tb testing.TB, db *gorm.DB, userID, moduleID string, lessonIndex int, at time.Time) *model.ProgressRecord {
	tb.Helper()
	at = at.UTC()
	rec := &model.ProgressRecord{
		UserID:      userID,
		ModuleID:    moduleID,
		LessonIndex: lessonIndex,
		Completed:   true,
		CompletedAt: &at,
	}
	if err := db.Create(rec).Error; err != nil {
		tb.Fatalf("seed completion: %v", err)
	}
	return rec
}

func SeedAttempt(tb testing.TB, db *gorm.DB, userID, moduleID string, lessonIndex, score, total int, at time.Time) *model.QuizAttempt {
	tb.Helper()
	a := &model.QuizAttempt{
		UserID:         userID,
		ModuleID:       moduleID,
		LessonIndex:    lessonIndex,
		Score:          score,
		TotalQuestions: total,
		CompletedAt:    at.UTC(),
	}
	if err := db.Create(a).Error; err != nil {
		tb.Fatalf("seed attempt: %v", err)
	}
	return a
}

func SeedEngagement(tb testing.TB, db *gorm.DB, userID string, points int) {
	tb.Helper()
	agg := model.EngagementAggregate{UserID: userID, TotalPoints: points, UpdatedAt: time.Now().UTC()}
	if err := db.Create(&agg).Error; err != nil {
		tb.Fatalf("seed engagement: %v", err)
	}
}

func SeedProfile(tb testing.TB, db *gorm.DB, userID, name, avatarKey string) {
	tb.Helper()
	p := model.Profile{UserID: userID, DisplayName: name, AvatarKey: avatarKey}
	if err := db.Create(&p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
}

// Ctx 测试统一使用带超时的 context
func Ctx(tb testing.TB) context.Context {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	tb.Cleanup(cancel)
	return ctx
}
