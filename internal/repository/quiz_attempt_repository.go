package repository

import (
	"context"
	"cyberlearn_backend/internal/model"

	"gorm.io/gorm"
)

type QuizAttemptRepository struct {
	DB *gorm.DB
}

func NewQuizAttemptRepository(db *gorm.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{DB: db}
}

// Create 每次提交插入一条新记录
func (r *QuizAttemptRepository) Create(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

// FindByLesson 按完成时间倒序返回历史尝试
func (r *QuizAttemptRepository) FindByLesson(ctx context.Context, userID, moduleID string, lessonIndex int) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND module_id = ? AND lesson_index = ?", userID, moduleID, lessonIndex).
		Order("completed_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// FindAllScores 汇总任务只需要分数字段，不加载答案
func (r *QuizAttemptRepository) FindAllScores(ctx context.Context) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Select("id", "user_id", "module_id", "lesson_index", "score", "total_questions", "completed_at").
		Order("completed_at ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, err
	}
	return attempts, nil
}
