package repository

import (
	"context"
	"cyberlearn_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var progressKey = []clause.Column{{Name: "user_id"}, {Name: "module_id"}, {Name: "lesson_index"}}

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// FindByModule 获取用户在模块内所有课时的进度
func (r *ProgressRepository) FindByModule(ctx context.Context, userID, moduleID string) ([]model.ProgressRecord, error) {
	var records []model.ProgressRecord
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND module_id = ?", userID, moduleID).
		Order("lesson_index ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// UpsertCompletion 写入完成状态，已存在时只更新完成相关字段，不会覆盖视频进度
func (r *ProgressRepository) UpsertCompletion(ctx context.Context, rec *model.ProgressRecord) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   progressKey,
			DoUpdates: clause.AssignmentColumns([]string{"completed", "completed_at", "updated_at"}),
		}).
		Create(rec).Error
}

// UpsertVideoProgress 写入视频播放位置；resetCompletion 为 true 时同时写入 completed/completed_at
func (r *ProgressRepository) UpsertVideoProgress(ctx context.Context, rec *model.ProgressRecord, resetCompletion bool) error {
	columns := []string{"video_progress_seconds", "updated_at"}
	if resetCompletion {
		columns = append(columns, "completed", "completed_at")
	}

	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   progressKey,
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(rec).Error
}

// FindCompleted 所有已完成的课时记录，供汇总任务使用
func (r *ProgressRepository) FindCompleted(ctx context.Context) ([]model.ProgressRecord, error) {
	var records []model.ProgressRecord
	err := r.DB.WithContext(ctx).
		Where("completed = ?", true).
		Order("user_id, module_id, lesson_index").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}
