package repository

import (
	"context"
	"cyberlearn_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const leaderboardColumns = "e.user_id, e.total_points, e.modules_completed, e.lessons_completed, " +
	"e.quizzes_passed, e.average_quiz_score, e.streak_days, e.updated_at, p.display_name, p.avatar_key"

type LeaderboardRepository struct {
	DB *gorm.DB
}

func NewLeaderboardRepository(db *gorm.DB) *LeaderboardRepository {
	return &LeaderboardRepository{DB: db}
}

func (r *LeaderboardRepository) joined(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).
		Table("engagement AS e").
		Select(leaderboardColumns).
		Joins("LEFT JOIN profiles AS p ON p.user_id = e.user_id")
}

// FindTop 按总积分倒序，积分相同时保持数据库默认顺序
func (r *LeaderboardRepository) FindTop(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	var rows []model.LeaderboardRow
	err := r.joined(ctx).
		Order("e.total_points DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByUserID 没有汇总记录时返回 gorm.ErrRecordNotFound
func (r *LeaderboardRepository) FindByUserID(ctx context.Context, userID string) (*model.LeaderboardRow, error) {
	var rows []model.LeaderboardRow
	err := r.joined(ctx).
		Where("e.user_id = ?", userID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// CountAbove 积分严格高于 points 的用户数
func (r *LeaderboardRepository) CountAbove(ctx context.Context, points int) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&model.EngagementAggregate{}).
		Where("total_points > ?", points).
		Count(&count).Error
	return count, err
}

// SaveAggregates 批量 upsert 汇总结果
func (r *LeaderboardRepository) SaveAggregates(ctx context.Context, aggregates []model.EngagementAggregate) error {
	if len(aggregates) == 0 {
		return nil
	}

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_points",
				"modules_completed",
				"lessons_completed",
				"quizzes_passed",
				"average_quiz_score",
				"streak_days",
				"updated_at",
			}),
		}).CreateInBatches(aggregates, 200).Error
	})
}
