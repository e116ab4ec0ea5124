package repository

import (
	"context"
	"cyberlearn_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ModuleRepository struct {
	DB *gorm.DB
}

func NewModuleRepository(db *gorm.DB) *ModuleRepository {
	return &ModuleRepository{DB: db}
}

func (r *ModuleRepository) List(ctx context.Context) ([]model.LearningModule, error) {
	var modules []model.LearningModule
	err := r.DB.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Order("id ASC").
		Find(&modules).Error
	if err != nil {
		return nil, err
	}
	return modules, nil
}

func (r *ModuleRepository) FindByID(ctx context.Context, id string) (*model.LearningModule, error) {
	var module model.LearningModule
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&module).Error
	if err != nil {
		return nil, err
	}
	return &module, nil
}

// LessonCounts 模块 ID -> 课时数
func (r *ModuleRepository) LessonCounts(ctx context.Context) (map[string]int, error) {
	modules, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(modules))
	for _, m := range modules {
		counts[m.ID] = len(m.Lessons)
	}
	return counts, nil
}
