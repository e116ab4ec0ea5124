package database

import (
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/pkg/logger"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

type moduleSeedFile struct {
	Modules []model.LearningModule `yaml:"modules"`
}

// LoadModuleSeed 解析模块种子文件
func LoadModuleSeed(path string) ([]model.LearningModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file moduleSeedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Modules))
	for i, m := range file.Modules {
		if m.ID == "" {
			return nil, fmt.Errorf("module #%d has no id", i)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate module id %q", m.ID)
		}
		seen[m.ID] = true

		for li, lesson := range m.Lessons {
			for qi, q := range lesson.Quiz {
				if !q.HasOption(q.CorrectAnswer) {
					return nil, fmt.Errorf("module %q lesson %d question %d: correct answer %q is not an option", m.ID, li, qi, q.CorrectAnswer)
				}
			}
		}
	}

	return file.Modules, nil
}

// SeedModules 模块表为空时写入默认课程
func SeedModules(db *gorm.DB, path string) error {
	var count int64
	if err := db.Model(&model.LearningModule{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 || path == "" {
		return nil
	}

	modules, err := LoadModuleSeed(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Log.Warn("Module seed file not found, skipping", zap.String("path", path))
			return nil
		}
		return err
	}
	if len(modules) == 0 {
		return nil
	}

	if err := db.Create(&modules).Error; err != nil {
		return err
	}

	logger.Log.Info("Seeded learning modules", zap.Int("count", len(modules)), zap.String("path", path))
	return nil
}
