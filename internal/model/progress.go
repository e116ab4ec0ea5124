package model

import "time"

// ProgressRecord 用户在某模块某课时上的完成情况
// (user_id, module_id, lesson_index) 唯一，所有写入都是 upsert
type ProgressRecord struct {
	ID                   uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID               string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_progress_user_module_lesson" json:"userId"`
	ModuleID             string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_progress_user_module_lesson" json:"moduleId"`
	LessonIndex          int        `gorm:"not null;uniqueIndex:idx_progress_user_module_lesson" json:"lessonIndex"`
	Completed            bool       `gorm:"default:false" json:"completed"`
	CompletedAt          *time.Time `json:"completedAt"`
	VideoProgressSeconds int        `gorm:"default:0" json:"videoProgressSeconds"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

func (ProgressRecord) TableName() string {
	return "progress"
}
