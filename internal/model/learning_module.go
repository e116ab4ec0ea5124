package model

import (
	"time"

	"gorm.io/datatypes"
)

// LearningModule 一个学习路径，课时以 JSON 形式内嵌
type LearningModule struct {
	ID          string                      `gorm:"primaryKey;type:varchar(64)" json:"id" yaml:"id"`
	Title       string                      `gorm:"size:255;not null" json:"title" yaml:"title"`
	Description string                      `gorm:"type:text" json:"description" yaml:"description"`
	Order       int                         `gorm:"default:0" json:"order" yaml:"order"`
	Lessons     datatypes.JSONSlice[Lesson] `json:"lessons" yaml:"lessons"`
	CreatedAt   time.Time                   `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time                   `json:"updatedAt" yaml:"-"`
}

func (LearningModule) TableName() string {
	return "learning_modules"
}

// HasLesson 课时下标从 0 开始
func (m *LearningModule) HasLesson(lessonIndex int) bool {
	return lessonIndex >= 0 && lessonIndex < len(m.Lessons)
}

type Lesson struct {
	Title           string         `json:"title" yaml:"title"`
	VideoURL        string         `json:"videoUrl,omitempty" yaml:"video_url"`
	DurationSeconds int            `json:"durationSeconds,omitempty" yaml:"duration_seconds"`
	Quiz            []QuizQuestion `json:"quiz,omitempty" yaml:"quiz"`
}

type QuizQuestion struct {
	Question      string       `json:"question" yaml:"question"`
	Options       []QuizOption `json:"options" yaml:"options"`
	CorrectAnswer string       `json:"correctAnswer" yaml:"correct_answer"`
	Explanation   string       `json:"explanation,omitempty" yaml:"explanation"`
}

type QuizOption struct {
	Label string `json:"label" yaml:"label"`
	Text  string `json:"text" yaml:"text"`
}

// HasOption 选项标签是否属于该题
func (q *QuizQuestion) HasOption(label string) bool {
	for _, o := range q.Options {
		if o.Label == label {
			return true
		}
	}
	return false
}
