package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuizAnswer 只保存原始选择，是否正确在读取时计算
type QuizAnswer struct {
	QuestionIndex  int    `json:"questionIndex"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
}

func (a QuizAnswer) IsCorrect() bool {
	return a.SelectedAnswer == a.CorrectAnswer
}

// QuizAttempt 一次提交的测验结果，只插入不修改
type QuizAttempt struct {
	UUIDBase
	UserID         string                          `gorm:"type:varchar(64);not null;index:idx_attempt_user_lesson" json:"userId"`
	ModuleID       string                          `gorm:"type:varchar(64);not null;index:idx_attempt_user_lesson" json:"moduleId"`
	LessonIndex    int                             `gorm:"not null;index:idx_attempt_user_lesson" json:"lessonIndex"`
	Score          int                             `gorm:"not null" json:"score"`
	TotalQuestions int                             `gorm:"not null" json:"totalQuestions"`
	Answers        datatypes.JSONSlice[QuizAnswer] `json:"answers"`
	CompletedAt    time.Time                       `gorm:"index" json:"completedAt"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

func (a *QuizAttempt) Percentage() int {
	return Percentage(a.Score, a.TotalQuestions)
}

// Percentage 四舍五入到整数，total 非正时为 0
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (score*200 + total) / (total * 2)
}
