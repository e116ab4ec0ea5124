package model

import "time"

// EngagementAggregate 排行榜使用的用户汇总，由定时任务维护
type EngagementAggregate struct {
	UserID           string    `gorm:"primaryKey;type:varchar(64)" json:"userId"`
	TotalPoints      int       `gorm:"default:0;index" json:"totalPoints"`
	ModulesCompleted int       `gorm:"default:0" json:"modulesCompleted"`
	LessonsCompleted int       `gorm:"default:0" json:"lessonsCompleted"`
	QuizzesPassed    int       `gorm:"default:0" json:"quizzesPassed"`
	AverageQuizScore float64   `gorm:"default:0" json:"averageQuizScore"`
	StreakDays       int       `gorm:"default:0" json:"streakDays"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (EngagementAggregate) TableName() string {
	return "engagement"
}

// Profile 由认证服务同步的公开资料
type Profile struct {
	UserID      string    `gorm:"primaryKey;type:varchar(64)" json:"userId"`
	DisplayName string    `gorm:"size:100" json:"displayName"`
	AvatarKey   string    `gorm:"size:255" json:"avatarKey"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Profile) TableName() string {
	return "profiles"
}

// LeaderboardRow engagement LEFT JOIN profiles 的查询结果
type LeaderboardRow struct {
	EngagementAggregate `gorm:"embedded"`
	DisplayName         *string
	AvatarKey           *string
}
