package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// HeaderQuizSession 匿名用户答题会话 id 的请求/响应头
const HeaderQuizSession = "X-Quiz-Session"

// 用户可见的提示文案
const (
	MsgSignInRequired      = "Please sign in to track your progress"
	MsgLessonCompleted     = "Lesson marked as complete"
	MsgLessonCompleteError = "Could not save your progress. Please try again"
	MsgVideoProgressError  = "Could not save your video position"
	MsgQuizSaveError       = "Could not save your quiz results. Please try again"
	MsgQuizAlreadySent     = "This quiz has already been submitted. Retry to take it again"
	MsgQuizEmpty           = "This quiz has no questions yet"
	MsgAttemptsLoadError   = "Could not load your previous attempts"
)
