package service

import (
	"context"
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/internal/util"
	"cyberlearn_backend/pkg/logger"
	"cyberlearn_backend/pkg/monitoring"
	"cyberlearn_backend/pkg/tracing"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// PassThresholdPercent 通过线，按 score/total 精确比较
const PassThresholdPercent = 70

type AttemptStore interface {
	Create(ctx context.Context, attempt *model.QuizAttempt) error
	FindByLesson(ctx context.Context, userID, moduleID string, lessonIndex int) ([]model.QuizAttempt, error)
}

// RecorderState 可序列化的答题状态，answers 按题号升序
type RecorderState struct {
	Answers        []model.QuizAnswer `json:"answers"`
	Submitted      bool               `json:"submitted"`
	Score          int                `json:"score"`
	TotalQuestions int                `json:"totalQuestions"`
}

type QuizRecorder struct {
	attempts    AttemptStore
	notifier    Notifier
	identity    Identity
	moduleID    string
	lessonIndex int
	state       *RecorderState

	Now func() time.Time
}

// NewQuizRecorder state 为 nil 时从空状态开始
func NewQuizRecorder(attempts AttemptStore, notifier Notifier, identity Identity, moduleID string, lessonIndex int, state *RecorderState) *QuizRecorder {
	if state == nil {
		state = &RecorderState{}
	}
	return &QuizRecorder{
		attempts:    attempts,
		notifier:    notifier,
		identity:    identity,
		moduleID:    moduleID,
		lessonIndex: lessonIndex,
		state:       state,
		Now:         time.Now,
	}
}

// RecordAnswer 同一题号重复作答时覆盖
func (r *QuizRecorder) RecordAnswer(questionIndex int, selected, correct string) bool {
	answer := model.QuizAnswer{
		QuestionIndex:  questionIndex,
		SelectedAnswer: selected,
		CorrectAnswer:  correct,
	}

	answers := r.state.Answers
	i := sort.Search(len(answers), func(i int) bool { return answers[i].QuestionIndex >= questionIndex })
	if i < len(answers) && answers[i].QuestionIndex == questionIndex {
		answers[i] = answer
	} else {
		answers = append(answers, model.QuizAnswer{})
		copy(answers[i+1:], answers[i:])
		answers[i] = answer
	}
	r.state.Answers = answers

	return answer.IsCorrect()
}

func (r *QuizRecorder) SubmitQuiz(ctx context.Context, totalQuestions int) bool {
	if !r.identity.Authenticated() || r.moduleID == "" {
		notifyInfo(r.notifier, util.MsgSignInRequired)
		monitoring.QuizSubmissions.WithLabelValues("rejected").Inc()
		return false
	}
	if r.state.Submitted {
		notifyInfo(r.notifier, util.MsgQuizAlreadySent)
		monitoring.QuizSubmissions.WithLabelValues("rejected").Inc()
		return false
	}
	if totalQuestions <= 0 {
		notifyInfo(r.notifier, util.MsgQuizEmpty)
		monitoring.QuizSubmissions.WithLabelValues("rejected").Inc()
		return false
	}

	ctx, span := tracing.Start(ctx, "QuizRecorder.SubmitQuiz")
	defer span.End()

	answers := make([]model.QuizAnswer, 0, len(r.state.Answers))
	score := 0
	for _, a := range r.state.Answers {
		if a.QuestionIndex < 0 || a.QuestionIndex >= totalQuestions {
			continue
		}
		answers = append(answers, a)
		if a.IsCorrect() {
			score++
		}
	}

	attempt := &model.QuizAttempt{
		UserID:         r.identity.UserID,
		ModuleID:       r.moduleID,
		LessonIndex:    r.lessonIndex,
		Score:          score,
		TotalQuestions: totalQuestions,
		Answers:        answers,
		CompletedAt:    r.Now().UTC(),
	}
	if err := r.attempts.Create(ctx, attempt); err != nil {
		span.RecordError(err)
		logger.Log.Error("Failed to save quiz attempt",
			zap.String("userID", r.identity.UserID),
			zap.String("moduleID", r.moduleID),
			zap.Int("lessonIndex", r.lessonIndex),
			zap.Error(err))
		notifyError(r.notifier, util.MsgQuizSaveError)
		monitoring.QuizSubmissions.WithLabelValues("error").Inc()
		return false
	}

	r.state.Submitted = true
	r.state.Score = score
	r.state.TotalQuestions = totalQuestions

	pct := model.Percentage(score, totalQuestions)
	if Passed(score, totalQuestions) {
		notifySuccess(r.notifier, fmt.Sprintf("Quiz passed! You scored %d/%d (%d%%)", score, totalQuestions, pct))
		monitoring.QuizSubmissions.WithLabelValues("passed").Inc()
	} else {
		notifyInfo(r.notifier, fmt.Sprintf("You scored %d/%d (%d%%). You need %d%% to pass, review the lesson and try again",
			score, totalQuestions, pct, PassThresholdPercent))
		monitoring.QuizSubmissions.WithLabelValues("failed").Inc()
	}
	return true
}

// ResetQuiz 只清理本地状态，历史记录保留
func (r *QuizRecorder) ResetQuiz() {
	r.state.Answers = nil
	r.state.Submitted = false
	r.state.Score = 0
	r.state.TotalQuestions = 0
}

// FetchPreviousAttempts 最近的在前；匿名或加载失败时返回空切片
func (r *QuizRecorder) FetchPreviousAttempts(ctx context.Context) []model.QuizAttempt {
	if !r.identity.Authenticated() || r.moduleID == "" {
		return []model.QuizAttempt{}
	}

	ctx, span := tracing.Start(ctx, "QuizRecorder.FetchPreviousAttempts")
	defer span.End()

	attempts, err := r.attempts.FindByLesson(ctx, r.identity.UserID, r.moduleID, r.lessonIndex)
	if err != nil {
		span.RecordError(err)
		logger.Log.Warn("Failed to load quiz attempts",
			zap.String("userID", r.identity.UserID),
			zap.String("moduleID", r.moduleID),
			zap.Error(err))
		notifyError(r.notifier, util.MsgAttemptsLoadError)
		return []model.QuizAttempt{}
	}
	if attempts == nil {
		attempts = []model.QuizAttempt{}
	}
	return attempts
}

func (r *QuizRecorder) Answer(questionIndex int) (model.QuizAnswer, bool) {
	for _, a := range r.state.Answers {
		if a.QuestionIndex == questionIndex {
			return a, true
		}
	}
	return model.QuizAnswer{}, false
}

func (r *QuizRecorder) Answers() []model.QuizAnswer {
	out := make([]model.QuizAnswer, len(r.state.Answers))
	copy(out, r.state.Answers)
	return out
}

func (r *QuizRecorder) Submitted() bool { return r.state.Submitted }
func (r *QuizRecorder) Score() int      { return r.state.Score }

func (r *QuizRecorder) State() *RecorderState { return r.state }

func Passed(score, total int) bool {
	return total > 0 && score*100 >= PassThresholdPercent*total
}
