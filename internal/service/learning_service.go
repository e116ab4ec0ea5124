package service

import (
	"context"
	"cyberlearn_backend/internal/config"
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/internal/repository"
	"cyberlearn_backend/internal/util"
	"cyberlearn_backend/pkg/logger"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LearningService 按请求组装进度跟踪器和答题会话
type LearningService struct {
	ModuleRepo *repository.ModuleRepository
	Progress   ProgressStore
	Attempts   AttemptStore
	Sessions   QuizSessionStore

	mu          sync.RWMutex
	progressCfg config.ProgressConfig
}

func NewLearningService(
	moduleRepo *repository.ModuleRepository,
	progress ProgressStore,
	attempts AttemptStore,
	sessions QuizSessionStore,
	progressCfg config.ProgressConfig,
) *LearningService {
	return &LearningService{
		ModuleRepo:  moduleRepo,
		Progress:    progress,
		Attempts:    attempts,
		Sessions:    sessions,
		progressCfg: progressCfg,
	}
}

func (s *LearningService) UpdateConfig(cfg config.ProgressConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progressCfg = cfg
}

type ModuleSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Order       int    `json:"order"`
	LessonCount int    `json:"lessonCount"`
}

type LessonSummary struct {
	Index                int    `json:"index"`
	Title                string `json:"title"`
	VideoURL             string `json:"videoUrl,omitempty"`
	DurationSeconds      int    `json:"durationSeconds,omitempty"`
	QuestionCount        int    `json:"questionCount"`
	Completed            bool   `json:"completed"`
	VideoProgressSeconds int    `json:"videoProgressSeconds"`
}

type ModuleProgress struct {
	ModuleID       string                 `json:"moduleId"`
	TotalLessons   int                    `json:"totalLessons"`
	CompletedCount int                    `json:"completedCount"`
	Percent        int                    `json:"percent"`
	ResumeLesson   int                    `json:"resumeLesson"`
	Records        []model.ProgressRecord `json:"records"`
}

type ModuleDetail struct {
	ModuleSummary
	Lessons  []LessonSummary `json:"lessons"`
	Progress ModuleProgress  `json:"progress"`
}

type AttemptAnswer struct {
	model.QuizAnswer
	IsCorrect bool `json:"isCorrect"`
}

type AttemptView struct {
	ID             string          `json:"id"`
	Score          int             `json:"score"`
	TotalQuestions int             `json:"totalQuestions"`
	Percentage     int             `json:"percentage"`
	Passed         bool            `json:"passed"`
	CompletedAt    time.Time       `json:"completedAt"`
	Answers        []AttemptAnswer `json:"answers"`
}

func summarize(m *model.LearningModule) ModuleSummary {
	return ModuleSummary{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Order:       m.Order,
		LessonCount: len(m.Lessons),
	}
}

func (s *LearningService) ListModules(ctx context.Context) ([]ModuleSummary, error) {
	modules, err := s.ModuleRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	out := make([]ModuleSummary, 0, len(modules))
	for i := range modules {
		out = append(out, summarize(&modules[i]))
	}
	return out, nil
}

func (s *LearningService) module(ctx context.Context, moduleID string) (*model.LearningModule, error) {
	m, err := s.ModuleRepo.FindByID(ctx, moduleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrModuleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find module %s: %w", moduleID, err)
	}
	return m, nil
}

func (s *LearningService) lesson(ctx context.Context, moduleID string, lessonIndex int) (*model.LearningModule, error) {
	m, err := s.module(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	if !m.HasLesson(lessonIndex) {
		return nil, util.ErrLessonNotFound
	}
	return m, nil
}

func (s *LearningService) newTracker(identity Identity, moduleID string, notifier Notifier) *ProgressTracker {
	s.mu.RLock()
	opts := ProgressOptions{VideoResetsCompletion: s.progressCfg.VideoResetsCompletion}
	s.mu.RUnlock()
	return NewProgressTracker(s.Progress, notifier, identity, moduleID, opts)
}

// loadedTracker 校验课时并加载该模块的进度
func (s *LearningService) loadedTracker(ctx context.Context, identity Identity, moduleID string, lessonIndex int, notifier Notifier) (*ProgressTracker, error) {
	if _, err := s.lesson(ctx, moduleID, lessonIndex); err != nil {
		return nil, err
	}
	tracker := s.newTracker(identity, moduleID, notifier)
	if _, err := tracker.LoadForModule(ctx); err != nil {
		return nil, err
	}
	return tracker, nil
}

func (s *LearningService) GetModule(ctx context.Context, identity Identity, moduleID string, notifier Notifier) (*ModuleDetail, error) {
	m, err := s.module(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	tracker := s.newTracker(identity, moduleID, notifier)
	if _, err := tracker.LoadForModule(ctx); err != nil {
		return nil, err
	}

	lessons := make([]LessonSummary, 0, len(m.Lessons))
	for i, l := range m.Lessons {
		lessons = append(lessons, LessonSummary{
			Index:                i,
			Title:                l.Title,
			VideoURL:             l.VideoURL,
			DurationSeconds:      l.DurationSeconds,
			QuestionCount:        len(l.Quiz),
			Completed:            tracker.IsLessonCompleted(i),
			VideoProgressSeconds: tracker.GetVideoProgress(i),
		})
	}

	return &ModuleDetail{
		ModuleSummary: summarize(m),
		Lessons:       lessons,
		Progress:      progressOf(tracker, m),
	}, nil
}

func (s *LearningService) GetModuleProgress(ctx context.Context, identity Identity, moduleID string, notifier Notifier) (*ModuleProgress, error) {
	m, err := s.module(ctx, moduleID)
	if err != nil {
		return nil, err
	}

	tracker := s.newTracker(identity, moduleID, notifier)
	if _, err := tracker.LoadForModule(ctx); err != nil {
		return nil, err
	}
	p := progressOf(tracker, m)
	return &p, nil
}

func progressOf(t *ProgressTracker, m *model.LearningModule) ModuleProgress {
	total := len(m.Lessons)
	return ModuleProgress{
		ModuleID:       m.ID,
		TotalLessons:   total,
		CompletedCount: t.GetCompletedCount(),
		Percent:        t.CompletionPercent(total),
		ResumeLesson:   t.ResumeLesson(total),
		Records:        t.Records(),
	}
}

func (s *LearningService) MarkLessonComplete(ctx context.Context, identity Identity, moduleID string, lessonIndex int, notifier Notifier) (bool, error) {
	if _, err := s.lesson(ctx, moduleID, lessonIndex); err != nil {
		return false, err
	}
	tracker := s.newTracker(identity, moduleID, notifier)
	return tracker.MarkLessonComplete(ctx, lessonIndex), nil
}

func (s *LearningService) UpdateVideoProgress(ctx context.Context, identity Identity, moduleID string, lessonIndex, seconds int, notifier Notifier) error {
	tracker, err := s.loadedTracker(ctx, identity, moduleID, lessonIndex, notifier)
	if err != nil {
		return err
	}
	tracker.UpdateVideoProgress(ctx, lessonIndex, seconds)
	return nil
}

func (s *LearningService) GetVideoProgress(ctx context.Context, identity Identity, moduleID string, lessonIndex int, notifier Notifier) (int, error) {
	tracker, err := s.loadedTracker(ctx, identity, moduleID, lessonIndex, notifier)
	if err != nil {
		return 0, err
	}
	return tracker.GetVideoProgress(lessonIndex), nil
}

// QuizAction 在加载好的会话上执行一次操作
type QuizAction func(ctx context.Context, session *QuizSession) error

// quizSessionLockWait 等待同一会话上其他请求的上限
const quizSessionLockWait = 5 * time.Second

// RunQuiz 同一会话的请求串行执行，操作成功后保存状态。
// 既没有登录也没有会话 id 时每次都是新会话
func (s *LearningService) RunQuiz(ctx context.Context, identity Identity, moduleID string, lessonIndex int, notifier Notifier, action QuizAction) (*QuizView, error) {
	m, err := s.lesson(ctx, moduleID, lessonIndex)
	if err != nil {
		return nil, err
	}

	var (
		key   string
		state *QuizSessionState
	)
	if owner := quizSessionOwner(identity); owner != "" {
		key = QuizSessionKey(owner, moduleID, lessonIndex)

		lockCtx, cancel := context.WithTimeout(ctx, quizSessionLockWait)
		unlock, err := s.Sessions.Lock(lockCtx, key)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("lock quiz session %s: %w", key, err)
		}
		defer unlock()

		state, err = s.Sessions.Load(ctx, key)
		if err != nil {
			logger.Log.Warn("Failed to load quiz session, starting fresh",
				zap.String("key", key),
				zap.Error(err))
			state = nil
		}
	}

	session := NewQuizSession(m.Lessons[lessonIndex].Quiz, state, QuizSessionDeps{
		Attempts:    s.Attempts,
		Notifier:    notifier,
		Identity:    identity,
		ModuleID:    moduleID,
		LessonIndex: lessonIndex,
		OnContinue: func(ctx context.Context) error {
			s.newTracker(identity, moduleID, notifier).MarkLessonComplete(ctx, lessonIndex)
			return nil
		},
	})

	if action != nil {
		if err := action(ctx, session); err != nil {
			return nil, err
		}
	}

	if key != "" {
		if err := s.Sessions.Save(ctx, key, session.State()); err != nil {
			logger.Log.Error("Failed to save quiz session",
				zap.String("key", key),
				zap.Error(err))
		}
	}
	return session.View(), nil
}

func (s *LearningService) PreviousAttempts(ctx context.Context, identity Identity, moduleID string, lessonIndex int, notifier Notifier) ([]AttemptView, error) {
	if _, err := s.lesson(ctx, moduleID, lessonIndex); err != nil {
		return nil, err
	}

	recorder := NewQuizRecorder(s.Attempts, notifier, identity, moduleID, lessonIndex, nil)
	attempts := recorder.FetchPreviousAttempts(ctx)

	out := make([]AttemptView, 0, len(attempts))
	for i := range attempts {
		a := &attempts[i]
		answers := make([]AttemptAnswer, 0, len(a.Answers))
		for _, ans := range a.Answers {
			answers = append(answers, AttemptAnswer{QuizAnswer: ans, IsCorrect: ans.IsCorrect()})
		}
		out = append(out, AttemptView{
			ID:             a.ID,
			Score:          a.Score,
			TotalQuestions: a.TotalQuestions,
			Percentage:     a.Percentage(),
			Passed:         Passed(a.Score, a.TotalQuestions),
			CompletedAt:    a.CompletedAt,
			Answers:        answers,
		})
	}
	return out, nil
}
