package service

import (
	"context"
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/internal/util"
)

type QuizPhase string

const (
	PhaseAnswering  QuizPhase = "answering"
	PhaseAnswered   QuizPhase = "answered"
	PhaseResults    QuizPhase = "results"
	PhaseComingSoon QuizPhase = "coming_soon"
)

// historyLimit 结果页最多展示的历史次数
const historyLimit = 5

// QuizSessionState 跨请求保存的答题界面状态
type QuizSessionState struct {
	Current      int           `json:"current"`
	ShowResults  bool          `json:"showResults"`
	AttemptCount int           `json:"attemptCount"`
	History      []int         `json:"history,omitempty"`
	Recorder     RecorderState `json:"recorder"`
}

type QuizSessionDeps struct {
	Attempts    AttemptStore
	Notifier    Notifier
	Identity    Identity
	ModuleID    string
	LessonIndex int
	// OnContinue 通过后点击继续时调用
	OnContinue func(ctx context.Context) error
}

type QuizSession struct {
	questions  []model.QuizQuestion
	state      *QuizSessionState
	recorder   *QuizRecorder
	deps       QuizSessionDeps
	onContinue func(ctx context.Context) error
}

func NewQuizSession(questions []model.QuizQuestion, state *QuizSessionState, deps QuizSessionDeps) *QuizSession {
	if state == nil {
		state = &QuizSessionState{}
	}
	if state.Current < 0 || state.Current >= len(questions) {
		state.Current = 0
	}

	return &QuizSession{
		questions:  questions,
		state:      state,
		recorder:   NewQuizRecorder(deps.Attempts, deps.Notifier, deps.Identity, deps.ModuleID, deps.LessonIndex, &state.Recorder),
		deps:       deps,
		onContinue: deps.OnContinue,
	}
}

func (s *QuizSession) Recorder() *QuizRecorder  { return s.recorder }
func (s *QuizSession) State() *QuizSessionState { return s.state }

func (s *QuizSession) Phase() QuizPhase {
	if len(s.questions) == 0 {
		return PhaseComingSoon
	}
	if s.state.ShowResults {
		return PhaseResults
	}
	if _, ok := s.recorder.Answer(s.state.Current); ok {
		return PhaseAnswered
	}
	return PhaseAnswering
}

// Select 已作答的题目再次选择不生效，返回原答案是否正确
func (s *QuizSession) Select(label string) (bool, error) {
	switch s.Phase() {
	case PhaseComingSoon, PhaseResults:
		return false, util.ErrTransitionNotAllowed
	case PhaseAnswered:
		prev, _ := s.recorder.Answer(s.state.Current)
		return prev.IsCorrect(), nil
	}

	q := s.questions[s.state.Current]
	if !q.HasOption(label) {
		return false, util.ErrUnknownOption
	}
	return s.recorder.RecordAnswer(s.state.Current, label, q.CorrectAnswer), nil
}

func (s *QuizSession) CanNext() bool {
	return s.Phase() == PhaseAnswered && s.state.Current < len(s.questions)-1
}

func (s *QuizSession) CanPrevious() bool {
	p := s.Phase()
	return (p == PhaseAnswering || p == PhaseAnswered) && s.state.Current > 0
}

// CanSubmit 每道题都有答案时才允许提交
func (s *QuizSession) CanSubmit() bool {
	p := s.Phase()
	if p != PhaseAnswering && p != PhaseAnswered {
		return false
	}
	for i := range s.questions {
		if _, ok := s.recorder.Answer(i); !ok {
			return false
		}
	}
	return true
}

// answeredCount 只统计当前题目范围内的答案，题库变更后旧会话里多出的答案不计
func (s *QuizSession) answeredCount() int {
	n := 0
	for _, a := range s.recorder.State().Answers {
		if a.QuestionIndex >= 0 && a.QuestionIndex < len(s.questions) {
			n++
		}
	}
	return n
}

func (s *QuizSession) Next() error {
	if !s.CanNext() {
		return util.ErrTransitionNotAllowed
	}
	s.state.Current++
	return nil
}

func (s *QuizSession) Previous() error {
	if !s.CanPrevious() {
		return util.ErrTransitionNotAllowed
	}
	s.state.Current--
	return nil
}

// Submit 未登录时直接交给 recorder 给出登录提示；持久化失败时停留在答题状态，返回 false
func (s *QuizSession) Submit(ctx context.Context) (bool, error) {
	if !s.deps.Identity.Authenticated() {
		return s.recorder.SubmitQuiz(ctx, len(s.questions)), nil
	}
	if !s.CanSubmit() {
		return false, util.ErrTransitionNotAllowed
	}
	if !s.recorder.SubmitQuiz(ctx, len(s.questions)) {
		return false, nil
	}

	s.state.ShowResults = true
	attempts := s.recorder.FetchPreviousAttempts(ctx)
	s.state.AttemptCount = len(attempts)
	s.state.History = s.state.History[:0]
	for i, a := range attempts {
		if i >= historyLimit {
			break
		}
		s.state.History = append(s.state.History, a.Percentage())
	}
	return true, nil
}

func (s *QuizSession) Retry() error {
	if s.Phase() != PhaseResults {
		return util.ErrTransitionNotAllowed
	}
	s.recorder.ResetQuiz()
	s.state.Current = 0
	s.state.ShowResults = false
	s.state.AttemptCount = 0
	s.state.History = nil
	return nil
}

func (s *QuizSession) Passed() bool {
	st := s.recorder.State()
	return st.Submitted && Passed(st.Score, st.TotalQuestions)
}

// Continue 只在通过后可用，本身不改变状态
func (s *QuizSession) Continue(ctx context.Context) error {
	if s.Phase() != PhaseResults || !s.Passed() {
		return util.ErrTransitionNotAllowed
	}
	if s.onContinue == nil {
		return nil
	}
	return s.onContinue(ctx)
}

type QuestionView struct {
	Index          int                `json:"index"`
	Question       string             `json:"question"`
	Options        []model.QuizOption `json:"options"`
	SelectedAnswer string             `json:"selectedAnswer,omitempty"`
	IsCorrect      *bool              `json:"isCorrect,omitempty"`
	CorrectAnswer  string             `json:"correctAnswer,omitempty"`
	Explanation    string             `json:"explanation,omitempty"`
}

type QuizResultsView struct {
	Score          int   `json:"score"`
	TotalQuestions int   `json:"totalQuestions"`
	Percentage     int   `json:"percentage"`
	Passed         bool  `json:"passed"`
	History        []int `json:"history,omitempty"`
	CanRetry       bool  `json:"canRetry"`
	CanContinue    bool  `json:"canContinue"`
}

type QuizView struct {
	Phase          QuizPhase        `json:"phase"`
	ModuleID       string           `json:"moduleId"`
	LessonIndex    int              `json:"lessonIndex"`
	TotalQuestions int              `json:"totalQuestions"`
	CurrentIndex   int              `json:"currentIndex"`
	AnsweredCount  int              `json:"answeredCount"`
	CanPrevious    bool             `json:"canPrevious"`
	CanNext        bool             `json:"canNext"`
	CanSubmit      bool             `json:"canSubmit"`
	Question       *QuestionView    `json:"question,omitempty"`
	Results        *QuizResultsView `json:"results,omitempty"`
}

// View 作答前不暴露正确答案和解析
func (s *QuizSession) View() *QuizView {
	phase := s.Phase()
	v := &QuizView{
		Phase:          phase,
		ModuleID:       s.deps.ModuleID,
		LessonIndex:    s.deps.LessonIndex,
		TotalQuestions: len(s.questions),
		CurrentIndex:   s.state.Current,
		AnsweredCount:  s.answeredCount(),
		CanPrevious:    s.CanPrevious(),
		CanNext:        s.CanNext(),
		CanSubmit:      s.CanSubmit(),
	}

	switch phase {
	case PhaseComingSoon:
		v.CurrentIndex = 0
	case PhaseResults:
		st := s.recorder.State()
		passed := s.Passed()
		res := &QuizResultsView{
			Score:          st.Score,
			TotalQuestions: st.TotalQuestions,
			Percentage:     model.Percentage(st.Score, st.TotalQuestions),
			Passed:         passed,
			CanRetry:       true,
			CanContinue:    passed,
		}
		if s.state.AttemptCount > 1 {
			res.History = append([]int(nil), s.state.History...)
		}
		v.Results = res
	default:
		q := s.questions[s.state.Current]
		qv := &QuestionView{
			Index:    s.state.Current,
			Question: q.Question,
			Options:  q.Options,
		}
		if a, ok := s.recorder.Answer(s.state.Current); ok {
			correct := a.IsCorrect()
			qv.SelectedAnswer = a.SelectedAnswer
			qv.IsCorrect = &correct
			qv.CorrectAnswer = q.CorrectAnswer
			qv.Explanation = q.Explanation
		}
		v.Question = qv
	}
	return v
}
