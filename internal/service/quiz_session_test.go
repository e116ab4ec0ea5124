package service

import (
	"context"
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/internal/testutil"
	"cyberlearn_backend/internal/util"
	"errors"
	"testing"
)

func twoQuestions() []model.QuizQuestion {
	return []model.QuizQuestion{
		testutil.Question("first", "B"),
		testutil.Question("second", "C"),
	}
}

func newSession(questions []model.QuizQuestion, store AttemptStore, identity Identity, onContinue func(context.Context) error) (*QuizSession, *NoticeBuffer) {
	notices := NewNoticeBuffer()
	return NewQuizSession(questions, nil, QuizSessionDeps{
		Attempts:    store,
		Notifier:    notices,
		Identity:    identity,
		ModuleID:    "m1",
		LessonIndex: 0,
		OnContinue:  onContinue,
	}), notices
}

func TestQuizSession_FailingRunNeedsRetry(t *testing.T) {
	store := &fakeAttemptStore{}
	s, _ := newSession(twoQuestions(), store, alice, nil)
	ctx := context.Background()

	if s.Phase() != PhaseAnswering {
		t.Fatalf("expected answering, got %s", s.Phase())
	}
	if correct, err := s.Select("B"); err != nil || !correct {
		t.Fatalf("Select: %v %v", correct, err)
	}
	if s.Phase() != PhaseAnswered {
		t.Fatalf("expected answered, got %s", s.Phase())
	}
	if v := s.View(); v.Question.Explanation == "" || v.Question.CorrectAnswer != "B" {
		t.Fatalf("expected explanation revealed after answering: %+v", v.Question)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if correct, err := s.Select("A"); err != nil || correct {
		t.Fatalf("Select: %v %v", correct, err)
	}

	ok, err := s.Submit(ctx)
	if err != nil || !ok {
		t.Fatalf("Submit: %v %v", ok, err)
	}
	v := s.View()
	if v.Phase != PhaseResults || v.Results.Score != 1 || v.Results.TotalQuestions != 2 || v.Results.Percentage != 50 {
		t.Fatalf("unexpected results: %+v", v.Results)
	}
	if v.Results.Passed || v.Results.CanContinue {
		t.Fatalf("expected failing result")
	}
	if len(v.Results.History) != 0 {
		t.Fatalf("expected no history strip for a single attempt")
	}
	if store.count() != 1 {
		t.Fatalf("expected one attempt, got %d", store.count())
	}
	if err := s.Continue(ctx); !errors.Is(err, util.ErrTransitionNotAllowed) {
		t.Fatalf("expected continue to be refused, got %v", err)
	}
}

func TestQuizSession_GatingErrors(t *testing.T) {
	s, _ := newSession(twoQuestions(), &fakeAttemptStore{}, alice, nil)
	ctx := context.Background()

	if err := s.Next(); !errors.Is(err, util.ErrTransitionNotAllowed) {
		t.Fatalf("Next before answering: %v", err)
	}
	if err := s.Previous(); !errors.Is(err, util.ErrTransitionNotAllowed) {
		t.Fatalf("Previous at first question: %v", err)
	}
	if _, err := s.Submit(ctx); !errors.Is(err, util.ErrTransitionNotAllowed) {
		t.Fatalf("Submit with unanswered questions: %v", err)
	}
	if err := s.Retry(); !errors.Is(err, util.ErrTransitionNotAllowed) {
		t.Fatalf("Retry outside results: %v", err)
	}
	if _, err := s.Select("Z"); !errors.Is(err, util.ErrUnknownOption) {
		t.Fatalf("unknown option: %v", err)
	}

	s.Select("B")
	s.Next()
	if err := s.Next(); !errors.Is(err, util.ErrTransitionNotAllowed) {
		t.Fatalf("Next past last question: %v", err)
	}
	if s.CanSubmit() {
		t.Fatalf("expected submit disabled with one unanswered question")
	}
}

func TestQuizSession_AnsweredQuestionIsLocked(t *testing.T) {
	s, _ := newSession(twoQuestions(), &fakeAttemptStore{}, alice, nil)

	s.Select("B")
	correct, err := s.Select("A")
	if err != nil || !correct {
		t.Fatalf("expected reselection to replay previous answer, got %v %v", correct, err)
	}
	if a, _ := s.Recorder().Answer(0); a.SelectedAnswer != "B" {
		t.Fatalf("expected answer to stay B, got %s", a.SelectedAnswer)
	}

	s.Next()
	s.Select("C")
	if err := s.Previous(); err != nil {
		t.Fatalf("Previous: %v", err)
	}
	v := s.View()
	if v.Phase != PhaseAnswered || v.Question.SelectedAnswer != "B" {
		t.Fatalf("expected previous answer restored, got %+v", v.Question)
	}
}

func TestQuizSession_PassContinueAndHistory(t *testing.T) {
	store := &fakeAttemptStore{}
	continued := 0
	s, _ := newSession(twoQuestions(), store, alice, func(context.Context) error {
		continued++
		return nil
	})
	ctx := context.Background()

	// 第一次不及格
	s.Select("A")
	s.Next()
	s.Select("A")
	s.Submit(ctx)
	if err := s.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if s.Phase() != PhaseAnswering || s.View().CurrentIndex != 0 || s.View().AnsweredCount != 0 {
		t.Fatalf("expected fresh first question after retry")
	}

	s.Select("B")
	s.Next()
	s.Select("C")
	if ok, err := s.Submit(ctx); !ok || err != nil {
		t.Fatalf("Submit: %v %v", ok, err)
	}

	v := s.View()
	if !v.Results.Passed || !v.Results.CanContinue || v.Results.Percentage != 100 {
		t.Fatalf("expected pass: %+v", v.Results)
	}
	if len(v.Results.History) != 2 || v.Results.History[0] != 100 || v.Results.History[1] != 0 {
		t.Fatalf("expected history newest first, got %v", v.Results.History)
	}
	if err := s.Continue(ctx); err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if continued != 1 || s.Phase() != PhaseResults {
		t.Fatalf("expected callback once without state change")
	}
}

func TestQuizSession_HistoryCappedAtFive(t *testing.T) {
	store := &fakeAttemptStore{}
	s, _ := newSession([]model.QuizQuestion{testutil.Question("only", "A")}, store, alice, nil)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		s.Select("A")
		s.Submit(ctx)
		if i < 6 {
			s.Retry()
		}
	}
	if got := len(s.View().Results.History); got != 5 {
		t.Fatalf("expected 5 history entries, got %d", got)
	}
	if s.State().AttemptCount != 7 {
		t.Fatalf("expected attempt count 7, got %d", s.State().AttemptCount)
	}
}

func TestQuizSession_EmptyQuizIsComingSoon(t *testing.T) {
	s, _ := newSession(nil, &fakeAttemptStore{}, alice, nil)

	if s.Phase() != PhaseComingSoon {
		t.Fatalf("expected coming soon, got %s", s.Phase())
	}
	if _, err := s.Select("A"); !errors.Is(err, util.ErrTransitionNotAllowed) {
		t.Fatalf("expected select refused, got %v", err)
	}
	v := s.View()
	if v.Question != nil || v.Results != nil || v.CanSubmit {
		t.Fatalf("unexpected view: %+v", v)
	}
}

func TestQuizSession_AnonymousSubmitStaysAnswering(t *testing.T) {
	store := &fakeAttemptStore{}
	s, notices := newSession([]model.QuizQuestion{testutil.Question("only", "A")}, store, Identity{}, nil)

	s.Select("A")
	ok, err := s.Submit(context.Background())
	if err != nil || ok {
		t.Fatalf("expected submit to return false without error, got %v %v", ok, err)
	}
	if s.Phase() != PhaseAnswered || store.count() != 0 {
		t.Fatalf("expected no results and no attempts")
	}
	if !hasNotice(notices.Notices(), NoticeInfo, util.MsgSignInRequired) {
		t.Fatalf("expected sign-in notice")
	}
}

func TestQuizSession_ViewHidesAnswerBeforeSelection(t *testing.T) {
	s, _ := newSession(twoQuestions(), &fakeAttemptStore{}, alice, nil)
	v := s.View()
	if v.Question == nil || v.Question.CorrectAnswer != "" || v.Question.Explanation != "" || v.Question.IsCorrect != nil {
		t.Fatalf("expected answer hidden, got %+v", v.Question)
	}
	if len(v.Question.Options) != 4 {
		t.Fatalf("expected options in view")
	}
}

func TestQuizSession_AnonymousSubmitBeforeAnsweringAsksToSignIn(t *testing.T) {
	store := &fakeAttemptStore{}
	s, notices := newSession(twoQuestions(), store, Identity{SessionID: "guest"}, nil)

	ok, err := s.Submit(context.Background())
	if err != nil || ok {
		t.Fatalf("expected false without error, got %v %v", ok, err)
	}
	if !hasNotice(notices.Notices(), NoticeInfo, util.MsgSignInRequired) {
		t.Fatalf("expected sign-in notice, got %+v", notices.Notices())
	}
	if store.count() != 0 || s.Phase() != PhaseAnswering {
		t.Fatalf("expected nothing recorded")
	}
}

func TestQuizSession_AnsweredCountIgnoresStaleAnswers(t *testing.T) {
	state := &QuizSessionState{
		Recorder: RecorderState{Answers: []model.QuizAnswer{
			{QuestionIndex: 0, SelectedAnswer: "B", CorrectAnswer: "B"},
			{QuestionIndex: 4, SelectedAnswer: "A", CorrectAnswer: "A"},
		}},
	}
	s := NewQuizSession(twoQuestions(), state, QuizSessionDeps{
		Attempts: &fakeAttemptStore{},
		Identity: alice,
		ModuleID: "m1",
	})

	v := s.View()
	if v.AnsweredCount != 1 {
		t.Fatalf("expected only in-range answers counted, got %d", v.AnsweredCount)
	}
	if v.CanSubmit {
		t.Fatalf("second question is unanswered, submit must stay disabled")
	}
}
