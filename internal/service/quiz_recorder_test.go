package service

import (
	"context"
	"cyberlearn_backend/internal/model"
	"cyberlearn_backend/internal/util"
	"testing"
	"time"
)

func newRecorder(store AttemptStore, identity Identity) (*QuizRecorder, *NoticeBuffer) {
	notices := NewNoticeBuffer()
	return NewQuizRecorder(store, notices, identity, "m1", 0, nil), notices
}

func TestQuizRecorder_RecordAnswerReplacesByIndex(t *testing.T) {
	r, _ := newRecorder(&fakeAttemptStore{}, alice)

	if r.RecordAnswer(1, "A", "B") {
		t.Fatalf("expected incorrect")
	}
	if !r.RecordAnswer(0, "C", "C") {
		t.Fatalf("expected correct")
	}
	if !r.RecordAnswer(1, "B", "B") {
		t.Fatalf("expected correct after replacing")
	}

	answers := r.Answers()
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	if answers[0].QuestionIndex != 0 || answers[1].QuestionIndex != 1 || answers[1].SelectedAnswer != "B" {
		t.Fatalf("unexpected answers: %+v", answers)
	}
}

func TestQuizRecorder_SubmitScoresAndPersists(t *testing.T) {
	store := &fakeAttemptStore{}
	r, notices := newRecorder(store, alice)
	fixed := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	r.Now = func() time.Time { return fixed }

	r.RecordAnswer(0, "B", "B")
	r.RecordAnswer(1, "A", "C")

	if !r.SubmitQuiz(context.Background(), 2) {
		t.Fatalf("expected submit to succeed")
	}
	if !r.Submitted() || r.Score() != 1 {
		t.Fatalf("unexpected state: submitted=%v score=%d", r.Submitted(), r.Score())
	}
	if store.count() != 1 {
		t.Fatalf("expected one attempt, got %d", store.count())
	}

	a := store.attempts[0]
	if a.Score != 1 || a.TotalQuestions != 2 || len(a.Answers) != 2 || !a.CompletedAt.Equal(fixed) {
		t.Fatalf("unexpected attempt: %+v", a)
	}
	if a.Percentage() != 50 || Passed(a.Score, a.TotalQuestions) {
		t.Fatalf("expected 50%% and not passed")
	}
	if n := notices.Notices(); len(n) != 1 || n[0].Level != NoticeInfo {
		t.Fatalf("expected one fail notice, got %+v", n)
	}
}

func TestQuizRecorder_ScoreIsCappedToTotal(t *testing.T) {
	store := &fakeAttemptStore{}
	r, _ := newRecorder(store, alice)

	r.RecordAnswer(0, "A", "A")
	r.RecordAnswer(1, "A", "A")
	r.RecordAnswer(5, "A", "A")

	if !r.SubmitQuiz(context.Background(), 2) {
		t.Fatalf("expected submit to succeed")
	}
	if r.Score() != 2 || len(store.attempts[0].Answers) != 2 {
		t.Fatalf("expected out-of-range answers ignored, score=%d", r.Score())
	}
}

func TestQuizRecorder_SubmitRequiresIdentity(t *testing.T) {
	store := &fakeAttemptStore{}
	r, notices := newRecorder(store, Identity{})

	r.RecordAnswer(0, "A", "A")
	if r.SubmitQuiz(context.Background(), 1) {
		t.Fatalf("expected false for anonymous submit")
	}
	if store.count() != 0 || r.Submitted() {
		t.Fatalf("expected nothing persisted")
	}
	if !hasNotice(notices.Notices(), NoticeInfo, util.MsgSignInRequired) {
		t.Fatalf("expected sign-in notice")
	}

	noModule := NewQuizRecorder(store, notices, alice, "", 0, nil)
	if noModule.SubmitQuiz(context.Background(), 1) {
		t.Fatalf("expected false without module")
	}
}

func TestQuizRecorder_DoubleSubmitGuardAndReset(t *testing.T) {
	store := &fakeAttemptStore{}
	r, notices := newRecorder(store, alice)
	ctx := context.Background()

	r.RecordAnswer(0, "A", "A")
	if !r.SubmitQuiz(ctx, 1) {
		t.Fatalf("first submit failed")
	}
	if r.SubmitQuiz(ctx, 1) {
		t.Fatalf("expected second submit to be refused")
	}
	if !hasNotice(notices.Notices(), NoticeInfo, util.MsgQuizAlreadySent) {
		t.Fatalf("expected already-submitted notice")
	}

	r.ResetQuiz()
	if r.Submitted() || r.Score() != 0 || len(r.Answers()) != 0 {
		t.Fatalf("expected clean state after reset")
	}
	r.RecordAnswer(0, "B", "A")
	if !r.SubmitQuiz(ctx, 1) {
		t.Fatalf("resubmit failed")
	}
	if store.count() != 2 {
		t.Fatalf("expected 2 attempts, got %d", store.count())
	}
}

func TestQuizRecorder_SubmitFailureKeepsInProgress(t *testing.T) {
	store := &fakeAttemptStore{failCreate: true}
	r, notices := newRecorder(store, alice)

	r.RecordAnswer(0, "A", "A")
	if r.SubmitQuiz(context.Background(), 1) {
		t.Fatalf("expected failure")
	}
	if r.Submitted() || len(r.Answers()) != 1 {
		t.Fatalf("expected state to stay in progress")
	}
	if !hasNotice(notices.Notices(), NoticeError, util.MsgQuizSaveError) {
		t.Fatalf("expected save error notice")
	}
}

func TestQuizRecorder_EmptyQuizRefused(t *testing.T) {
	r, notices := newRecorder(&fakeAttemptStore{}, alice)
	if r.SubmitQuiz(context.Background(), 0) {
		t.Fatalf("expected empty quiz to be refused")
	}
	if !hasNotice(notices.Notices(), NoticeInfo, util.MsgQuizEmpty) {
		t.Fatalf("expected empty quiz notice")
	}
}

func TestQuizRecorder_FetchPreviousAttempts(t *testing.T) {
	store := &fakeAttemptStore{}
	ctx := context.Background()

	anon, _ := newRecorder(store, Identity{})
	if got := anon.FetchPreviousAttempts(ctx); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}

	r, _ := newRecorder(store, alice)
	for i := 0; i < 3; i++ {
		r.RecordAnswer(0, "A", "A")
		r.SubmitQuiz(ctx, 1)
		r.ResetQuiz()
	}
	store.attempts = append(store.attempts, model.QuizAttempt{UserID: "bob", ModuleID: "m1"})

	if got := r.FetchPreviousAttempts(ctx); len(got) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(got))
	}

	store.failFind = true
	failing, notices := newRecorder(store, alice)
	if got := failing.FetchPreviousAttempts(ctx); len(got) != 0 {
		t.Fatalf("expected empty on failure")
	}
	if !hasNotice(notices.Notices(), NoticeError, util.MsgAttemptsLoadError) {
		t.Fatalf("expected load error notice")
	}
}

func TestPassedThreshold(t *testing.T) {
	cases := []struct {
		score, total int
		want         bool
	}{
		{3, 4, true},
		{2, 3, false},
		{7, 10, true},
		{6, 10, false},
		{0, 0, false},
		{1, 1, true},
	}
	for _, c := range cases {
		if got := Passed(c.score, c.total); got != c.want {
			t.Errorf("Passed(%d, %d) = %v, want %v", c.score, c.total, got, c.want)
		}
	}
}
