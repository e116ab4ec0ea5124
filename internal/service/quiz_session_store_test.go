package service

import (
	"context"
	"cyberlearn_backend/internal/model"
	"errors"
	"testing"
	"time"
)

func TestQuizSessionKey(t *testing.T) {
	if got := QuizSessionKey("u1", "web", 2); got != "quiz:session:u1:web:2" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestMemoryQuizSessionStore_RoundTripAndExpiry(t *testing.T) {
	store := NewMemoryQuizSessionStore(time.Hour)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := store.Load(ctx, "k")
	if err != nil || got != nil {
		t.Fatalf("expected miss, got %v %v", got, err)
	}

	state := &QuizSessionState{
		Current: 1,
		Recorder: RecorderState{
			Answers: []model.QuizAnswer{{QuestionIndex: 0, SelectedAnswer: "B", CorrectAnswer: "B"}},
		},
	}
	if err := store.Save(ctx, "k", state); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// 保存的是快照，后续修改不影响
	state.Current = 0

	got, err = store.Load(ctx, "k")
	if err != nil || got == nil {
		t.Fatalf("Load: %v %v", got, err)
	}
	if got.Current != 1 || len(got.Recorder.Answers) != 1 || got.Recorder.Answers[0].SelectedAnswer != "B" {
		t.Fatalf("unexpected state: %+v", got)
	}

	now = now.Add(2 * time.Hour)
	if got, _ := store.Load(ctx, "k"); got != nil {
		t.Fatalf("expected entry to expire")
	}
}

func TestNewQuizSessionStore_FallsBackToMemory(t *testing.T) {
	if _, ok := NewQuizSessionStore(nil, time.Minute).(*MemoryQuizSessionStore); !ok {
		t.Fatalf("expected memory store without redis")
	}
	if _, ok := NewLeaderboardCache(nil).(NoopLeaderboardCache); !ok {
		t.Fatalf("expected noop cache without redis")
	}
}

func TestMemoryQuizSessionStore_LockSerializesKey(t *testing.T) {
	store := NewMemoryQuizSessionStore(time.Hour)
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	// 其他 key 不受影响
	unlockOther, err := store.Lock(ctx, "other")
	if err != nil {
		t.Fatalf("Lock other: %v", err)
	}
	unlockOther()

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := store.Lock(waitCtx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second lock to wait until deadline, got %v", err)
	}

	acquired := make(chan struct{})
	go func() {
		unlock2, err := store.Lock(ctx, "k")
		if err == nil {
			unlock2()
		}
		close(acquired)
	}()

	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatalf("lock was not handed over after unlock")
	}
}

func TestQuizSessionOwner(t *testing.T) {
	tests := []struct {
		identity Identity
		want     string
	}{
		{Identity{UserID: "u1", SessionID: "s1"}, "u1"},
		{Identity{SessionID: "s1"}, "anon:s1"},
		{Identity{}, ""},
	}
	for _, tt := range tests {
		if got := quizSessionOwner(tt.identity); got != tt.want {
			t.Errorf("quizSessionOwner(%+v) = %q, want %q", tt.identity, got, tt.want)
		}
	}
}
