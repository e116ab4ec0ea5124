package service

import (
	"context"
	"cyberlearn_backend/internal/model"
	"errors"
	"sort"
	"sync"
	"time"
)

var errStoreDown = errors.New("store unavailable")

type progressKey struct {
	userID, moduleID string
	lessonIndex      int
}

// fakeProgressStore 模拟 upsert 语义，failWrites 为 true 时写入失败
type fakeProgressStore struct {
	mu         sync.Mutex
	rows       map[progressKey]model.ProgressRecord
	failWrites bool
	failReads  bool
	writes     int
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{rows: make(map[progressKey]model.ProgressRecord)}
}

func (f *fakeProgressStore) FindByModule(ctx context.Context, userID, moduleID string) ([]model.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failReads {
		return nil, errStoreDown
	}
	var out []model.ProgressRecord
	for k, r := range f.rows {
		if k.userID == userID && k.moduleID == moduleID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonIndex < out[j].LessonIndex })
	return out, nil
}

func (f *fakeProgressStore) UpsertCompletion(ctx context.Context, rec *model.ProgressRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWrites {
		return errStoreDown
	}
	k := progressKey{rec.UserID, rec.ModuleID, rec.LessonIndex}
	row, ok := f.rows[k]
	if !ok {
		row = *rec
	}
	row.Completed = rec.Completed
	row.CompletedAt = rec.CompletedAt
	f.rows[k] = row
	return nil
}

func (f *fakeProgressStore) UpsertVideoProgress(ctx context.Context, rec *model.ProgressRecord, resetCompletion bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWrites {
		return errStoreDown
	}
	k := progressKey{rec.UserID, rec.ModuleID, rec.LessonIndex}
	row, ok := f.rows[k]
	if !ok {
		row = *rec
	}
	row.VideoProgressSeconds = rec.VideoProgressSeconds
	if resetCompletion {
		row.Completed = rec.Completed
		row.CompletedAt = rec.CompletedAt
	}
	f.rows[k] = row
	return nil
}

func (f *fakeProgressStore) rowCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeAttemptStore struct {
	mu         sync.Mutex
	attempts   []model.QuizAttempt
	failCreate bool
	failFind   bool
	// delay 放慢 Create，用于制造并发提交的竞争窗口
	delay time.Duration
}

func (f *fakeAttemptStore) Create(ctx context.Context, attempt *model.QuizAttempt) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errStoreDown
	}
	attempt.ID = model.GenerateUUID()
	f.attempts = append(f.attempts, *attempt)
	return nil
}

func (f *fakeAttemptStore) FindByLesson(ctx context.Context, userID, moduleID string, lessonIndex int) ([]model.QuizAttempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFind {
		return nil, errStoreDown
	}
	var out []model.QuizAttempt
	for i := len(f.attempts) - 1; i >= 0; i-- {
		a := f.attempts[i]
		if a.UserID == userID && a.ModuleID == moduleID && a.LessonIndex == lessonIndex {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttemptStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

func hasNotice(notices []Notice, level NoticeLevel, msg string) bool {
	for _, n := range notices {
		if n.Level == level && n.Message == msg {
			return true
		}
	}
	return false
}

var alice = Identity{UserID: "alice"}
