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
	"sync"
	"time"

	"go.uber.org/zap"
)

type ProgressStore interface {
	FindByModule(ctx context.Context, userID, moduleID string) ([]model.ProgressRecord, error)
	UpsertCompletion(ctx context.Context, rec *model.ProgressRecord) error
	UpsertVideoProgress(ctx context.Context, rec *model.ProgressRecord, resetCompletion bool) error
}

type ProgressOptions struct {
	VideoResetsCompletion bool
	Now                   func() time.Time
}

// ProgressTracker 某用户在某模块内的进度，写操作先更新本地缓存再持久化，失败时回滚
type ProgressTracker struct {
	store    ProgressStore
	notifier Notifier
	identity Identity
	moduleID string
	opts     ProgressOptions

	mu      sync.RWMutex
	records map[int]model.ProgressRecord
}

func NewProgressTracker(store ProgressStore, notifier Notifier, identity Identity, moduleID string, opts ProgressOptions) *ProgressTracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ProgressTracker{
		store:    store,
		notifier: notifier,
		identity: identity,
		moduleID: moduleID,
		opts:     opts,
		records:  make(map[int]model.ProgressRecord),
	}
}

// LoadForModule 匿名用户返回空结果且不访问存储
func (t *ProgressTracker) LoadForModule(ctx context.Context) ([]model.ProgressRecord, error) {
	if !t.identity.Authenticated() {
		t.mu.Lock()
		t.records = make(map[int]model.ProgressRecord)
		t.mu.Unlock()
		return []model.ProgressRecord{}, nil
	}

	ctx, span := tracing.Start(ctx, "ProgressTracker.LoadForModule")
	defer span.End()

	records, err := t.store.FindByModule(ctx, t.identity.UserID, t.moduleID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load progress for module %s: %w", t.moduleID, err)
	}

	cache := make(map[int]model.ProgressRecord, len(records))
	for _, r := range records {
		cache[r.LessonIndex] = r
	}
	t.mu.Lock()
	t.records = cache
	t.mu.Unlock()

	return records, nil
}

func (t *ProgressTracker) MarkLessonComplete(ctx context.Context, lessonIndex int) bool {
	if !t.identity.Authenticated() {
		notifyInfo(t.notifier, util.MsgSignInRequired)
		monitoring.LessonCompletions.WithLabelValues("unauthenticated").Inc()
		return false
	}

	ctx, span := tracing.Start(ctx, "ProgressTracker.MarkLessonComplete")
	defer span.End()

	now := t.opts.Now().UTC()
	prev, had, rec := t.stage(lessonIndex, func(rec *model.ProgressRecord) {
		rec.Completed = true
		rec.CompletedAt = &now
	})

	if err := t.store.UpsertCompletion(ctx, &rec); err != nil {
		span.RecordError(err)
		t.rollback(lessonIndex, prev, had)
		logger.Log.Error("Failed to save lesson completion",
			zap.String("userID", t.identity.UserID),
			zap.String("moduleID", t.moduleID),
			zap.Int("lessonIndex", lessonIndex),
			zap.Error(err))
		notifyError(t.notifier, util.MsgLessonCompleteError)
		monitoring.LessonCompletions.WithLabelValues("error").Inc()
		return false
	}

	notifySuccess(t.notifier, util.MsgLessonCompleted)
	monitoring.LessonCompletions.WithLabelValues("ok").Inc()
	return true
}

// UpdateVideoProgress 负数秒数按 0 处理；是否重置完成状态由配置决定
func (t *ProgressTracker) UpdateVideoProgress(ctx context.Context, lessonIndex, seconds int) {
	if !t.identity.Authenticated() {
		notifyInfo(t.notifier, util.MsgSignInRequired)
		return
	}
	if seconds < 0 {
		seconds = 0
	}

	ctx, span := tracing.Start(ctx, "ProgressTracker.UpdateVideoProgress")
	defer span.End()

	reset := t.opts.VideoResetsCompletion
	prev, had, rec := t.stage(lessonIndex, func(rec *model.ProgressRecord) {
		rec.VideoProgressSeconds = seconds
		if reset {
			rec.Completed = false
			rec.CompletedAt = nil
		}
	})

	if err := t.store.UpsertVideoProgress(ctx, &rec, reset); err != nil {
		span.RecordError(err)
		t.rollback(lessonIndex, prev, had)
		logger.Log.Warn("Failed to save video progress",
			zap.String("userID", t.identity.UserID),
			zap.String("moduleID", t.moduleID),
			zap.Int("lessonIndex", lessonIndex),
			zap.Error(err))
		notifyError(t.notifier, util.MsgVideoProgressError)
	}
}

// stage 在缓存中应用修改，返回修改前的记录和待写入的副本
func (t *ProgressTracker) stage(lessonIndex int, apply func(rec *model.ProgressRecord)) (model.ProgressRecord, bool, model.ProgressRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, had := t.records[lessonIndex]
	rec := prev
	if !had {
		rec = model.ProgressRecord{
			UserID:      t.identity.UserID,
			ModuleID:    t.moduleID,
			LessonIndex: lessonIndex,
		}
	}
	apply(&rec)
	t.records[lessonIndex] = rec
	return prev, had, rec
}

func (t *ProgressTracker) rollback(lessonIndex int, prev model.ProgressRecord, had bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if had {
		t.records[lessonIndex] = prev
	} else {
		delete(t.records, lessonIndex)
	}
}

func (t *ProgressTracker) GetVideoProgress(lessonIndex int) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.records[lessonIndex].VideoProgressSeconds
}

func (t *ProgressTracker) IsLessonCompleted(lessonIndex int) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.records[lessonIndex].Completed
}

func (t *ProgressTracker) GetCompletedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	count := 0
	for _, r := range t.records {
		if r.Completed {
			count++
		}
	}
	return count
}

// CompletionPercent 只统计 [0, totalLessons) 范围内的课时
func (t *ProgressTracker) CompletionPercent(totalLessons int) int {
	if totalLessons <= 0 {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	done := 0
	for i, r := range t.records {
		if r.Completed && i >= 0 && i < totalLessons {
			done++
		}
	}
	return done * 100 / totalLessons
}

// ResumeLesson 第一个未完成的课时；全部完成时返回最后一课
func (t *ProgressTracker) ResumeLesson(totalLessons int) int {
	if totalLessons <= 0 {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := 0; i < totalLessons; i++ {
		if !t.records[i].Completed {
			return i
		}
	}
	return totalLessons - 1
}

// Records 按课时下标排序的缓存快照
func (t *ProgressTracker) Records() []model.ProgressRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.ProgressRecord, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonIndex < out[j].LessonIndex })
	return out
}
