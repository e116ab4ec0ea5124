package service

import (
	"context"
	"cyberlearn_backend/pkg/logger"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	quizSessionKeyPrefix = "quiz:session:"
	anonymousOwnerPrefix = "anon:"

	// quizSessionLockTTL 持有者崩溃时锁自动过期
	quizSessionLockTTL   = 10 * time.Second
	quizSessionLockRetry = 25 * time.Millisecond
)

func QuizSessionKey(userID, moduleID string, lessonIndex int) string {
	return fmt.Sprintf("%s%s:%s:%d", quizSessionKeyPrefix, userID, moduleID, lessonIndex)
}

// quizSessionOwner 登录用户用 user id，匿名用户用会话 id，两者都没有时返回空
func quizSessionOwner(identity Identity) string {
	if identity.Authenticated() {
		return identity.UserID
	}
	if identity.SessionID != "" {
		return anonymousOwnerPrefix + identity.SessionID
	}
	return ""
}

// QuizSessionStore 不存在时 Load 返回 nil, nil。
// Lock 保证同一个 key 的 读取-修改-保存 串行执行，返回的函数用于释放锁
type QuizSessionStore interface {
	Load(ctx context.Context, key string) (*QuizSessionState, error)
	Save(ctx context.Context, key string, state *QuizSessionState) error
	Lock(ctx context.Context, key string) (func(), error)
}

// NewQuizSessionStore rdb 为 nil 时使用进程内存储
func NewQuizSessionStore(rdb *redis.Client, ttl time.Duration) QuizSessionStore {
	if rdb == nil {
		return NewMemoryQuizSessionStore(ttl)
	}
	return &RedisQuizSessionStore{Redis: rdb, TTL: ttl}
}

type RedisQuizSessionStore struct {
	Redis *redis.Client
	TTL   time.Duration
}

func (s *RedisQuizSessionStore) Load(ctx context.Context, key string) (*QuizSessionState, error) {
	val, err := s.Redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var state QuizSessionState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *RedisQuizSessionStore) Save(ctx context.Context, key string, state *QuizSessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, key, data, s.TTL).Err()
}

// releaseLockScript 只删除自己持有的锁
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisQuizSessionStore) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := key + ":lock"
	token := uuid.NewString()

	for {
		ok, err := s.Redis.SetNX(ctx, lockKey, token, quizSessionLockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(quizSessionLockRetry):
		}
	}

	return func() {
		if err := releaseLockScript.Run(context.Background(), s.Redis, []string{lockKey}, token).Err(); err != nil {
			logger.Log.Warn("Failed to release quiz session lock",
				zap.String("key", lockKey),
				zap.Error(err))
		}
	}, nil
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryQuizSessionStore 单实例部署和测试使用
type MemoryQuizSessionStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]memoryEntry
	locks map[string]chan struct{}
	now   func() time.Time
}

func NewMemoryQuizSessionStore(ttl time.Duration) *MemoryQuizSessionStore {
	return &MemoryQuizSessionStore{
		ttl:   ttl,
		items: make(map[string]memoryEntry),
		locks: make(map[string]chan struct{}),
		now:   time.Now,
	}
}

// Lock 每个 key 一个容量为 1 的 channel 作为互斥锁，等待时响应 ctx 取消
func (s *MemoryQuizSessionStore) Lock(ctx context.Context, key string) (func(), error) {
	s.mu.Lock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	s.mu.Unlock()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *MemoryQuizSessionStore) Load(ctx context.Context, key string) (*QuizSessionState, error) {
	s.mu.Lock()
	entry, ok := s.items[key]
	if ok && s.ttl > 0 && s.now().After(entry.expiresAt) {
		delete(s.items, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var state QuizSessionState
	if err := json.Unmarshal(entry.data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *MemoryQuizSessionStore) Save(ctx context.Context, key string, state *QuizSessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}
