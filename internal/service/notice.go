package service

import "sync"

type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeError   NoticeLevel = "error"
)

// Notice 面向用户的一次性提示，随响应返回
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

type Notifier interface {
	Notify(n Notice)
}

// NoticeBuffer 收集一次请求内产生的提示
type NoticeBuffer struct {
	mu      sync.Mutex
	notices []Notice
}

func NewNoticeBuffer() *NoticeBuffer {
	return &NoticeBuffer{}
}

func (b *NoticeBuffer) Notify(n Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notices = append(b.notices, n)
}

// Notices 返回副本，没有提示时为空切片
func (b *NoticeBuffer) Notices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Notice, len(b.notices))
	copy(out, b.notices)
	return out
}

func notifySuccess(n Notifier, msg string) {
	if n != nil {
		n.Notify(Notice{Level: NoticeSuccess, Message: msg})
	}
}

func notifyInfo(n Notifier, msg string) {
	if n != nil {
		n.Notify(Notice{Level: NoticeInfo, Message: msg})
	}
}

func notifyError(n Notifier, msg string) {
	if n != nil {
		n.Notify(Notice{Level: NoticeError, Message: msg})
	}
}

// Identity 当前请求的用户，匿名时 UserID 为空
type Identity struct {
	UserID string
	Email  string
	// SessionID 匿名用户的答题会话标识，由服务端签发
	SessionID string
}

func (i Identity) Authenticated() bool {
	return i.UserID != ""
}
