package storage

import (
	"context"
	"errors"
	"time"

	"jd-agent-go/internal/types"
)

// ErrSessionNotFound 会话不存在或已过期
var ErrSessionNotFound = errors.New("会话不存在")

// SessionStatus 会话状态
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionClosed SessionStatus = "closed"
)

// SessionData 会话中保存的业务数据，每次处理后按字段覆盖
type SessionData struct {
	JDText       string                 `json:"jd_text,omitempty"`
	Scenario     types.Scenario         `json:"scenario,omitempty"`
	Requirements *types.JobRequirements `json:"requirements,omitempty"`
	Questions    *types.QuestionSet     `json:"questions,omitempty"`
}

// Session 一个会话
type Session struct {
	ID        string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Data      SessionData   `json:"data"`
}

// SessionStore 会话存储。Get 返回的是副本，修改它不会影响存储内容，写入必须通过 Update。
type SessionStore interface {
	// Create 创建一个新的 active 会话
	Create(ctx context.Context) (*Session, error)
	// Get 读取会话，不存在时返回 ErrSessionNotFound
	Get(ctx context.Context, id string) (*Session, error)
	// Update 在存储内对会话数据执行 fn 并写回，返回更新后的会话
	Update(ctx context.Context, id string, fn func(*SessionData)) (*Session, error)
	// CloseSession 把会话标记为 closed，数据保留到过期
	CloseSession(ctx context.Context, id string) error
	// Close 释放底层连接
	Close() error
}

func (d SessionData) clone() SessionData {
	out := d
	if d.Requirements != nil {
		reqs := d.Requirements.Clone()
		out.Requirements = &reqs
	}
	if d.Questions != nil {
		qs := *d.Questions
		qs.QuestionsWithOptions = append([]types.Question(nil), d.Questions.QuestionsWithOptions...)
		out.Questions = &qs
	}
	return out
}

func (s *Session) clone() *Session {
	out := *s
	out.Data = s.Data.clone()
	return &out
}
