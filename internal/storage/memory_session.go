package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// MemorySessionStore 进程内会话存储，未配置 Redis 时使用。过期的会话在访问时清理。
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionStore 创建进程内会话存储
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*memoryEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemorySessionStore) Create(ctx context.Context) (*Session, error) {
	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		Status:    SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &memoryEntry{session: s, expiresAt: now.Add(m.ttl)}
	return s.clone(), nil
}

func (m *MemorySessionStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return entry.session.clone(), nil
}

func (m *MemorySessionStore) Update(ctx context.Context, id string, fn func(*SessionData)) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	fn(&entry.session.Data)
	now := m.now()
	entry.session.UpdatedAt = now
	entry.expiresAt = now.Add(m.ttl)
	return entry.session.clone(), nil
}

func (m *MemorySessionStore) CloseSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lookup(id)
	if err != nil {
		return err
	}
	entry.session.Status = SessionClosed
	entry.session.UpdatedAt = m.now()
	return nil
}

func (m *MemorySessionStore) Close() error {
	return nil
}

// lookup 调用方需持有锁
func (m *MemorySessionStore) lookup(id string) (*memoryEntry, error) {
	entry, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if m.ttl > 0 && !m.now().Before(entry.expiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	return entry, nil
}
