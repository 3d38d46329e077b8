package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jd-agent-go/internal/config"
	"jd-agent-go/internal/constants"
	"jd-agent-go/internal/tracing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// RedisSessionStore 以 JSON 字符串保存会话，每次写入刷新过期时间
type RedisSessionStore struct {
	redis *Redis
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisSessionStore 基于已连接的 Redis 创建会话存储
func NewRedisSessionStore(r *Redis) *RedisSessionStore {
	return &RedisSessionStore{
		redis: r,
		ttl:   r.config.SessionTTL(),
		now:   time.Now,
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf(constants.KeyJDSession, id)
}

func (s *RedisSessionStore) Create(ctx context.Context) (*Session, error) {
	now := s.now()
	session := &Session{
		ID:        uuid.NewString(),
		Status:    SessionActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.write(ctx, s.redis.Client, session); err != nil {
		return nil, err
	}
	log.Debug().Str("key", tracing.SafeRedisKey(sessionKey(session.ID))).Dur("ttl", s.ttl).Msg("会话已创建")
	return session, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	return s.read(ctx, s.redis.Client, id)
}

// Update 使用 WATCH 做乐观锁，并发写入冲突时重试
func (s *RedisSessionStore) Update(ctx context.Context, id string, fn func(*SessionData)) (*Session, error) {
	return s.mutate(ctx, id, func(session *Session) {
		fn(&session.Data)
	})
}

func (s *RedisSessionStore) CloseSession(ctx context.Context, id string) error {
	_, err := s.mutate(ctx, id, func(session *Session) {
		session.Status = SessionClosed
	})
	return err
}

func (s *RedisSessionStore) Close() error {
	return s.redis.Close()
}

const maxUpdateAttempts = 5

func (s *RedisSessionStore) mutate(ctx context.Context, id string, fn func(*Session)) (*Session, error) {
	key := sessionKey(id)
	var updated *Session

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.redis.Client.Watch(ctx, func(tx *redis.Tx) error {
			session, err := s.read(ctx, tx, id)
			if err != nil {
				return err
			}
			fn(session)
			session.UpdatedAt = s.now()

			data, err := json.Marshal(session)
			if err != nil {
				return fmt.Errorf("序列化会话失败: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, s.ttl)
				return nil
			})
			if err == nil {
				updated = session
			}
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("更新会话 %s 冲突次数过多", id)
}

// stringGetter 同时由 *redis.Client 和 *redis.Tx 满足
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisSessionStore) read(ctx context.Context, cmd stringGetter, id string) (*Session, error) {
	raw, err := cmd.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}

	var session Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("解析会话数据失败: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) write(ctx context.Context, cmd redis.Cmdable, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}
	if err := cmd.Set(ctx, sessionKey(session.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("写入会话失败: %w", err)
	}
	return nil
}
