package storage

import (
	"fmt"

	"jd-agent-go/internal/config"

	"github.com/rs/zerolog/log"
)

// NewSessionStore 根据配置选择会话存储：配置了 Redis 地址时使用 Redis，否则使用进程内存储
func NewSessionStore(cfg *config.RedisConfig) (SessionStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if cfg.Address == "" {
		log.Info().Dur("ttl", cfg.SessionTTL()).Msg("未配置Redis，使用进程内会话存储")
		return NewMemorySessionStore(cfg.SessionTTL()), nil
	}

	r, err := NewRedisAdapter(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化Redis失败: %w", err)
	}
	log.Info().Str("address", cfg.Address).Dur("ttl", cfg.SessionTTL()).Msg("Redis会话存储初始化成功")
	return NewRedisSessionStore(r), nil
}
