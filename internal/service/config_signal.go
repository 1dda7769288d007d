package service

import (
	"context"

	"github.com/go-redis/redis/v8"
)

const configVersionKey = "llm:config:version"

// ConfigSignal 在管理端配置编辑与聊天编排之间传递“配置已变更”的信号。
// 聊天连接在每次调用前比较版本号，过期则懒惰重建链，不打断进行中的对话。
type ConfigSignal interface {
	Version(ctx context.Context) (int64, error)
	Bump(ctx context.Context) error
}

type redisConfigSignal struct {
	rdb *redis.Client
}

// NewConfigSignal 创建一个基于 Redis 计数器的 ConfigSignal。
func NewConfigSignal(rdb *redis.Client) ConfigSignal {
	return &redisConfigSignal{rdb: rdb}
}

// Version 返回当前配置版本号。键不存在视为版本 0。
func (s *redisConfigSignal) Version(ctx context.Context) (int64, error) {
	v, err := s.rdb.Get(ctx, configVersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v, nil
}

// Bump 在配置被编辑后递增版本号。
func (s *redisConfigSignal) Bump(ctx context.Context) error {
	return s.rdb.Incr(ctx, configVersionKey).Err()
}
