package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-redis/redis/v9"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
)

// 多副本部署时，进程内的单写者约束不足以覆盖整个集群。
// OwnershipGuard 用Redis分布式锁保证一个聚合同一时刻只有一个实例的actor在写。
// 单副本部署无需启用

const (
	// DefaultOwnershipTTL 锁的存活时间（命令处理期间自动续期范围内）
	DefaultOwnershipTTL = 30 * time.Second

	// DefaultOwnershipRetryInterval 获取锁的重试间隔
	DefaultOwnershipRetryInterval = 100 * time.Millisecond

	// DefaultOwnershipWait 获取锁的最长等待时间
	DefaultOwnershipWait = 10 * time.Second
)

// OwnershipGuard 聚合写者互斥守卫
type OwnershipGuard struct {
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	prefix string
}

// NewOwnershipGuard 创建守卫
func NewOwnershipGuard(client redis.UniversalClient, prefix string) *OwnershipGuard {
	if prefix == "" {
		prefix = "jxt:owner:"
	}
	return &OwnershipGuard{
		locker: redislock.New(client),
		ttl:    DefaultOwnershipTTL,
		wait:   DefaultOwnershipWait,
		prefix: prefix,
	}
}

// Acquire 获取聚合的写者锁，返回释放函数
func (g *OwnershipGuard) Acquire(ctx context.Context, aggregateKey string) (func(), error) {
	lock, err := g.locker.Obtain(ctx, g.prefix+aggregateKey, g.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(
			redislock.LinearBackoff(DefaultOwnershipRetryInterval),
			int(g.wait/DefaultOwnershipRetryInterval)),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("aggregate %s is owned by another instance: %w", aggregateKey, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to acquire ownership of %s: %w", aggregateKey, err)
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			logger.Logger.Warn("failed to release ownership lock",
				zap.String("aggregateKey", aggregateKey), zap.Error(err))
		}
	}, nil
}
