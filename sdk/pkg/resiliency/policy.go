package resiliency

import (
	"context"
	"math/rand"
	"time"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
)

// Policy 重试/退避策略
// 只包裹基础设施操作（快照装载、事件追加、总线发布），
// 绝不包裹命令处理器本身——处理器错误是领域错误，不是基础设施错误
type Policy struct {
	MaxAttempts    int           // 最大尝试次数（含首次）
	InitialBackoff time.Duration // 初始退避时间
	MaxBackoff     time.Duration // 最大退避时间
	BackoffFactor  float64       // 退避因子（指数退避）
}

const (
	// DefaultMaxAttempts 默认最大尝试次数
	// 5次尝试可以应对大多数临时性故障
	DefaultMaxAttempts = 5

	// DefaultInitialBackoff 默认初始退避时间
	// 1秒的初始退避避免立即重试导致的资源浪费
	DefaultInitialBackoff = 1 * time.Second

	// DefaultMaxBackoff 默认最大退避时间
	// 30秒的上限避免长时间等待
	DefaultMaxBackoff = 30 * time.Second

	// DefaultBackoffFactor 默认退避因子
	// 2.0的因子实现指数退避（1s, 2s, 4s, 8s, 16s, 30s）
	DefaultBackoffFactor = 2.0
)

// DefaultPolicy 默认策略：有界次数的指数退避
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
		BackoffFactor:  DefaultBackoffFactor,
	}
}

// normalize 填充未配置的字段
func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.BackoffFactor < 1 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	return p
}

// Do 执行操作，基础设施瞬时错误按策略重试
//
// 终态错误（领域校验、致命配置/数据错误）立即返回，不消耗重试预算。
// 重试耗尽后返回最后一次的错误，由调用方升级为 Faulted。
func (p Policy) Do(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	p = p.normalize()

	backoff := p.InitialBackoff
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if cqrs.IsTerminal(err) {
			// 领域拒绝和致命错误不重试
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		// 加入 ±20% 抖动，避免同批重试互相踩踏
		jitter := time.Duration(rand.Int63n(int64(backoff)/5+1)) - backoff/10
		wait := backoff + jitter

		logger.Logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * p.BackoffFactor)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	logger.Logger.Error("Operation failed, retries exhausted",
		zap.String("operation", operation),
		zap.Int("attempts", p.MaxAttempts),
		zap.Error(err))
	return err
}
