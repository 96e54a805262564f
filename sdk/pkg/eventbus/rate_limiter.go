package eventbus

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitConfig 订阅端速率限制配置
type RateLimitConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	RatePerSec float64 `mapstructure:"ratePerSec"` // 每秒处理消息数
	Burst      int     `mapstructure:"burst"`      // 突发容量
}

// RateLimiter 令牌桶速率限制器，置于消息处理器之前
type RateLimiter struct {
	limiter *rate.Limiter
	enabled bool
}

// NewRateLimiter 创建速率限制器
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if !cfg.Enabled {
		return &RateLimiter{enabled: false}
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = DefaultRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateBurst
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		enabled: true,
	}
}

// Wait 等待获取令牌；未启用时直接返回
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if !rl.enabled {
		return nil
	}
	return rl.limiter.Wait(ctx)
}
