package config

import (
	"time"

	"github.com/spf13/cast"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/processor"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/resiliency"
)

// CQRS 命令处理与重试配置
type CQRS struct {
	// BusName 总线名，参与主题构造 {busName}-{aggregateName}
	BusName string `mapstructure:"busName"`

	// MaxActiveAggregates 驻留内存的聚合actor上限
	MaxActiveAggregates int `mapstructure:"maxActiveAggregates"`

	// ActiveCommandCheckPeriod 空闲actor清理周期
	// 支持 "1m" / "30s" 这类时长字面量，也接受纯秒数
	ActiveCommandCheckPeriod string `mapstructure:"activeCommandCheckPeriod"`

	Resiliency Resiliency `mapstructure:"resiliency"`
}

// Resiliency 基础设施操作重试配置
type Resiliency struct {
	MaxAttempts    int     `mapstructure:"maxAttempts"`
	InitialBackoff string  `mapstructure:"initialBackoff"`
	MaxBackoff     string  `mapstructure:"maxBackoff"`
	BackoffFactor  float64 `mapstructure:"backoffFactor"`
}

var CQRSConfig = new(CQRS)

// parseDuration 宽容解析时长：接受时长字面量或纯数字秒数
func parseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs := cast.ToInt64(raw); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return def
}

// ToManagerConfig 转换为处理器管理器配置
func (c *CQRS) ToManagerConfig() processor.ManagerConfig {
	return processor.ManagerConfig{
		MaxActiveAggregates: c.MaxActiveAggregates,
		ActiveCommandCheckPeriod: parseDuration(
			c.ActiveCommandCheckPeriod, processor.DefaultActiveCommandCheckPeriod),
	}
}

// ToPolicy 转换为重试策略
func (r Resiliency) ToPolicy() resiliency.Policy {
	return resiliency.Policy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: parseDuration(r.InitialBackoff, resiliency.DefaultInitialBackoff),
		MaxBackoff:     parseDuration(r.MaxBackoff, resiliency.DefaultMaxBackoff),
		BackoffFactor:  r.BackoffFactor,
	}
}
