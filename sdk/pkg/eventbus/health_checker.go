package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
)

// HealthCheckCallback 健康状态变化回调
type HealthCheckCallback func(healthy bool, err error)

// HealthChecker 周期性健康检查器
// 按固定间隔调用总线的HealthCheck，状态变化时触发回调
type HealthChecker struct {
	bus      EventBus
	interval time.Duration
	cron     *cron.Cron
	entryID  cron.EntryID

	mu        sync.Mutex
	healthy   bool
	lastErr   error
	lastCheck time.Time
	callbacks []HealthCheckCallback
	started   bool
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(bus EventBus, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = DefaultHealthCheckInterval
	}
	return &HealthChecker{
		bus:      bus,
		interval: interval,
		cron:     cron.New(cron.WithSeconds()),
		healthy:  true,
	}
}

// RegisterCallback 注册状态变化回调
func (hc *HealthChecker) RegisterCallback(cb HealthCheckCallback) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.callbacks = append(hc.callbacks, cb)
}

// Start 启动周期检查
func (hc *HealthChecker) Start() error {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if hc.started {
		return nil
	}

	spec := fmt.Sprintf("@every %s", hc.interval)
	id, err := hc.cron.AddFunc(spec, hc.check)
	if err != nil {
		return fmt.Errorf("failed to schedule health check: %w", err)
	}
	hc.entryID = id
	hc.cron.Start()
	hc.started = true
	logger.Logger.Info("eventbus health checker started",
		zap.Duration("interval", hc.interval))
	return nil
}

func (hc *HealthChecker) check() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := hc.bus.HealthCheck(ctx)

	hc.mu.Lock()
	prev := hc.healthy
	hc.healthy = err == nil
	hc.lastErr = err
	hc.lastCheck = time.Now()
	changed := prev != hc.healthy
	callbacks := make([]HealthCheckCallback, len(hc.callbacks))
	copy(callbacks, hc.callbacks)
	hc.mu.Unlock()

	if err != nil {
		logger.Logger.Warn("eventbus health check failed", zap.Error(err))
	}
	if changed {
		for _, cb := range callbacks {
			cb(err == nil, err)
		}
	}
}

// IsHealthy 返回最近一次检查结果
func (hc *HealthChecker) IsHealthy() (bool, error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.healthy, hc.lastErr
}

// LastCheck 返回最近一次检查时间
func (hc *HealthChecker) LastCheck() time.Time {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	return hc.lastCheck
}

// Stop 停止周期检查
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.started {
		return
	}
	hc.cron.Remove(hc.entryID)
	ctx := hc.cron.Stop()
	<-ctx.Done()
	hc.started = false
	logger.Logger.Info("eventbus health checker stopped")
}
