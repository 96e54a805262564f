package eventbus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
)

// memoryEventBus 内存事件总线实现
// 用于单进程部署和测试：与分布式实现保持同样的语义——
// at-least-once投递、相同key顺序投递（通过每个订阅的Keyed-Worker池）
type memoryEventBus struct {
	mu            sync.RWMutex
	subscriptions map[string][]*memorySubscription
	closed        atomic.Bool
	metrics       Metrics
	metricsMu     sync.Mutex

	keyedCfg KeyedWorkerPoolConfig
	rateCfg  RateLimitConfig
}

type memorySubscription struct {
	topic   string
	handler MessageHandler
	pool    *KeyedWorkerPool
	limiter *RateLimiter
}

// NewMemoryEventBus 创建内存事件总线
func NewMemoryEventBus(cfg EventBusConfig) EventBus {
	return &memoryEventBus{
		subscriptions: make(map[string][]*memorySubscription),
		keyedCfg:      cfg.Keyed,
		rateCfg:       cfg.Rate,
	}
}

// Publish 发布消息：同步投递到每个订阅的Keyed-Worker池
func (m *memoryEventBus) Publish(ctx context.Context, topic string, key string, message []byte) error {
	if m.closed.Load() {
		return fmt.Errorf("memory eventbus is closed")
	}
	if err := ValidateTopicName(topic); err != nil {
		return err
	}

	m.mu.RLock()
	subs := m.subscriptions[topic]
	m.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.limiter.Wait(ctx); err != nil {
			return err
		}
		msg := &AggregateMessage{
			Topic:     topic,
			Key:       key,
			Value:     message,
			Timestamp: time.Now(),
			Context:   context.WithoutCancel(ctx),
			Done:      make(chan error, 1),
		}
		if key == "" {
			// 无key消息不需要顺序保证，直接异步处理
			// 失败的记录与日志由wrapHandler统一完成
			go func(s *memorySubscription, v []byte) {
				_ = s.handler(context.Background(), v)
			}(sub, message)
			continue
		}
		if err := sub.pool.ProcessMessage(ctx, msg); err != nil {
			m.incPublishErrors()
			return fmt.Errorf("failed to enqueue message: %w", err)
		}
	}

	m.metricsMu.Lock()
	m.metrics.MessagesPublished++
	m.metricsMu.Unlock()
	return nil
}

// Subscribe 订阅主题
func (m *memoryEventBus) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	if m.closed.Load() {
		return fmt.Errorf("memory eventbus is closed")
	}
	if err := ValidateTopicName(topic); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("handler is nil")
	}

	wrapped := m.wrapHandler(topic, handler)
	sub := &memorySubscription{
		topic:   topic,
		handler: wrapped,
		pool:    NewKeyedWorkerPool(m.keyedCfg, wrapped),
		limiter: NewRateLimiter(m.rateCfg),
	}

	m.mu.Lock()
	m.subscriptions[topic] = append(m.subscriptions[topic], sub)
	m.mu.Unlock()

	logger.Logger.Info("memory eventbus subscribed", zap.String("topic", topic))
	return nil
}

func (m *memoryEventBus) wrapHandler(topic string, handler MessageHandler) MessageHandler {
	return func(ctx context.Context, message []byte) error {
		err := handler(ctx, message)
		m.metricsMu.Lock()
		if err != nil {
			m.metrics.ConsumeErrors++
		} else {
			m.metrics.MessagesConsumed++
		}
		m.metricsMu.Unlock()
		if err != nil {
			// 内存总线没有位点可回退，失败至少要留下日志痕迹
			logger.Logger.Error("memory eventbus handler failed",
				zap.String("topic", topic), zap.Error(err))
		}
		return err
	}
}

func (m *memoryEventBus) incPublishErrors() {
	m.metricsMu.Lock()
	m.metrics.PublishErrors++
	m.metricsMu.Unlock()
}

// HealthCheck 健康检查
func (m *memoryEventBus) HealthCheck(ctx context.Context) error {
	if m.closed.Load() {
		return fmt.Errorf("memory eventbus is closed")
	}
	m.metricsMu.Lock()
	m.metrics.LastHealthCheck = time.Now()
	m.metrics.HealthCheckStatus = "healthy"
	m.metricsMu.Unlock()
	return nil
}

// GetMetrics 返回指标快照
func (m *memoryEventBus) GetMetrics() Metrics {
	m.metricsMu.Lock()
	defer m.metricsMu.Unlock()
	return m.metrics
}

// Close 关闭总线，停止所有worker池
func (m *memoryEventBus) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, subs := range m.subscriptions {
		for _, sub := range subs {
			sub.pool.Stop()
		}
	}
	m.subscriptions = make(map[string][]*memorySubscription)
	logger.Logger.Info("memory eventbus closed")
	return nil
}
