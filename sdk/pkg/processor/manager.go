package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
)

const (
	// DefaultMaxActiveAggregates 默认驻留内存的聚合actor上限
	DefaultMaxActiveAggregates = 10000

	// DefaultActiveCommandCheckPeriod 默认空闲actor清理周期
	// 超过一个清理周期无命令的actor被逐出（只释放内存，持久化状态不受影响）
	DefaultActiveCommandCheckPeriod = time.Minute
)

// ManagerConfig 命令处理器管理器配置
type ManagerConfig struct {
	// MaxActiveAggregates 内存中actor数量上限（LRU淘汰）
	MaxActiveAggregates int `mapstructure:"maxActiveAggregates"`

	// ActiveCommandCheckPeriod 空闲清理周期
	ActiveCommandCheckPeriod time.Duration `mapstructure:"activeCommandCheckPeriod"`
}

// Manager 命令处理器管理器
//
// 为每个聚合ID维护至多一个actor（单写者约束），LRU上限控制内存占用，
// 周期性清理空闲actor。逐出只丢弃内存状态，actor可随时从存储重建
type Manager struct {
	config ManagerConfig
	deps   Dependencies
	guard  *OwnershipGuard

	mu     sync.Mutex
	actors *lru.Cache[string, *AggregateActor]

	ctx           context.Context
	cancel        context.CancelFunc
	cleanupTicker *time.Ticker
	wg            sync.WaitGroup
	closed        bool
}

// NewManager 创建管理器
func NewManager(config ManagerConfig, deps Dependencies) (*Manager, error) {
	if config.MaxActiveAggregates <= 0 {
		config.MaxActiveAggregates = DefaultMaxActiveAggregates
	}
	if config.ActiveCommandCheckPeriod <= 0 {
		config.ActiveCommandCheckPeriod = DefaultActiveCommandCheckPeriod
	}
	if deps.Registry == nil || deps.Handlers == nil || deps.EventStore == nil {
		return nil, fmt.Errorf("registry, handlers and event store are required")
	}

	cache, err := lru.NewWithEvict[string, *AggregateActor](config.MaxActiveAggregates,
		func(key string, actor *AggregateActor) {
			actor.Stop()
		})
	if err != nil {
		return nil, fmt.Errorf("failed to create actor cache: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		config:        config,
		deps:          deps,
		actors:        cache,
		ctx:           ctx,
		cancel:        cancel,
		cleanupTicker: time.NewTicker(config.ActiveCommandCheckPeriod),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	logger.Logger.Info("command processor manager started",
		zap.Int("maxActiveAggregates", config.MaxActiveAggregates),
		zap.Duration("activeCommandCheckPeriod", config.ActiveCommandCheckPeriod))
	return m, nil
}

// WithOwnershipGuard 启用跨实例的聚合写者互斥（多副本部署时使用）
func (m *Manager) WithOwnershipGuard(guard *OwnershipGuard) *Manager {
	m.guard = guard
	return m
}

// Process 处理一条命令，返回本次提交的事件
//
// 相同聚合ID的命令被同一actor串行处理；不同聚合完全并行。
// 返回的错误分类：*ValidationError（领域拒绝）、致命配置错误、
// 基础设施错误（重试耗尽后）
func (m *Manager) Process(ctx context.Context, cs *cqrs.CommandState) ([]*cqrs.EventState, error) {
	if cs == nil {
		return nil, fmt.Errorf("command state is nil")
	}
	if err := cs.Validate(); err != nil {
		return nil, cqrs.NewValidationError("commandState", err.Error())
	}

	key := cs.AggregateID.String()

	if m.guard != nil {
		release, err := m.guard.Acquire(ctx, key)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	actor, err := m.getOrCreateActor(key, cs.AggregateName)
	if err != nil {
		return nil, err
	}

	env := &commandEnvelope{
		ctx:    ctx,
		state:  cs,
		result: make(chan commandResult, 1),
	}
	if err := actor.Submit(ctx, env); err != nil {
		return nil, err
	}

	select {
	case res := <-env.result:
		return res.events, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) getOrCreateActor(key, aggregateName string) (*AggregateActor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("manager is closed")
	}

	if actor, ok := m.actors.Get(key); ok {
		return actor, nil
	}

	actor := NewAggregateActor(key, aggregateName, m.deps)
	actor.Start(m.ctx)
	evicted := m.actors.Add(key, actor)
	if evicted {
		logger.Logger.Debug("actor cache evicted LRU entry", zap.String("key", key))
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.ActiveActors.Set(float64(m.actors.Len()))
	}
	return actor, nil
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	defer m.cleanupTicker.Stop()
	for {
		select {
		case <-m.cleanupTicker.C:
			m.cleanupIdleActors()
		case <-m.ctx.Done():
			return
		}
	}
}

// cleanupIdleActors 逐出超过一个清理周期无活动的actor
func (m *Manager) cleanupIdleActors() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var idle []string
	for _, key := range m.actors.Keys() {
		if actor, ok := m.actors.Peek(key); ok {
			if actor.IsIdle(m.config.ActiveCommandCheckPeriod) {
				idle = append(idle, key)
			}
		}
	}
	for _, key := range idle {
		// Remove触发evict回调停止actor
		m.actors.Remove(key)
	}
	if len(idle) > 0 {
		logger.Logger.Info("evicted idle aggregate actors", zap.Int("count", len(idle)))
	}
	if m.deps.Metrics != nil {
		m.deps.Metrics.ActiveActors.Set(float64(m.actors.Len()))
	}
}

// ActiveActors 当前驻留的actor数量
func (m *Manager) ActiveActors() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actors.Len()
}

// Stop 停止管理器和所有actor
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.actors.Purge() // evict回调停止每个actor
	m.mu.Unlock()

	m.cancel()
	m.wg.Wait()
	logger.Logger.Info("command processor manager stopped")
}
