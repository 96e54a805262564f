package processor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	jxtjson "github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/json"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/resiliency"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/store"
	"go.uber.org/zap"
)

// EventPublisher 已提交事件的发布出口
type EventPublisher interface {
	PublishAll(ctx context.Context, states []*cqrs.EventState) error
}

// ActorState 聚合actor的生命周期状态
type ActorState int32

const (
	StateUninitialized ActorState = iota
	StateLoading
	StateReady
	StateExecuting
	StatePersisting
	StatePublishing
	StateFaulted
)

func (s ActorState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateExecuting:
		return "executing"
	case StatePersisting:
		return "persisting"
	case StatePublishing:
		return "publishing"
	case StateFaulted:
		return "faulted"
	default:
		return "unknown"
	}
}

const actorMailboxSize = 100

// commandResult 单条命令的处理结果
type commandResult struct {
	events []*cqrs.EventState
	err    error
}

type commandEnvelope struct {
	ctx    context.Context
	state  *cqrs.CommandState
	result chan commandResult
}

// Dependencies actor运行所需的协作方
type Dependencies struct {
	Registry      *cqrs.Registry
	Handlers      *cqrs.HandlerRegistry
	EventStore    store.EventStore
	SnapshotStore store.SnapshotStore
	Publisher     EventPublisher
	Policy        resiliency.Policy
	Metrics       *Metrics
}

// AggregateActor 聚合actor：某一聚合ID的唯一写者
//
// 邮箱串行化同一聚合的所有命令；不同聚合的actor完全并行。
// 重试策略只包裹装载/追加/发布等基础设施操作，不包裹命令处理器本身。
// 不可恢复错误进入 Faulted，内存状态作废，下一条命令触发重新装载
type AggregateActor struct {
	key           string
	aggregateName string
	deps          Dependencies

	mailbox      chan *commandEnvelope
	done         chan struct{}
	isRunning    atomic.Bool
	lastActivity atomic.Value // time.Time
	state        atomic.Int32 // ActorState

	// 以下字段只由邮箱goroutine访问
	aggregate cqrs.Aggregate
	version   int64
	loaded    bool
}

// NewAggregateActor 创建聚合actor
func NewAggregateActor(key, aggregateName string, deps Dependencies) *AggregateActor {
	a := &AggregateActor{
		key:           key,
		aggregateName: aggregateName,
		deps:          deps,
		mailbox:       make(chan *commandEnvelope, actorMailboxSize),
		done:          make(chan struct{}),
	}
	a.lastActivity.Store(time.Now())
	a.state.Store(int32(StateUninitialized))
	return a
}

// Start 启动邮箱循环
func (a *AggregateActor) Start(ctx context.Context) {
	if !a.isRunning.CompareAndSwap(false, true) {
		return
	}
	go a.run(ctx)
	logger.Logger.Debug("aggregate actor started",
		zap.String("key", a.key), zap.String("aggregate", a.aggregateName))
}

// Stop 停止actor并拒绝剩余命令
func (a *AggregateActor) Stop() {
	if !a.isRunning.CompareAndSwap(true, false) {
		return
	}
	close(a.done)
	logger.Logger.Debug("aggregate actor stopped", zap.String("key", a.key))
}

// Submit 投递命令到邮箱
func (a *AggregateActor) Submit(ctx context.Context, env *commandEnvelope) error {
	if !a.isRunning.Load() {
		return fmt.Errorf("aggregate actor is not running")
	}
	select {
	case a.mailbox <- env:
		a.lastActivity.Store(time.Now())
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return fmt.Errorf("aggregate actor is shutting down")
	}
}

func (a *AggregateActor) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Logger.Error("aggregate actor panic recovered",
				zap.String("key", a.key), zap.Any("panic", r))
			a.state.Store(int32(StateFaulted))
		}
	}()

	for {
		select {
		case env := <-a.mailbox:
			events, err := a.execute(env.ctx, env.state)
			env.result <- commandResult{events: events, err: err}
			a.lastActivity.Store(time.Now())
		case <-a.done:
			a.drain()
			return
		case <-ctx.Done():
			a.drain()
			return
		}
	}
}

func (a *AggregateActor) drain() {
	for {
		select {
		case env := <-a.mailbox:
			env.result <- commandResult{err: fmt.Errorf("aggregate actor is shutting down")}
		default:
			return
		}
	}
}

func (a *AggregateActor) countProcessed() {
	if a.deps.Metrics != nil {
		a.deps.Metrics.CommandsProcessed.WithLabelValues(a.aggregateName).Inc()
	}
}

func (a *AggregateActor) countRejected() {
	if a.deps.Metrics != nil {
		a.deps.Metrics.CommandsRejected.WithLabelValues(a.aggregateName).Inc()
	}
}

func (a *AggregateActor) countFailed() {
	if a.deps.Metrics != nil {
		a.deps.Metrics.CommandsFailed.WithLabelValues(a.aggregateName).Inc()
	}
}

// execute 处理单条命令：装载、校验、执行、持久化、发布
func (a *AggregateActor) execute(ctx context.Context, cs *cqrs.CommandState) ([]*cqrs.EventState, error) {
	start := time.Now()
	defer func() {
		if a.deps.Metrics != nil {
			a.deps.Metrics.CommandDuration.WithLabelValues(a.aggregateName).
				Observe(time.Since(start).Seconds())
		}
	}()

	if err := a.ensureLoaded(ctx); err != nil {
		a.fault("load", err)
		a.countFailed()
		return nil, err
	}

	a.state.Store(int32(StateExecuting))

	// 解码与校验：失败是终态，不影响聚合状态与版本
	cmd, err := cs.Decode(a.deps.Registry)
	if err != nil {
		a.state.Store(int32(StateReady))
		a.countFailed()
		return nil, err
	}
	if err := cqrs.ValidateCommand(cmd); err != nil {
		a.state.Store(int32(StateReady))
		a.countRejected()
		return nil, err
	}
	handler, err := a.deps.Handlers.Resolve(cs.MessageType)
	if err != nil {
		a.state.Store(int32(StateReady))
		a.countFailed()
		return nil, err
	}

	// 未创建的聚合以nil传入处理器
	var current cqrs.Aggregate
	if a.aggregate != nil && a.aggregate.IsInitialized() {
		current = a.aggregate
	}

	events, err := handler.Do(ctx, cmd, current)
	if err != nil {
		a.state.Store(int32(StateReady))
		if cqrs.IsValidationError(err) {
			a.countRejected()
		} else {
			a.countFailed()
		}
		return nil, err
	}

	// 接受但无变化：不追加、不发布、版本不变
	if len(events) == 0 {
		a.state.Store(int32(StateReady))
		a.countProcessed()
		return nil, nil
	}

	// 按发射顺序应用事件，收集级联事件并入同一批
	staged := a.aggregate
	if staged == nil {
		staged, err = a.deps.Registry.NewAggregate(a.aggregateName)
		if err != nil {
			a.state.Store(int32(StateReady))
			a.countFailed()
			return nil, err
		}
	}
	var committed []cqrs.Event
	queue := append([]cqrs.Event(nil), events...)
	for len(queue) > 0 {
		evt := queue[0]
		queue = queue[1:]
		next, cascaded, applyErr := staged.Apply(evt)
		if applyErr != nil {
			// Apply失败是编程/版本错误，内存状态已不可信
			a.fault("apply", applyErr)
			a.countFailed()
			return nil, applyErr
		}
		staged = next
		committed = append(committed, evt)
		queue = append(queue, cascaded...)
	}

	// 分配单调无缺口的版本号并构造传输形态
	states := make([]*cqrs.EventState, 0, len(committed))
	for i, evt := range committed {
		state, stateErr := cqrs.NewEventState(evt, a.version+int64(i)+1, cs.Metadata.Derive())
		if stateErr != nil {
			a.state.Store(int32(StateReady))
			a.countFailed()
			return nil, stateErr
		}
		states = append(states, state)
	}

	// 整批持久化：要么全部落盘要么全部失败
	a.state.Store(int32(StatePersisting))
	err = a.deps.Policy.Do(ctx, "event-store-append", func(ctx context.Context) error {
		return a.deps.EventStore.Append(ctx, a.key, a.version, states)
	})
	if err != nil {
		a.fault("append", err)
		a.countFailed()
		return nil, err
	}

	a.aggregate = staged
	a.version += int64(len(committed))

	// 快照只是重放加速，保存失败降级为日志
	a.saveSnapshot(ctx)

	// 发布失败不回滚已持久化的事件：订阅方靠重放/追赶补齐
	a.state.Store(int32(StatePublishing))
	if a.deps.Publisher != nil {
		pubErr := a.deps.Policy.Do(ctx, "event-publish", func(ctx context.Context) error {
			return a.deps.Publisher.PublishAll(ctx, states)
		})
		if pubErr != nil {
			logger.Logger.Error("events persisted but publish failed",
				zap.String("key", a.key),
				zap.Int64("fromVersion", a.version-int64(len(committed))+1),
				zap.Int64("toVersion", a.version),
				zap.Error(pubErr))
			if a.deps.Metrics != nil {
				a.deps.Metrics.PublishFailures.Inc()
			}
		}
	}

	a.state.Store(int32(StateReady))
	a.countProcessed()
	return states, nil
}

// ensureLoaded 装载聚合：快照 + 重放增量事件
func (a *AggregateActor) ensureLoaded(ctx context.Context) error {
	if a.loaded {
		return nil
	}
	a.state.Store(int32(StateLoading))

	agg, err := a.deps.Registry.NewAggregate(a.aggregateName)
	if err != nil {
		return err
	}
	var version int64

	if a.deps.SnapshotStore != nil {
		var snap *store.Snapshot
		err = a.deps.Policy.Do(ctx, "snapshot-load", func(ctx context.Context) error {
			var loadErr error
			snap, loadErr = a.deps.SnapshotStore.Load(ctx, a.key)
			if errors.Is(loadErr, store.ErrSnapshotNotFound) {
				snap = nil
				return nil
			}
			return loadErr
		})
		if err != nil {
			return fmt.Errorf("failed to load snapshot for %s: %w", a.key, err)
		}
		if snap != nil {
			if err := jxtjson.Unmarshal(snap.State, agg); err != nil {
				return fmt.Errorf("failed to decode snapshot for %s: %w", a.key, err)
			}
			version = snap.Version
		}
	}

	// 重放快照之后的事件
	var tail []*cqrs.EventState
	err = a.deps.Policy.Do(ctx, "event-store-load", func(ctx context.Context) error {
		var loadErr error
		tail, loadErr = a.deps.EventStore.Load(ctx, a.key, version)
		return loadErr
	})
	if err != nil {
		return fmt.Errorf("failed to load events for %s: %w", a.key, err)
	}

	for _, es := range tail {
		evt, decodeErr := es.Decode(a.deps.Registry)
		if decodeErr != nil {
			return decodeErr
		}
		// 重放时丢弃级联事件：它们在原始批次中已经落盘
		next, _, applyErr := agg.Apply(evt)
		if applyErr != nil {
			return applyErr
		}
		agg = next
		version = es.EventVersion
	}

	a.aggregate = agg
	a.version = version
	a.loaded = true
	a.state.Store(int32(StateReady))
	logger.Logger.Debug("aggregate loaded",
		zap.String("key", a.key),
		zap.Int64("version", version),
		zap.Int("replayed", len(tail)))
	return nil
}

func (a *AggregateActor) saveSnapshot(ctx context.Context) {
	if a.deps.SnapshotStore == nil || a.aggregate == nil {
		return
	}
	data, err := jxtjson.Marshal(a.aggregate)
	if err != nil {
		logger.Logger.Warn("failed to encode snapshot",
			zap.String("key", a.key), zap.Error(err))
		return
	}
	snap := &store.Snapshot{
		AggregateKey:  a.key,
		AggregateName: a.aggregateName,
		Version:       a.version,
		State:         data,
		TakenAt:       time.Now(),
	}
	if err := a.deps.SnapshotStore.Save(ctx, snap); err != nil {
		logger.Logger.Warn("failed to save snapshot",
			zap.String("key", a.key),
			zap.Int64("version", a.version),
			zap.Error(err))
	}
}

// fault 进入Faulted：内存状态作废，下一条命令重新装载
func (a *AggregateActor) fault(operation string, err error) {
	if cqrs.IsTerminal(err) && !cqrs.IsFatal(err) {
		// 领域拒绝不是故障
		a.state.Store(int32(StateReady))
		return
	}
	a.state.Store(int32(StateFaulted))
	a.loaded = false
	a.aggregate = nil
	a.version = 0
	logger.Logger.Error("aggregate actor faulted",
		zap.String("key", a.key),
		zap.String("operation", operation),
		zap.Error(err))
}

// State 当前生命周期状态
func (a *AggregateActor) State() ActorState {
	return ActorState(a.state.Load())
}

// Version 最近一次提交后的聚合版本（仅测试/观测用途）
func (a *AggregateActor) Version() int64 {
	return a.version
}

// LastActivity 最后活动时间
func (a *AggregateActor) LastActivity() time.Time {
	return a.lastActivity.Load().(time.Time)
}

// IsIdle 是否超过空闲阈值
func (a *AggregateActor) IsIdle(idleTimeout time.Duration) bool {
	return time.Since(a.LastActivity()) > idleTimeout
}
