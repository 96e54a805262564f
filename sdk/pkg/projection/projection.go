package projection

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/store"
	"go.uber.org/zap"
)

// Handler 投影更新函数：把单个事件应用到读模型
type Handler func(ctx context.Context, state *cqrs.EventState) error

// Processor 投影更新处理器
//
// 总线只承诺at-least-once，重复和乱序投递都会发生。
// 处理器按 (投影名, 聚合键) 记录最后应用版本：
// 版本 <= 已应用版本的事件直接跳过，保证exactly-once效果
type Processor struct {
	name     string
	kv       store.KeyValueStore
	registry *cqrs.Registry
	handler  Handler
}

// NewProcessor 创建投影处理器
func NewProcessor(name string, kv store.KeyValueStore, registry *cqrs.Registry, handler Handler) (*Processor, error) {
	if name == "" {
		return nil, fmt.Errorf("projection name is required")
	}
	if kv == nil {
		return nil, fmt.Errorf("key-value store is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	return &Processor{name: name, kv: kv, registry: registry, handler: handler}, nil
}

// Name 投影名称
func (p *Processor) Name() string { return p.name }

func (p *Processor) versionKey(aggregateKey string) string {
	return "projection:" + p.name + ":" + aggregateKey
}

// Handle 应用单个事件，重复/过期投递幂等跳过
func (p *Processor) Handle(ctx context.Context, state *cqrs.EventState) error {
	if state == nil {
		return fmt.Errorf("event state is nil")
	}
	if err := state.Validate(); err != nil {
		return err
	}

	aggregateKey := state.AggregateID.String()
	applied, err := p.lastApplied(ctx, aggregateKey)
	if err != nil {
		return err
	}
	if state.EventVersion <= applied {
		logger.Logger.Debug("skipping duplicate or stale event",
			zap.String("projection", p.name),
			zap.String("aggregateKey", aggregateKey),
			zap.Int64("eventVersion", state.EventVersion),
			zap.Int64("lastApplied", applied))
		return nil
	}

	if err := p.handler(ctx, state); err != nil {
		return fmt.Errorf("projection %s failed on %s v%d: %w",
			p.name, state.MessageType, state.EventVersion, err)
	}

	// 先应用后推进水位：崩溃在两步之间会导致重复应用，
	// 重新投递时水位未推进，投影函数自身需容忍同一事件重放
	return p.setLastApplied(ctx, aggregateKey, state.EventVersion)
}

// LastApplied 某聚合在本投影中的最后应用版本
func (p *Processor) LastApplied(ctx context.Context, aggregateKey string) (int64, error) {
	return p.lastApplied(ctx, aggregateKey)
}

func (p *Processor) lastApplied(ctx context.Context, aggregateKey string) (int64, error) {
	data, ok, err := p.kv.Find(ctx, p.versionKey(aggregateKey))
	if err != nil {
		return 0, fmt.Errorf("failed to read projection watermark: %w", err)
	}
	if !ok {
		return 0, nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt projection watermark %q: %w", string(data), err)
	}
	return v, nil
}

func (p *Processor) setLastApplied(ctx context.Context, aggregateKey string, version int64) error {
	if err := p.kv.Add(ctx, p.versionKey(aggregateKey), []byte(strconv.FormatInt(version, 10))); err != nil {
		return fmt.Errorf("failed to advance projection watermark: %w", err)
	}
	return nil
}
