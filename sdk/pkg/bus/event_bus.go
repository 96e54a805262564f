package bus

import (
	"context"
	"fmt"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/eventbus"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// EventPublisher 领域事件发布器
// 主题按 {busName}-{aggregateName} 划分，分区键为聚合ID字符串，
// 相同聚合的事件在总线上保持提交顺序
type EventPublisher struct {
	bus     eventbus.EventBus
	busName string
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(bus eventbus.EventBus, busName string) *EventPublisher {
	return &EventPublisher{bus: bus, busName: busName}
}

// Publish 发布单个事件
func (p *EventPublisher) Publish(ctx context.Context, state *cqrs.EventState) error {
	data, err := state.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", state.MessageType, err)
	}
	topic := eventbus.Topic(p.busName, state.AggregateName)
	key := state.AggregateID.String()
	if err := p.bus.Publish(ctx, topic, key, data); err != nil {
		return fmt.Errorf("failed to publish event %s to %s: %w", state.MessageType, topic, err)
	}
	logger.Logger.Debug("event published",
		zap.String("topic", topic),
		zap.String("messageType", state.MessageType),
		zap.Int64("eventVersion", state.EventVersion))
	return nil
}

// PublishAll 按发射顺序发布一批事件
// 发布失败即中断并返回错误；已发布的事件不回滚（at-least-once语义）
func (p *EventPublisher) PublishAll(ctx context.Context, states []*cqrs.EventState) error {
	for _, state := range states {
		if err := p.Publish(ctx, state); err != nil {
			return err
		}
	}
	return nil
}

// EventHandler 已解码领域事件的处理函数
type EventHandler func(ctx context.Context, state *cqrs.EventState) error

// EventSubscriber 领域事件订阅器：字节流解码为EventState后交给处理函数
type EventSubscriber struct {
	bus     eventbus.EventBus
	busName string
}

// NewEventSubscriber 创建事件订阅器
func NewEventSubscriber(bus eventbus.EventBus, busName string) *EventSubscriber {
	return &EventSubscriber{bus: bus, busName: busName}
}

// SubscribeAll 并发订阅多个聚合的事件流，任一失败即整体失败
func (s *EventSubscriber) SubscribeAll(ctx context.Context, aggregateNames []string, handler EventHandler) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range aggregateNames {
		name := name
		g.Go(func() error {
			return s.Subscribe(ctx, name, handler)
		})
	}
	return g.Wait()
}

// Subscribe 订阅指定聚合的事件流
// 解码失败的消息记录日志后确认丢弃（毒丸消息不应阻塞分区）
func (s *EventSubscriber) Subscribe(ctx context.Context, aggregateName string, handler EventHandler) error {
	topic := eventbus.Topic(s.busName, aggregateName)
	return s.bus.Subscribe(ctx, topic, func(ctx context.Context, message []byte) error {
		state, err := cqrs.EventStateFromBytes(message)
		if err != nil {
			logger.Logger.Error("discarding undecodable event",
				zap.String("topic", topic), zap.Error(err))
			return nil
		}
		return handler(ctx, state)
	})
}
