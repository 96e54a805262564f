package bus

import (
	"context"
	"fmt"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/eventbus"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
)

// NotificationBus 通知总线：按消息类别广播，不携带聚合身份，无按键顺序保证
type NotificationBus struct {
	bus     eventbus.EventBus
	busName string
}

// NewNotificationBus 创建通知总线
func NewNotificationBus(bus eventbus.EventBus, busName string) *NotificationBus {
	return &NotificationBus{bus: bus, busName: busName}
}

// Publish 发布通知
func (b *NotificationBus) Publish(ctx context.Context, n cqrs.Notification, md cqrs.Metadata) error {
	state, err := cqrs.NewNotificationState(n, md)
	if err != nil {
		return err
	}
	data, err := state.ToBytes()
	if err != nil {
		return fmt.Errorf("failed to encode notification %s: %w", state.MessageType, err)
	}
	topic := eventbus.Topic(b.busName, n.MessageName())
	// 通知没有分区键，投递到任意worker
	if err := b.bus.Publish(ctx, topic, "", data); err != nil {
		return fmt.Errorf("failed to publish notification %s: %w", state.MessageType, err)
	}
	return nil
}

// NotificationHandler 已解码通知的处理函数
type NotificationHandler func(ctx context.Context, state *cqrs.NotificationState) error

// Subscribe 订阅指定类别的通知
func (b *NotificationBus) Subscribe(ctx context.Context, messageName string, handler NotificationHandler) error {
	topic := eventbus.Topic(b.busName, messageName)
	return b.bus.Subscribe(ctx, topic, func(ctx context.Context, message []byte) error {
		state, err := cqrs.NotificationStateFromBytes(message)
		if err != nil {
			logger.Logger.Error("discarding undecodable notification",
				zap.String("topic", topic), zap.Error(err))
			return nil
		}
		return handler(ctx, state)
	})
}

// DecodedHandler 接收已还原为具体类型的通知包络
type DecodedHandler func(ctx context.Context, env cqrs.Envelope[cqrs.Notification]) error

// SubscribeDecoded 订阅通知并还原具体类型
// 处理函数拿到消息本体与元数据的包络，无需接触传输形态
func (b *NotificationBus) SubscribeDecoded(ctx context.Context, registry *cqrs.Registry, messageName string, handler DecodedHandler) error {
	return b.Subscribe(ctx, messageName, func(ctx context.Context, state *cqrs.NotificationState) error {
		n, err := state.Decode(registry)
		if err != nil {
			logger.Logger.Error("discarding unresolvable notification",
				zap.String("messageType", state.MessageType), zap.Error(err))
			return nil
		}
		return handler(ctx, cqrs.NewEnvelope[cqrs.Notification](n, state.Metadata))
	})
}
