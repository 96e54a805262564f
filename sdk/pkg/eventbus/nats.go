package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
)

// natsEventBus NATS JetStream事件总线实现
// - 发布端：JetStream同步发布，分区键写入消息头
// - 订阅端：每主题一个持久化消费者，手动确认，消息经Keyed-Worker池顺序处理
type natsEventBus struct {
	config NATSConfig
	conn   *nats.Conn
	js     nats.JetStreamContext

	mu     sync.Mutex
	subs   []*nats.Subscription
	pools  []*KeyedWorkerPool
	closed bool

	keyedCfg KeyedWorkerPoolConfig
	rateCfg  RateLimitConfig
}

// NewNATSEventBus 创建NATS JetStream事件总线
func NewNATSEventBus(cfg EventBusConfig) (EventBus, error) {
	nc := cfg.NATS
	if len(nc.URLs) == 0 {
		return nil, fmt.Errorf("nats urls are required")
	}

	opts := []nats.Option{
		nats.Name(nc.ClientID),
		nats.MaxReconnects(intOr(nc.MaxReconnects, DefaultNATSMaxReconnects)),
		nats.ReconnectWait(durationOr(nc.ReconnectWait, DefaultNATSReconnectWait)),
		nats.Timeout(durationOr(nc.ConnectionTimeout, DefaultNATSConnectionTimeout)),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(conn *nats.Conn) {
			logger.Logger.Info("nats reconnected", zap.String("url", conn.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(strings.Join(nc.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	logger.Logger.Info("nats eventbus initialized", zap.Strings("urls", nc.URLs))
	return &natsEventBus{
		config:   nc,
		conn:     conn,
		js:       js,
		keyedCfg: cfg.Keyed,
		rateCfg:  cfg.Rate,
	}, nil
}

// streamName 主题对应的流名称（JetStream流名不允许点和横线以外的特殊字符）
func streamName(topic string) string {
	return "JXT_" + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(topic))
}

// ensureStream 确保主题对应的流存在
func (n *natsEventBus) ensureStream(topic string) error {
	name := streamName(topic)
	_, err := n.js.StreamInfo(name)
	if err == nil {
		return nil
	}
	replicas := n.config.JetStream.StreamReplicas
	if replicas <= 0 {
		replicas = 1
	}
	maxAge := n.config.JetStream.StreamMaxAge
	if maxAge <= 0 {
		maxAge = DefaultNATSStreamMaxAge
	}
	_, err = n.js.AddStream(&nats.StreamConfig{
		Name:      name,
		Subjects:  []string{topic},
		Retention: nats.LimitsPolicy,
		MaxAge:    maxAge,
		Replicas:  replicas,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", name, err)
	}
	logger.Logger.Info("nats stream created", zap.String("stream", name), zap.String("topic", topic))
	return nil
}

// Publish 发布消息，分区键写入消息头供订阅端路由
func (n *natsEventBus) Publish(ctx context.Context, topic string, key string, message []byte) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return fmt.Errorf("nats eventbus is closed")
	}
	n.mu.Unlock()

	if err := ValidateTopicName(topic); err != nil {
		return err
	}
	if err := n.ensureStream(topic); err != nil {
		return err
	}

	msg := nats.NewMsg(topic)
	msg.Data = message
	if key != "" {
		msg.Header.Set(KeyHeader, key)
	}

	// Context 和 AckWait 不可同时设置，这里用带超时的Context控制发布等待
	timeout := durationOr(n.config.JetStream.PublishTimeout, DefaultNATSPublishTimeout)
	pubCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := n.js.PublishMsg(msg, nats.Context(pubCtx))
	if err != nil {
		logger.Logger.Error("nats publish failed",
			zap.String("topic", topic), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to publish to nats: %w", err)
	}
	return nil
}

// Subscribe 订阅主题：持久化消费者 + 手动确认 + Keyed-Worker池
func (n *natsEventBus) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("nats eventbus is closed")
	}
	if err := ValidateTopicName(topic); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("handler is nil")
	}
	if err := n.ensureStream(topic); err != nil {
		return err
	}

	pool := NewKeyedWorkerPool(n.keyedCfg, handler)
	limiter := NewRateLimiter(n.rateCfg)

	durable := n.config.JetStream.DurableName
	if durable == "" {
		durable = "jxt-cqrs"
	}
	durable = durable + "-" + strings.NewReplacer("-", "_", ".", "_").Replace(topic)

	ackWait := durationOr(n.config.JetStream.AckWait, DefaultNATSAckWait)
	maxDeliver := intOr(n.config.JetStream.MaxDeliver, DefaultNATSMaxDeliver)

	sub, err := n.js.Subscribe(topic, func(msg *nats.Msg) {
		n.dispatch(pool, limiter, topic, msg, handler)
	},
		nats.Durable(durable),
		nats.ManualAck(),
		nats.AckWait(ackWait),
		nats.MaxDeliver(maxDeliver),
		nats.DeliverAll(),
	)
	if err != nil {
		pool.Stop()
		return fmt.Errorf("failed to subscribe to nats: %w", err)
	}

	n.subs = append(n.subs, sub)
	n.pools = append(n.pools, pool)
	logger.Logger.Info("nats eventbus subscribed",
		zap.String("topic", topic), zap.String("durable", durable))
	return nil
}

func (n *natsEventBus) dispatch(pool *KeyedWorkerPool, limiter *RateLimiter, topic string, msg *nats.Msg, handler MessageHandler) {
	ctx := context.Background()
	if err := limiter.Wait(ctx); err != nil {
		_ = msg.Nak()
		return
	}

	key := msg.Header.Get(KeyHeader)
	if key == "" {
		// 无key消息直接处理
		if err := handler(ctx, msg.Data); err != nil {
			logger.Logger.Error("nats handler failed",
				zap.String("topic", topic), zap.Error(err))
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
		return
	}

	am := &AggregateMessage{
		Topic:     topic,
		Key:       key,
		Value:     msg.Data,
		Timestamp: time.Now(),
		Context:   ctx,
		Done:      make(chan error, 1),
	}
	if err := pool.ProcessMessage(ctx, am); err != nil {
		logger.Logger.Error("nats enqueue failed",
			zap.String("topic", topic), zap.String("key", key), zap.Error(err))
		_ = msg.Nak()
		return
	}

	// 处理完成后再确认，保证at-least-once
	if err := <-am.Done; err != nil {
		logger.Logger.Error("nats handler failed",
			zap.String("topic", topic), zap.String("key", key), zap.Error(err))
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

// HealthCheck 检查连接状态
func (n *natsEventBus) HealthCheck(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return fmt.Errorf("nats eventbus is closed")
	}
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats connection lost, status: %v", n.conn.Status())
	}
	return nil
}

// Close 取消订阅并关闭连接
func (n *natsEventBus) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true

	for _, sub := range n.subs {
		_ = sub.Unsubscribe()
	}
	for _, pool := range n.pools {
		pool.Stop()
	}
	n.conn.Close()
	logger.Logger.Info("nats eventbus closed")
	return nil
}
