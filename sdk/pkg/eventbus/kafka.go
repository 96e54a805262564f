package eventbus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
)

// kafkaEventBus Kafka事件总线实现
// - 生产端：SyncProducer + Hash分区器，按key分区保证相同聚合的消息落在同一分区
// - 消费端：ConsumerGroup，每个主题一个消费组会话，分区内消息经Keyed-Worker池顺序处理
type kafkaEventBus struct {
	config   KafkaConfig
	producer sarama.SyncProducer
	client   sarama.Client

	mu        sync.Mutex
	consumers []*kafkaConsumer
	closed    bool

	keyedCfg KeyedWorkerPoolConfig
	rateCfg  RateLimitConfig
}

type kafkaConsumer struct {
	group  sarama.ConsumerGroup
	cancel context.CancelFunc
	done   chan struct{}
}

// NewKafkaEventBus 创建Kafka事件总线
func NewKafkaEventBus(cfg EventBusConfig) (EventBus, error) {
	kc := cfg.Kafka
	if len(kc.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	saramaCfg := buildSaramaConfig(kc)
	client, err := sarama.NewClient(kc.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.Logger.Info("kafka eventbus initialized", zap.Strings("brokers", kc.Brokers))
	return &kafkaEventBus{
		config:   kc,
		producer: producer,
		client:   client,
		keyedCfg: cfg.Keyed,
		rateCfg:  cfg.Rate,
	}, nil
}

func buildSaramaConfig(kc KafkaConfig) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_6_0_0

	// 生产者配置
	acks := kc.Producer.RequiredAcks
	if acks == 0 {
		acks = DefaultKafkaProducerRequiredAcks
	}
	cfg.Producer.RequiredAcks = sarama.RequiredAcks(acks)
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	// 按key哈希分区，保证分区内顺序
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	cfg.Producer.Flush.Frequency = durationOr(kc.Producer.FlushFrequency, DefaultKafkaProducerFlushFrequency)
	cfg.Producer.Flush.Messages = intOr(kc.Producer.FlushMessages, DefaultKafkaProducerFlushMessages)
	cfg.Producer.Retry.Max = intOr(kc.Producer.RetryMax, DefaultKafkaProducerRetryMax)
	cfg.Producer.Timeout = durationOr(kc.Producer.Timeout, DefaultKafkaProducerTimeout)

	// 消费者配置
	cfg.Consumer.Group.Session.Timeout = durationOr(kc.Consumer.SessionTimeout, DefaultKafkaConsumerSessionTimeout)
	cfg.Consumer.Group.Heartbeat.Interval = durationOr(kc.Consumer.HeartbeatInterval, DefaultKafkaConsumerHeartbeatInterval)
	cfg.Consumer.Return.Errors = true
	if kc.Consumer.AutoOffsetReset == "earliest" {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	return cfg
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Publish 发布消息，key作为Kafka消息key参与哈希分区
func (k *kafkaEventBus) Publish(ctx context.Context, topic string, key string, message []byte) error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return fmt.Errorf("kafka eventbus is closed")
	}
	k.mu.Unlock()

	if err := ValidateTopicName(topic); err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(message),
	}
	if key != "" {
		msg.Key = sarama.StringEncoder(key)
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		logger.Logger.Error("kafka publish failed",
			zap.String("topic", topic), zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to publish to kafka: %w", err)
	}

	logger.Logger.Debug("kafka message published",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Subscribe 订阅主题：启动消费组会话，消息经Keyed-Worker池处理后提交位移
func (k *kafkaEventBus) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return fmt.Errorf("kafka eventbus is closed")
	}
	if err := ValidateTopicName(topic); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("handler is nil")
	}

	groupID := k.config.Consumer.GroupID
	if groupID == "" {
		groupID = "jxt-cqrs-" + topic
	}
	group, err := sarama.NewConsumerGroupFromClient(groupID, k.client)
	if err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	consumeCtx, cancel := context.WithCancel(context.Background())
	consumer := &kafkaConsumer{group: group, cancel: cancel, done: make(chan struct{})}
	k.consumers = append(k.consumers, consumer)

	gh := &kafkaGroupHandler{
		pool:    NewKeyedWorkerPool(k.keyedCfg, handler),
		limiter: NewRateLimiter(k.rateCfg),
		handler: handler,
		topic:   topic,
	}

	go func() {
		defer close(consumer.done)
		defer gh.pool.Stop()
		for {
			if err := group.Consume(consumeCtx, []string{topic}, gh); err != nil {
				logger.Logger.Error("kafka consume error",
					zap.String("topic", topic), zap.Error(err))
			}
			if consumeCtx.Err() != nil {
				return
			}
			// 会话被重平衡打断后重新加入
			time.Sleep(time.Second)
		}
	}()

	logger.Logger.Info("kafka eventbus subscribed",
		zap.String("topic", topic), zap.String("group", groupID))
	return nil
}

// kafkaGroupHandler 消费组会话处理器
type kafkaGroupHandler struct {
	pool    *KeyedWorkerPool
	limiter *RateLimiter
	handler MessageHandler
	topic   string
}

func (h *kafkaGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *kafkaGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *kafkaGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := h.limiter.Wait(session.Context()); err != nil {
			return err
		}

		key := string(msg.Key)
		if key == "" {
			// 无key消息直接处理
			if err := h.handler(session.Context(), msg.Value); err != nil {
				logger.Logger.Error("kafka handler failed",
					zap.String("topic", h.topic), zap.Error(err))
				// at-least-once：处理失败不提交位移，等待重新投递
				continue
			}
			session.MarkMessage(msg, "")
			continue
		}

		am := &AggregateMessage{
			Topic:     msg.Topic,
			Key:       key,
			Value:     msg.Value,
			Timestamp: msg.Timestamp,
			Context:   session.Context(),
			Done:      make(chan error, 1),
		}
		if err := h.pool.ProcessMessage(session.Context(), am); err != nil {
			logger.Logger.Error("kafka enqueue failed",
				zap.String("topic", h.topic), zap.String("key", key), zap.Error(err))
			continue
		}

		// 等待处理完成再提交位移，保证at-least-once
		select {
		case err := <-am.Done:
			if err != nil {
				logger.Logger.Error("kafka handler failed",
					zap.String("topic", h.topic), zap.String("key", key), zap.Error(err))
				continue
			}
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return session.Context().Err()
		}
	}
	return nil
}

// HealthCheck 检查broker连通性
func (k *kafkaEventBus) HealthCheck(ctx context.Context) error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return fmt.Errorf("kafka eventbus is closed")
	}
	k.mu.Unlock()

	brokers := k.client.Brokers()
	if len(brokers) == 0 {
		return fmt.Errorf("no kafka brokers available")
	}
	for _, b := range brokers {
		if ok, _ := b.Connected(); ok {
			return nil
		}
	}
	// 没有已连接的broker时尝试刷新元数据
	if err := k.client.RefreshMetadata(); err != nil {
		return fmt.Errorf("kafka health check failed: %w", err)
	}
	return nil
}

// Close 关闭生产者、所有消费组和客户端
func (k *kafkaEventBus) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	consumers := k.consumers
	k.mu.Unlock()

	for _, c := range consumers {
		c.cancel()
		<-c.done
		_ = c.group.Close()
	}
	if err := k.producer.Close(); err != nil {
		logger.Logger.Error("failed to close kafka producer", zap.Error(err))
	}
	if err := k.client.Close(); err != nil {
		return fmt.Errorf("failed to close kafka client: %w", err)
	}
	logger.Logger.Info("kafka eventbus closed")
	return nil
}
