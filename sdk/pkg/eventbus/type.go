package eventbus

import (
	"context"
	"time"
)

// MessageHandler 消息处理器函数类型
type MessageHandler func(ctx context.Context, message []byte) error

// EventBus 技术层事件总线接口（基础设施层使用）
//
// 投递语义统一为 at-least-once：订阅方必须对重复投递幂等。
// key 是分区键（聚合ID的字符串形式）：同一key的消息保持发布顺序投递，
// 不同key之间不承诺任何顺序。
type EventBus interface {
	// Publish 发布消息到指定主题，key为分区键
	Publish(ctx context.Context, topic string, key string, message []byte) error

	// Subscribe 订阅指定主题的消息
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// HealthCheck 健康检查
	HealthCheck(ctx context.Context) error

	// Close 关闭连接
	Close() error
}

// EventBusConfig 事件总线配置
type EventBusConfig struct {
	Type  string      `mapstructure:"type"` // kafka, nats, memory
	Kafka KafkaConfig `mapstructure:"kafka"`
	NATS  NATSConfig  `mapstructure:"nats"`

	// 订阅端配置
	Keyed KeyedWorkerPoolConfig `mapstructure:"keyed"`
	Rate  RateLimitConfig       `mapstructure:"rate"`

	// 健康检查周期
	HealthCheckInterval time.Duration `mapstructure:"healthCheckInterval"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers  []string       `mapstructure:"brokers"`
	Producer ProducerConfig `mapstructure:"producer"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
}

// ProducerConfig 生产者配置
type ProducerConfig struct {
	RequiredAcks   int           `mapstructure:"requiredAcks"`
	FlushFrequency time.Duration `mapstructure:"flushFrequency"`
	FlushMessages  int           `mapstructure:"flushMessages"`
	RetryMax       int           `mapstructure:"retryMax"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	GroupID           string        `mapstructure:"groupId"`
	AutoOffsetReset   string        `mapstructure:"autoOffsetReset"`
	SessionTimeout    time.Duration `mapstructure:"sessionTimeout"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeatInterval"`
}

// NATSConfig NATS JetStream配置
type NATSConfig struct {
	URLs              []string        `mapstructure:"urls"`
	ClientID          string          `mapstructure:"clientId"`
	MaxReconnects     int             `mapstructure:"maxReconnects"`
	ReconnectWait     time.Duration   `mapstructure:"reconnectWait"`
	ConnectionTimeout time.Duration   `mapstructure:"connectionTimeout"`
	JetStream         JetStreamConfig `mapstructure:"jetstream"`
}

// JetStreamConfig JetStream配置
type JetStreamConfig struct {
	PublishTimeout time.Duration `mapstructure:"publishTimeout"`
	AckWait        time.Duration `mapstructure:"ackWait"`
	MaxDeliver     int           `mapstructure:"maxDeliver"`
	DurableName    string        `mapstructure:"durableName"`
	StreamReplicas int           `mapstructure:"streamReplicas"`
	StreamMaxAge   time.Duration `mapstructure:"streamMaxAge"`
}

// Metrics 监控指标
type Metrics struct {
	MessagesPublished int64     `json:"messagesPublished"`
	MessagesConsumed  int64     `json:"messagesConsumed"`
	PublishErrors     int64     `json:"publishErrors"`
	ConsumeErrors     int64     `json:"consumeErrors"`
	LastHealthCheck   time.Time `json:"lastHealthCheck"`
	HealthCheckStatus string    `json:"healthCheckStatus"`
}
