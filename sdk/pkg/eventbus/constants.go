package eventbus

import "time"

// ========== Keyed-Worker 池默认配置 ==========

const (
	// DefaultKeyedWorkerCount 默认Worker数量
	// 1024个Worker可以提供良好的并发度，同时避免过多的goroutine开销
	DefaultKeyedWorkerCount = 1024

	// DefaultKeyedQueueSize 默认每个Worker的队列大小
	// 1000个消息的队列可以缓冲短时间的流量突发
	DefaultKeyedQueueSize = 1000

	// DefaultKeyedWaitTimeout 默认入队等待超时时间
	// 200ms的超时时间可以快速失败，允许调用方及时感知背压
	DefaultKeyedWaitTimeout = 200 * time.Millisecond
)

// ========== 健康检查默认配置 ==========

const (
	// DefaultHealthCheckInterval 默认健康检查间隔
	// 30秒的间隔可以及时发现问题，同时避免过于频繁的检查
	DefaultHealthCheckInterval = 30 * time.Second
)

// ========== Kafka 默认配置 ==========

const (
	// DefaultKafkaProducerRequiredAcks 默认生产者确认级别
	// 1表示等待leader确认，平衡性能和可靠性
	DefaultKafkaProducerRequiredAcks = 1

	// DefaultKafkaProducerFlushFrequency 默认生产者刷新频率
	DefaultKafkaProducerFlushFrequency = 500 * time.Millisecond

	// DefaultKafkaProducerFlushMessages 默认生产者刷新消息数
	DefaultKafkaProducerFlushMessages = 100

	// DefaultKafkaProducerRetryMax 默认生产者最大重试次数
	DefaultKafkaProducerRetryMax = 3

	// DefaultKafkaProducerTimeout 默认生产者超时时间
	DefaultKafkaProducerTimeout = 10 * time.Second

	// DefaultKafkaConsumerSessionTimeout 默认消费者会话超时时间
	DefaultKafkaConsumerSessionTimeout = 30 * time.Second

	// DefaultKafkaConsumerHeartbeatInterval 默认消费者心跳间隔
	DefaultKafkaConsumerHeartbeatInterval = 3 * time.Second
)

// ========== NATS 默认配置 ==========

const (
	// DefaultNATSMaxReconnects 默认NATS最大重连次数
	DefaultNATSMaxReconnects = 10

	// DefaultNATSReconnectWait 默认NATS重连等待时间
	DefaultNATSReconnectWait = 2 * time.Second

	// DefaultNATSConnectionTimeout 默认NATS连接超时时间
	DefaultNATSConnectionTimeout = 10 * time.Second

	// DefaultNATSPublishTimeout 默认NATS发布超时时间
	DefaultNATSPublishTimeout = 5 * time.Second

	// DefaultNATSAckWait 默认NATS确认等待时间
	DefaultNATSAckWait = 30 * time.Second

	// DefaultNATSMaxDeliver 默认NATS最大投递次数
	DefaultNATSMaxDeliver = 3

	// DefaultNATSStreamMaxAge 默认NATS流最大保留时间
	DefaultNATSStreamMaxAge = 24 * time.Hour
)

// ========== 流量控制默认配置 ==========

const (
	// DefaultRateLimit 默认速率限制（消息/秒）
	DefaultRateLimit = 1000.0

	// DefaultRateBurst 默认突发流量限制
	DefaultRateBurst = 2000
)

// KeyHeader 跨总线传递分区键的消息头
const KeyHeader = "X-Aggregate-ID"
