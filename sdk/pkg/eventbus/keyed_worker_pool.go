package eventbus

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"
)

// AggregateMessage 携带分区键的总线消息（用于 Keyed-Worker 池）
type AggregateMessage struct {
	Topic     string
	Key       string
	Value     []byte
	Timestamp time.Time
	Context   context.Context
	Done      chan error
}

// KeyedWorkerPool 固定大小的按键worker池
// - 相同key通过一致性哈希路由到同一个worker
// - 每个worker顺序处理消息，保证按键（聚合）的投递顺序
// - 每个worker的队列有界，入队最多等待 WaitTimeout
// - 入队超时返回 ErrWorkerQueueFull，调用方可以施加背压

var ErrWorkerQueueFull = errors.New("keyed worker queue full")

// KeyedWorkerPoolConfig 池配置
type KeyedWorkerPoolConfig struct {
	WorkerCount int           `mapstructure:"workerCount"` // worker数量
	QueueSize   int           `mapstructure:"queueSize"`   // 每个worker的队列容量（有界）
	WaitTimeout time.Duration `mapstructure:"waitTimeout"` // 队列满时的最大入队等待时间
}

// KeyedWorkerPool 按 Key 将 AggregateMessage 路由到worker
// 池按订阅/主题创建，以便调用该主题的处理器
type KeyedWorkerPool struct {
	cfg     KeyedWorkerPoolConfig
	handler MessageHandler

	workers []chan *AggregateMessage
	wg      sync.WaitGroup
	stopCh  chan struct{}
	once    sync.Once
}

// NewKeyedWorkerPool 创建按键worker池
func NewKeyedWorkerPool(cfg KeyedWorkerPoolConfig, handler MessageHandler) *KeyedWorkerPool {
	// 使用默认值（如果未配置）
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = DefaultKeyedWorkerCount
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultKeyedQueueSize
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultKeyedWaitTimeout
	}

	kp := &KeyedWorkerPool{
		cfg:     cfg,
		handler: handler,
		workers: make([]chan *AggregateMessage, cfg.WorkerCount),
		stopCh:  make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		ch := make(chan *AggregateMessage, cfg.QueueSize)
		kp.workers[i] = ch
		kp.wg.Add(1)
		go kp.runWorker(ch)
	}

	return kp
}

func (kp *KeyedWorkerPool) runWorker(ch chan *AggregateMessage) {
	defer kp.wg.Done()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			// 路由稳定，顺序处理即保证按键顺序
			err := kp.handler(msg.Context, msg.Value)
			// 非阻塞回传结果
			select {
			case msg.Done <- err:
			default:
			}
		case <-kp.stopCh:
			return
		}
	}
}

// ProcessMessage 将消息路由到对应worker并入队
func (kp *KeyedWorkerPool) ProcessMessage(ctx context.Context, msg *AggregateMessage) error {
	// 路由必须有key；缺失时拒绝，调用方自行回退
	if msg.Key == "" {
		return errors.New("key required for keyed worker pool")
	}

	idx := kp.hashToIndex(msg.Key)
	ch := kp.workers[idx]

	// 快速路径入队
	select {
	case ch <- msg:
		return nil
	default:
	}

	// 有界等待，避免busy-loop；超时后由调用方施加背压
	timer := time.NewTimer(kp.cfg.WaitTimeout)
	defer timer.Stop()

	select {
	case ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrWorkerQueueFull
	}
}

// Stop 停止所有worker并排空队列
func (kp *KeyedWorkerPool) Stop() {
	kp.once.Do(func() {
		close(kp.stopCh)
		for _, ch := range kp.workers {
			close(ch)
		}
	})
	kp.wg.Wait()
}

func (kp *KeyedWorkerPool) hashToIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(kp.workers)))
}
