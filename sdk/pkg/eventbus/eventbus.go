package eventbus

import (
	"fmt"
)

// NewEventBus 根据配置创建事件总线实例
func NewEventBus(cfg EventBusConfig) (EventBus, error) {
	switch cfg.Type {
	case "kafka":
		return NewKafkaEventBus(cfg)
	case "nats":
		return NewNATSEventBus(cfg)
	case "memory", "":
		return NewMemoryEventBus(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported eventbus type: %s", cfg.Type)
	}
}
