package config

import (
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/eventbus"
)

// EventBus 事件总线配置（直接复用技术层配置结构）
type EventBus = eventbus.EventBusConfig

var EventBusConfig = new(EventBus)
