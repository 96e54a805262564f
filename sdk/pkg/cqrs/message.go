package cqrs

import "context"

// Message 所有跨边界消息的公共接口
// MessageName 是注册表中的稳定类型名，序列化形式写入 *State.MessageType
type Message interface {
	MessageName() string
}

// Command 改变状态的意图，必须能够定位目标聚合
type Command interface {
	Message

	// TargetAggregateID 命令要寻址的聚合复合标识
	TargetAggregateID() AggregateID

	// TargetAggregateName 聚合类型的稳定判别名（用于 actor/topic 路由）
	TargetAggregateName() string
}

// Event 已经发生的不可变事实
// 事件必须携带足够的身份字段以定位所属聚合
type Event interface {
	Message

	// DefaultAggregateID 事件所属聚合的复合标识
	DefaultAggregateID() AggregateID

	// DefaultAggregateName 事件所属聚合的稳定判别名
	DefaultAggregateName() string
}

// Notification 广播型消息，不要求聚合身份
type Notification interface {
	Message
}

// Request 同步请求（区别于 fire-and-forget 的命令）
type Request interface {
	Message
}

// RequestHandler 请求处理器（同步请求/响应语义）
type RequestHandler interface {
	// Handle 处理请求并返回响应体
	Handle(ctx context.Context, req Request, md Metadata) (interface{}, error)
}

// RequestHandlerFunc 函数适配器
type RequestHandlerFunc func(ctx context.Context, req Request, md Metadata) (interface{}, error)

func (f RequestHandlerFunc) Handle(ctx context.Context, req Request, md Metadata) (interface{}, error) {
	return f(ctx, req, md)
}
