package cqrs

import (
	"fmt"
	"sync"

	jxtjson "github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/json"
)

// Registry 封闭的消息类型注册表
// 消息类型名到具体类型的解析通过启动时的显式注册完成，
// 不做任何运行期反射扫描。重复注册视为编程错误，直接panic。
type Registry struct {
	mu            sync.RWMutex
	commands      map[string]func() Command
	events        map[string]func() Event
	requests      map[string]func() Request
	notifications map[string]func() Notification
	aggregates    map[string]AggregateFactory
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{
		commands:      make(map[string]func() Command),
		events:        make(map[string]func() Event),
		requests:      make(map[string]func() Request),
		notifications: make(map[string]func() Notification),
		aggregates:    make(map[string]AggregateFactory),
	}
}

// DefaultRegistry 进程级默认注册表
// 各业务模块在 init/startup 阶段向其注册自己的消息类型
var DefaultRegistry = NewRegistry()

// RegisterCommand 注册命令类型（名字取自工厂实例的 MessageName）
func (r *Registry) RegisterCommand(fn func() Command) {
	if fn == nil {
		panic("cqrs: cannot register nil command factory")
	}
	probe := fn()
	if probe == nil {
		panic("cqrs: command factory returned nil")
	}
	name := probe.MessageName()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		panic(fmt.Sprintf("cqrs: command already registered: %s", name))
	}
	r.commands[name] = fn
}

// RegisterEvent 注册事件类型
func (r *Registry) RegisterEvent(fn func() Event) {
	if fn == nil {
		panic("cqrs: cannot register nil event factory")
	}
	probe := fn()
	if probe == nil {
		panic("cqrs: event factory returned nil")
	}
	name := probe.MessageName()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.events[name]; exists {
		panic(fmt.Sprintf("cqrs: event already registered: %s", name))
	}
	r.events[name] = fn
}

// RegisterRequest 注册请求类型
func (r *Registry) RegisterRequest(fn func() Request) {
	if fn == nil {
		panic("cqrs: cannot register nil request factory")
	}
	probe := fn()
	if probe == nil {
		panic("cqrs: request factory returned nil")
	}
	name := probe.MessageName()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.requests[name]; exists {
		panic(fmt.Sprintf("cqrs: request already registered: %s", name))
	}
	r.requests[name] = fn
}

// RegisterNotification 注册通知类型
func (r *Registry) RegisterNotification(fn func() Notification) {
	if fn == nil {
		panic("cqrs: cannot register nil notification factory")
	}
	probe := fn()
	if probe == nil {
		panic("cqrs: notification factory returned nil")
	}
	name := probe.MessageName()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.notifications[name]; exists {
		panic(fmt.Sprintf("cqrs: notification already registered: %s", name))
	}
	r.notifications[name] = fn
}

// RegisterAggregate 注册聚合工厂
// 工厂必须返回零值（未初始化）的聚合实例
func (r *Registry) RegisterAggregate(fn AggregateFactory) {
	if fn == nil {
		panic("cqrs: cannot register nil aggregate factory")
	}
	probe := fn()
	if probe == nil {
		panic("cqrs: aggregate factory returned nil")
	}
	name := probe.AggregateName()

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.aggregates[name]; exists {
		panic(fmt.Sprintf("cqrs: aggregate already registered: %s", name))
	}
	r.aggregates[name] = fn
}

// NewCommand 按类型名创建命令实例
func (r *Registry) NewCommand(name string) (Command, error) {
	r.mu.RLock()
	fn, ok := r.commands[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: command %s", ErrMessageTypeNotFound, name)
	}
	return fn(), nil
}

// NewEvent 按类型名创建事件实例
func (r *Registry) NewEvent(name string) (Event, error) {
	r.mu.RLock()
	fn, ok := r.events[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrMessageTypeNotFound, name)
	}
	return fn(), nil
}

// NewRequest 按类型名创建请求实例
func (r *Registry) NewRequest(name string) (Request, error) {
	r.mu.RLock()
	fn, ok := r.requests[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: request %s", ErrMessageTypeNotFound, name)
	}
	return fn(), nil
}

// NewNotification 按类型名创建通知实例
func (r *Registry) NewNotification(name string) (Notification, error) {
	r.mu.RLock()
	fn, ok := r.notifications[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: notification %s", ErrMessageTypeNotFound, name)
	}
	return fn(), nil
}

// NewAggregate 按聚合名创建零值聚合实例
func (r *Registry) NewAggregate(name string) (Aggregate, error) {
	r.mu.RLock()
	fn, ok := r.aggregates[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: aggregate %s", ErrMessageTypeNotFound, name)
	}
	return fn(), nil
}

// AggregateNames 已注册的聚合名列表（用于路由/端点注册）
func (r *Registry) AggregateNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.aggregates))
	for name := range r.aggregates {
		names = append(names, name)
	}
	return names
}

// UnmarshalCommand 按类型名反序列化命令
// 反序列化工厂与领域有效构造路径分离：先经工厂得到具体类型实例，再填充字段
func (r *Registry) UnmarshalCommand(name string, data []byte) (Command, error) {
	cmd, err := r.NewCommand(name)
	if err != nil {
		return nil, err
	}
	if err := jxtjson.Unmarshal(data, cmd); err != nil {
		return nil, fmt.Errorf("failed to unmarshal command %s: %w", name, err)
	}
	return cmd, nil
}

// UnmarshalEvent 按类型名反序列化事件
func (r *Registry) UnmarshalEvent(name string, data []byte) (Event, error) {
	evt, err := r.NewEvent(name)
	if err != nil {
		return nil, err
	}
	if err := jxtjson.Unmarshal(data, evt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event %s: %w", name, err)
	}
	return evt, nil
}

// UnmarshalNotification 按类型名反序列化通知
func (r *Registry) UnmarshalNotification(name string, data []byte) (Notification, error) {
	n, err := r.NewNotification(name)
	if err != nil {
		return nil, err
	}
	if err := jxtjson.Unmarshal(data, n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification %s: %w", name, err)
	}
	return n, nil
}

// UnmarshalRequest 按类型名反序列化请求
func (r *Registry) UnmarshalRequest(name string, data []byte) (Request, error) {
	req, err := r.NewRequest(name)
	if err != nil {
		return nil, err
	}
	if err := jxtjson.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request %s: %w", name, err)
	}
	return req, nil
}
