package cqrs

import (
	"context"
	"fmt"
	"sync"
)

// CommandHandler 命令处理器：纯函数 (命令, 当前聚合或nil) -> 产出事件
//
// Do 的约定：
//   - aggregate 为 nil 表示聚合尚未创建，处理器必须产出创建事件或拒绝命令
//   - 先校验命令字段（必填标识、值对象合法性），不满足业务规则时快速失败，
//     返回 *ValidationError，绝不静默no-op
//   - 返回空事件列表视为"接受但无变化"的成功提交
//
// Undo 执行补偿动作（多步saga/长事务场景）；按设计不可补偿的终结性命令
// 返回 ErrNotCompensable
type CommandHandler interface {
	Do(ctx context.Context, cmd Command, aggregate Aggregate) ([]Event, error)
	Undo(ctx context.Context, cmd Command, aggregate Aggregate) ([]Event, error)
}

// HandlerRegistry 命令处理器注册表（按命令类型名路由）
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewHandlerRegistry 创建处理器注册表
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]CommandHandler)}
}

// Register 注册命令处理器
// nil 处理器与重复注册都是编程错误
func (r *HandlerRegistry) Register(commandName string, handler CommandHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: command %s", ErrNilHandler, commandName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[commandName]; exists {
		return fmt.Errorf("handler already registered for command %s", commandName)
	}
	r.handlers[commandName] = handler
	return nil
}

// MustRegister 注册命令处理器，失败时panic（启动期装配使用）
func (r *HandlerRegistry) MustRegister(commandName string, handler CommandHandler) {
	if err := r.Register(commandName, handler); err != nil {
		panic(err)
	}
}

// Resolve 按命令类型名解析处理器
// 未注册返回 ErrHandlerNotFound（致命路由错误，区别于nil处理器实例）
func (r *HandlerRegistry) Resolve(commandName string) (CommandHandler, error) {
	r.mu.RLock()
	handler, ok := r.handlers[commandName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: command %s", ErrHandlerNotFound, commandName)
	}
	return handler, nil
}
