package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/logger"
	"go.uber.org/zap"
)

// RequestBus 同步请求总线（进程内派发）
// 与 fire-and-forget 的命令不同，请求同步返回响应。
// 每个请求类型恰好一个处理器；找不到处理器是致命的配置错误
type RequestBus struct {
	registry *cqrs.Registry

	mu       sync.RWMutex
	handlers map[string]cqrs.RequestHandler
}

// NewRequestBus 创建请求总线
func NewRequestBus(registry *cqrs.Registry) *RequestBus {
	return &RequestBus{
		registry: registry,
		handlers: make(map[string]cqrs.RequestHandler),
	}
}

// Register 注册请求处理器
func (b *RequestBus) Register(messageName string, handler cqrs.RequestHandler) error {
	if handler == nil {
		return cqrs.ErrNilHandler
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.handlers[messageName]; exists {
		return fmt.Errorf("request handler already registered for %s", messageName)
	}
	b.handlers[messageName] = handler
	return nil
}

// MustRegister 注册请求处理器，失败时panic（启动期配置错误应立即暴露）
func (b *RequestBus) MustRegister(messageName string, handler cqrs.RequestHandler) {
	if err := b.Register(messageName, handler); err != nil {
		panic(err)
	}
}

// Submit 同步提交请求并返回响应
func (b *RequestBus) Submit(ctx context.Context, req cqrs.Request, md cqrs.Metadata) (interface{}, error) {
	if req == nil {
		return nil, fmt.Errorf("request is nil")
	}

	b.mu.RLock()
	handler, ok := b.handlers[req.MessageName()]
	b.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: request %s", cqrs.ErrHandlerNotFound, req.MessageName())
	}

	resp, err := handler.Handle(ctx, req, md)
	if err != nil {
		logger.Logger.Warn("request handler failed",
			zap.String("messageType", req.MessageName()),
			zap.String("messageId", md.MessageID),
			zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// SubmitState 从传输形态解码请求并同步处理
func (b *RequestBus) SubmitState(ctx context.Context, state *cqrs.RequestState) (interface{}, error) {
	req, err := state.Decode(b.registry)
	if err != nil {
		return nil, err
	}
	return b.Submit(ctx, req, state.Metadata)
}
