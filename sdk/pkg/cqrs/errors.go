package cqrs

import (
	"errors"
	"fmt"
)

// 错误分类：
//   - 领域校验错误（*ValidationError）：终态，不重试，作为拒绝返回调用方
//   - 基础设施瞬时错误：由 resiliency 策略透明重试，处理器内部消化
//   - 未知消息类型 / 重放遇到不支持的事件 / 处理器未注册：致命配置或数据错误，
//     立即上抛，绝不重试

var (
	// ErrMessageTypeNotFound 消息类型名未注册（致命配置错误）
	ErrMessageTypeNotFound = errors.New("message type not found")

	// ErrHandlerNotFound 命令/请求处理器未注册（致命路由错误）
	// 与"处理器实例为nil"是不同的错误，必须可区分
	ErrHandlerNotFound = errors.New("handler not found")

	// ErrNilHandler 注册了nil处理器实例（编程错误）
	ErrNilHandler = errors.New("handler is nil")

	// ErrNotCompensable 命令按设计不可补偿（终结性操作）
	ErrNotCompensable = errors.New("command is not compensable")
)

// ValidationError 领域校验错误
// 命令不满足业务规则时返回，终态、不重试，带有可读的拒绝原因
type ValidationError struct {
	Field  string // 出错字段（可为空）
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
	}
	return "validation failed: " + e.Reason
}

// NewValidationError 创建领域校验错误
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError 判断是否为领域校验错误
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UnsupportedEventError 聚合重放时遇到不认识的事件类型
// 表示聚合版本不匹配或缺少事件注册，属于数据完整性级别的致命错误，
// 需要运维介入，绝不静默忽略
type UnsupportedEventError struct {
	AggregateName string
	EventType     string
}

func (e *UnsupportedEventError) Error() string {
	return fmt.Sprintf("aggregate %s does not support event %s", e.AggregateName, e.EventType)
}

// NewUnsupportedEventError 创建不支持事件错误
func NewUnsupportedEventError(aggregateName, eventType string) *UnsupportedEventError {
	return &UnsupportedEventError{AggregateName: aggregateName, EventType: eventType}
}

// IsFatal 判断错误是否致命（配置/数据完整性级别，不可重试）
func IsFatal(err error) bool {
	if errors.Is(err, ErrMessageTypeNotFound) || errors.Is(err, ErrHandlerNotFound) || errors.Is(err, ErrNilHandler) {
		return true
	}
	var ue *UnsupportedEventError
	return errors.As(err, &ue)
}

// IsTerminal 判断错误是否终态（致命或领域拒绝，二者都不应重试）
func IsTerminal(err error) bool {
	return IsFatal(err) || IsValidationError(err) || errors.Is(err, ErrNotCompensable)
}
