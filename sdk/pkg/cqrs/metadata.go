package cqrs

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Metadata 消息元数据
// 跨组件边界传递的每条消息（命令、事件、查询、通知）都携带一份 Metadata，
// 记录消息身份、因果链路和发起用户
type Metadata struct {
	MessageID         string    `json:"messageId"`               // 消息ID（创建时生成，全局唯一）
	CausationID       string    `json:"causationId,omitempty"`   // 引发本消息的消息ID（空表示根因消息）
	CorrelationID     string    `json:"correlationId,omitempty"` // 因果链关联ID（空表示本消息即链路起点）
	TenantID          string    `json:"tenantId,omitempty"`      // 租户ID（多租户支持）
	UserName          string    `json:"userName,omitempty"`      // 发起用户
	UserDateTime      time.Time `json:"userDateTime"`            // 用户本地时间
	SystemUTCDateTime time.Time `json:"systemUtcDateTime"`       // 系统UTC时间
}

// NewMetadata 创建根因消息的元数据
// MessageID 使用 UUID v7（时间排序，适合作为存储主键和事件溯源）
func NewMetadata(userName string) Metadata {
	now := time.Now()
	return Metadata{
		MessageID:         newMessageID(),
		UserName:          userName,
		UserDateTime:      now,
		SystemUTCDateTime: now.UTC(),
	}
}

// Derive 派生子消息的元数据
// CausationID 指向当前消息，CorrelationID 继承整条因果链
func (m Metadata) Derive() Metadata {
	now := time.Now()
	return Metadata{
		MessageID:         newMessageID(),
		CausationID:       m.MessageID,
		CorrelationID:     m.EffectiveCorrelationID(),
		TenantID:          m.TenantID,
		UserName:          m.UserName,
		UserDateTime:      now,
		SystemUTCDateTime: now.UTC(),
	}
}

// EffectiveCorrelationID 返回归一化的关联ID
// CorrelationID 缺省时本消息就是链路起点，以自身 MessageID 兜底
func (m Metadata) EffectiveCorrelationID() string {
	if m.CorrelationID != "" {
		return m.CorrelationID
	}
	return m.MessageID
}

// IsRoot 判断是否为根因消息（没有任何上游消息）
func (m Metadata) IsRoot() bool {
	return m.CausationID == ""
}

// Validate 校验元数据
func (m Metadata) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return errors.New("messageId is required")
	}
	if m.SystemUTCDateTime.IsZero() {
		return errors.New("systemUtcDateTime is required")
	}
	return nil
}

func newMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 理论上不会失败（除非系统时钟异常），回退到 UUID v4
		id = uuid.New()
	}
	return id.String()
}

// Envelope 不可变的消息包络：消息本体 + 元数据
type Envelope[T Message] struct {
	Message  T        `json:"message"`
	Metadata Metadata `json:"metadata"`
}

// NewEnvelope 创建消息包络
func NewEnvelope[T Message](msg T, md Metadata) Envelope[T] {
	return Envelope[T]{Message: msg, Metadata: md}
}
