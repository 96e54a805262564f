package cqrs

import (
	"errors"
	"fmt"
	"time"

	jxtjson "github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/json"
)

// *State 是消息的持久化/发布形态：{ Date, MessageType, Message, Metadata }
// 契约：经过序列化往返后 MessageId / CausationId / CorrelationId 与消息负载
// 逐位不变（JSON 空白除外）

// CommandState 命令的传输/存储形态
type CommandState struct {
	Date          time.Time          `json:"date"`
	MessageType   string             `json:"messageType"`
	AggregateID   AggregateID        `json:"aggregateId"`
	AggregateName string             `json:"aggregateName"`
	Message       jxtjson.RawMessage `json:"message"`
	Metadata      Metadata           `json:"metadata"`
}

// NewCommandState 将命令封装为传输形态
func NewCommandState(cmd Command, md Metadata) (*CommandState, error) {
	if cmd == nil {
		return nil, errors.New("command is nil")
	}
	payload, err := jxtjson.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal command %s: %w", cmd.MessageName(), err)
	}
	return &CommandState{
		Date:          time.Now(),
		MessageType:   cmd.MessageName(),
		AggregateID:   cmd.TargetAggregateID(),
		AggregateName: cmd.TargetAggregateName(),
		Message:       payload,
		Metadata:      md,
	}, nil
}

// Validate 校验命令传输形态
func (s *CommandState) Validate() error {
	if s.MessageType == "" {
		return errors.New("messageType is required")
	}
	if len(s.Message) == 0 {
		return errors.New("message is required")
	}
	if err := s.Metadata.Validate(); err != nil {
		return err
	}
	return s.AggregateID.Validate()
}

// Decode 根据注册表还原具体命令类型
func (s *CommandState) Decode(registry *Registry) (Command, error) {
	return registry.UnmarshalCommand(s.MessageType, s.Message)
}

// EventState 事件的传输/存储形态
// EventVersion 是聚合内单调无缺口的提交版本号，由命令处理器（单写者）分配
type EventState struct {
	Date          time.Time          `json:"date"`
	MessageType   string             `json:"messageType"`
	AggregateID   AggregateID        `json:"aggregateId"`
	AggregateName string             `json:"aggregateName"`
	EventVersion  int64              `json:"eventVersion"`
	Message       jxtjson.RawMessage `json:"message"`
	Metadata      Metadata           `json:"metadata"`
}

// NewEventState 将事件封装为传输形态
// version 为处理器分配的聚合内版本号
func NewEventState(evt Event, version int64, md Metadata) (*EventState, error) {
	if evt == nil {
		return nil, errors.New("event is nil")
	}
	payload, err := jxtjson.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event %s: %w", evt.MessageName(), err)
	}
	return &EventState{
		Date:          time.Now(),
		MessageType:   evt.MessageName(),
		AggregateID:   evt.DefaultAggregateID(),
		AggregateName: evt.DefaultAggregateName(),
		EventVersion:  version,
		Message:       payload,
		Metadata:      md,
	}, nil
}

// Validate 校验事件传输形态
func (s *EventState) Validate() error {
	if s.MessageType == "" {
		return errors.New("messageType is required")
	}
	if s.EventVersion <= 0 {
		return errors.New("eventVersion must be positive")
	}
	if len(s.Message) == 0 {
		return errors.New("message is required")
	}
	if err := s.Metadata.Validate(); err != nil {
		return err
	}
	return s.AggregateID.Validate()
}

// Decode 根据注册表还原具体事件类型
func (s *EventState) Decode(registry *Registry) (Event, error) {
	return registry.UnmarshalEvent(s.MessageType, s.Message)
}

// ToBytes 序列化为总线消息字节
func (s *EventState) ToBytes() ([]byte, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return jxtjson.Marshal(s)
}

// EventStateFromBytes 从总线消息字节还原事件形态
func EventStateFromBytes(data []byte) (*EventState, error) {
	var state EventState
	if err := jxtjson.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event state: %w", err)
	}
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("invalid event state: %w", err)
	}
	return &state, nil
}

// NotificationState 通知的传输形态
type NotificationState struct {
	Date        time.Time          `json:"date"`
	MessageType string             `json:"messageType"`
	Message     jxtjson.RawMessage `json:"message"`
	Metadata    Metadata           `json:"metadata"`
}

// NewNotificationState 将通知封装为传输形态
func NewNotificationState(n Notification, md Metadata) (*NotificationState, error) {
	if n == nil {
		return nil, errors.New("notification is nil")
	}
	payload, err := jxtjson.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal notification %s: %w", n.MessageName(), err)
	}
	return &NotificationState{
		Date:        time.Now(),
		MessageType: n.MessageName(),
		Message:     payload,
		Metadata:    md,
	}, nil
}

// Decode 根据注册表还原具体通知类型
func (s *NotificationState) Decode(registry *Registry) (Notification, error) {
	return registry.UnmarshalNotification(s.MessageType, s.Message)
}

// ToBytes 序列化为总线消息字节
func (s *NotificationState) ToBytes() ([]byte, error) {
	return jxtjson.Marshal(s)
}

// NotificationStateFromBytes 从总线消息字节还原通知形态
func NotificationStateFromBytes(data []byte) (*NotificationState, error) {
	var state NotificationState
	if err := jxtjson.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification state: %w", err)
	}
	return &state, nil
}

// RequestState 同步请求的传输形态
type RequestState struct {
	Date        time.Time          `json:"date"`
	MessageType string             `json:"messageType"`
	Message     jxtjson.RawMessage `json:"message"`
	Metadata    Metadata           `json:"metadata"`
}

// Decode 根据注册表还原具体请求类型
func (s *RequestState) Decode(registry *Registry) (Request, error) {
	return registry.UnmarshalRequest(s.MessageType, s.Message)
}
