package cqrs

import (
	"errors"
	"fmt"
	"strings"
)

// AggregateID 聚合复合标识 (PartitionId, CompanyId?, OriginId?, Id)
// 身份形态差异（仅分区 vs 分区+公司+来源）通过字段留空表达，而不是继承层次。
// 聚合身份创建后不可变更。
type AggregateID struct {
	PartitionID string `json:"partitionId"`
	CompanyID   string `json:"companyId,omitempty"`
	OriginID    string `json:"originId,omitempty"`
	ID          string `json:"id"`
}

// String 输出稳定的路由键（同时作为总线分区键和actor寻址键）
// 四段固定顺序拼接，空段保留占位，保证不同形态之间不会歧义
func (a AggregateID) String() string {
	return a.PartitionID + ":" + a.CompanyID + ":" + a.OriginID + ":" + a.ID
}

// IsZero 判断是否为零值标识
func (a AggregateID) IsZero() bool {
	return a.PartitionID == "" && a.CompanyID == "" && a.OriginID == "" && a.ID == ""
}

// Validate 校验聚合标识
func (a AggregateID) Validate() error {
	if strings.TrimSpace(a.PartitionID) == "" {
		return errors.New("partitionId is required")
	}
	if strings.TrimSpace(a.ID) == "" {
		return errors.New("id is required")
	}
	for _, segment := range []string{a.PartitionID, a.CompanyID, a.OriginID, a.ID} {
		if err := validateIDSegment(segment); err != nil {
			return err
		}
	}
	return nil
}

// validateIDSegment 校验标识片段的字符集
// 允许的字符：A-Z a-z 0-9 _ - . /
func validateIDSegment(segment string) error {
	if len(segment) > 256 {
		return errors.New("aggregate id segment too long (max 256 characters)")
	}
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.' || r == '/':
		default:
			return fmt.Errorf("aggregate id segment contains invalid character: %c", r)
		}
	}
	return nil
}

// Aggregate 聚合：一致性边界，可重放的状态机
//
// Apply 必须是纯函数：无 I/O、无副作用，对 (当前状态, 事件) 完全确定。
// 返回应用事件后的新状态，以及由该事件进一步引发的事件（通常为空）。
// 未知事件类型返回 *UnsupportedEventError（致命，属于编程/版本错误，不可重试）。
//
// 版本号由命令处理器独占管理（单写者），聚合本身不维护版本。
type Aggregate interface {
	// Identity 聚合复合标识，创建后不变
	Identity() AggregateID

	// AggregateName 聚合类型的稳定判别名
	AggregateName() string

	// IsInitialized 零值（尚未创建）状态返回 false
	// 只有应用了首个创建事件后才返回 true
	IsInitialized() bool

	// Apply 应用事件，返回 (新状态, 进一步引发的事件)
	Apply(event Event) (Aggregate, []Event, error)
}

// AggregateFactory 聚合工厂：返回零值（未初始化）聚合实例
// 快照反序列化与事件重放都从工厂产出的零值开始，
// 绝不通过"序列化专用构造"之类的半成品实例进入业务逻辑
type AggregateFactory func() Aggregate
