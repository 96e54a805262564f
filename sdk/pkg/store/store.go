package store

import (
	"context"
	"errors"
	"time"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
)

var (
	// ErrKeyNotFound Get 在键不存在时返回（Find 则返回 ok=false，不报错）
	ErrKeyNotFound = errors.New("key not found")

	// ErrVersionConflict 追加事件时期望版本与存储中最新版本不一致
	// 正常情况下单写者actor不会触发；出现即说明写者约束被破坏
	ErrVersionConflict = errors.New("event version conflict")

	// ErrSnapshotNotFound 聚合尚无快照
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// KeyValueStore 键值存储抽象（投影与通用仓储使用）
//
// Get 与 Find 的语义区别必须保留：
// Get 在键不存在时返回 ErrKeyNotFound，Find 返回 (nil, false, nil)
type KeyValueStore interface {
	Add(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Find(ctx context.Context, key string) ([]byte, bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
}

// EventStore 按聚合分区的追加式事件日志
//
// Append 以整批为单位：要么全部落盘要么全部失败，中断后按整批重试，
// 绝不部分重放。expectedVersion 是追加前聚合的最新版本（新聚合为0），
// 批内事件版本必须从 expectedVersion+1 起单调无缺口。
// 已持久化的事件不可变更、不可删除。
type EventStore interface {
	Append(ctx context.Context, aggregateKey string, expectedVersion int64, events []*cqrs.EventState) error

	// Load 返回 version > fromVersion 的事件，按版本升序
	Load(ctx context.Context, aggregateKey string, fromVersion int64) ([]*cqrs.EventState, error)

	// LatestVersion 聚合最新已提交版本（无事件返回0）
	LatestVersion(ctx context.Context, aggregateKey string) (int64, error)
}

// Snapshot 某一事件版本下的聚合物化状态
// 重放完整事件序列必须能复现等价状态；快照只是重放的加速手段
type Snapshot struct {
	AggregateKey  string    `json:"aggregateKey"`
	AggregateName string    `json:"aggregateName"`
	Version       int64     `json:"version"`
	State         []byte    `json:"state"`
	TakenAt       time.Time `json:"takenAt"`
}

// SnapshotStore 聚合快照存储
type SnapshotStore interface {
	// Save 写入/覆盖聚合的最新快照
	Save(ctx context.Context, snapshot *Snapshot) error

	// Load 读取最新快照，不存在返回 ErrSnapshotNotFound
	Load(ctx context.Context, aggregateKey string) (*Snapshot, error)
}
