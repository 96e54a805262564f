package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	jxtjson "github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/json"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRecord 事件日志表模型
// (aggregate_key, event_version) 唯一索引配合事务内的版本检查，
// 保证聚合内版本单调无缺口
type EventRecord struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement;column:id"`
	AggregateKey  string    `gorm:"type:varchar(512);uniqueIndex:uk_aggregate_version,priority:1;column:aggregate_key"`
	AggregateName string    `gorm:"type:varchar(255);index;column:aggregate_name"`
	EventVersion  int64     `gorm:"uniqueIndex:uk_aggregate_version,priority:2;column:event_version"`
	MessageType   string    `gorm:"type:varchar(255);index;column:message_type"`
	MessageID     string    `gorm:"type:char(36);uniqueIndex;column:message_id"`
	State         []byte    `gorm:"type:blob;column:state"`
	CreatedAt     time.Time `gorm:"column:created_at"`
}

// TableName 指定表名
func (EventRecord) TableName() string { return "jxt_events" }

// SnapshotRecord 快照表模型（每个聚合仅保留最新一份）
type SnapshotRecord struct {
	AggregateKey  string    `gorm:"type:varchar(512);primaryKey;column:aggregate_key"`
	AggregateName string    `gorm:"type:varchar(255);index;column:aggregate_name"`
	Version       int64     `gorm:"column:version"`
	State         []byte    `gorm:"type:blob;column:state"`
	TakenAt       time.Time `gorm:"column:taken_at"`
}

// TableName 指定表名
func (SnapshotRecord) TableName() string { return "jxt_snapshots" }

// KVRecord 通用键值表模型
type KVRecord struct {
	Key       string    `gorm:"type:varchar(512);primaryKey;column:kv_key"`
	Value     []byte    `gorm:"type:blob;column:kv_value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName 指定表名
func (KVRecord) TableName() string { return "jxt_kv" }

// GormStore 基于GORM的持久化实现（事件日志 + 快照 + 键值）
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建GORM存储并迁移表结构
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, errors.New("gorm db is nil")
	}
	if err := db.AutoMigrate(&EventRecord{}, &SnapshotRecord{}, &KVRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate store tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Append 在单个事务内整批追加事件
// 事务保证"中断后按整批重试"的契约：不会留下半批写入
func (s *GormStore) Append(ctx context.Context, aggregateKey string, expectedVersion int64, events []*cqrs.EventState) error {
	if len(events) == 0 {
		return nil
	}

	records := make([]*EventRecord, 0, len(events))
	for i, event := range events {
		want := expectedVersion + int64(i) + 1
		if event.EventVersion != want {
			return fmt.Errorf("event version gap for aggregate %s: got %d, want %d", aggregateKey, event.EventVersion, want)
		}
		state, err := jxtjson.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event state: %w", err)
		}
		records = append(records, &EventRecord{
			AggregateKey:  aggregateKey,
			AggregateName: event.AggregateName,
			EventVersion:  event.EventVersion,
			MessageType:   event.MessageType,
			MessageID:     event.Metadata.MessageID,
			State:         state,
			CreatedAt:     event.Date,
		})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		err := tx.Model(&EventRecord{}).
			Where("aggregate_key = ?", aggregateKey).
			Select("COALESCE(MAX(event_version), 0)").
			Scan(&current).Error
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return fmt.Errorf("%w: aggregate %s expected %d, have %d", ErrVersionConflict, aggregateKey, expectedVersion, current)
		}
		return tx.Create(&records).Error
	})
}

// Load 按版本升序装载 version > fromVersion 的事件
func (s *GormStore) Load(ctx context.Context, aggregateKey string, fromVersion int64) ([]*cqrs.EventState, error) {
	var records []EventRecord
	err := s.db.WithContext(ctx).
		Where("aggregate_key = ? AND event_version > ?", aggregateKey, fromVersion).
		Order("event_version ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	events := make([]*cqrs.EventState, 0, len(records))
	for _, record := range records {
		var state cqrs.EventState
		if err := jxtjson.Unmarshal(record.State, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event state %d: %w", record.ID, err)
		}
		events = append(events, &state)
	}
	return events, nil
}

// LatestVersion 聚合最新已提交版本
func (s *GormStore) LatestVersion(ctx context.Context, aggregateKey string) (int64, error) {
	var version int64
	err := s.db.WithContext(ctx).Model(&EventRecord{}).
		Where("aggregate_key = ?", aggregateKey).
		Select("COALESCE(MAX(event_version), 0)").
		Scan(&version).Error
	return version, err
}

// Save 写入/覆盖聚合快照（upsert）
func (s *GormStore) Save(ctx context.Context, snapshot *Snapshot) error {
	record := &SnapshotRecord{
		AggregateKey:  snapshot.AggregateKey,
		AggregateName: snapshot.AggregateName,
		Version:       snapshot.Version,
		State:         snapshot.State,
		TakenAt:       snapshot.TakenAt,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "aggregate_key"}},
		UpdateAll: true,
	}).Create(record).Error
}

// LoadSnapshot 读取聚合最新快照
func (s *GormStore) LoadSnapshot(ctx context.Context, aggregateKey string) (*Snapshot, error) {
	var record SnapshotRecord
	err := s.db.WithContext(ctx).Where("aggregate_key = ?", aggregateKey).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, aggregateKey)
	}
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		AggregateKey:  record.AggregateKey,
		AggregateName: record.AggregateName,
		Version:       record.Version,
		State:         record.State,
		TakenAt:       record.TakenAt,
	}, nil
}

// Add 写入键值
func (s *GormStore) Add(ctx context.Context, key string, value []byte) error {
	record := &KVRecord{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kv_key"}},
		UpdateAll: true,
	}).Create(record).Error
}

// Get 读取键值，不存在返回 ErrKeyNotFound
func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var record KVRecord
	err := s.db.WithContext(ctx).Where("kv_key = ?", key).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return record.Value, nil
}

// Find 读取键值，不存在返回 ok=false
func (s *GormStore) Find(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Exists 检查键是否存在
func (s *GormStore) Exists(ctx context.Context, key string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&KVRecord{}).Where("kv_key = ?", key).Count(&count).Error
	return count > 0, err
}

// Remove 删除键值
func (s *GormStore) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("kv_key = ?", key).Delete(&KVRecord{}).Error
}

// SnapshotLoader 适配 SnapshotStore 接口
// GormStore 同时实现三种存储接口，命令处理器按需取用
type gormSnapshotStore struct{ *GormStore }

// Snapshots 以 SnapshotStore 视图暴露
func (s *GormStore) Snapshots() SnapshotStore { return &gormSnapshotStore{s} }

func (s *gormSnapshotStore) Load(ctx context.Context, aggregateKey string) (*Snapshot, error) {
	return s.LoadSnapshot(ctx, aggregateKey)
}
