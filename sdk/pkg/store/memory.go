package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
)

// memoryKeyValueStore 内存键值存储（测试和开发用）
type memoryKeyValueStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryKeyValueStore 创建内存键值存储
func NewMemoryKeyValueStore() KeyValueStore {
	return &memoryKeyValueStore{values: make(map[string][]byte)}
}

func (s *memoryKeyValueStore) Add(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	s.values[key] = buf
	return nil
}

func (s *memoryKeyValueStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return value, nil
}

func (s *memoryKeyValueStore) Find(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *memoryKeyValueStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok, nil
}

func (s *memoryKeyValueStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// memoryEventStore 内存事件存储（测试和开发用）
// 写入按聚合键分区，追加持锁保证整批原子性
type memoryEventStore struct {
	mu      sync.RWMutex
	streams map[string][]*cqrs.EventState
}

// NewMemoryEventStore 创建内存事件存储
func NewMemoryEventStore() EventStore {
	return &memoryEventStore{streams: make(map[string][]*cqrs.EventState)}
}

func (s *memoryEventStore) Append(_ context.Context, aggregateKey string, expectedVersion int64, events []*cqrs.EventState) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[aggregateKey]
	current := int64(len(stream))
	if current != expectedVersion {
		return fmt.Errorf("%w: aggregate %s expected %d, have %d", ErrVersionConflict, aggregateKey, expectedVersion, current)
	}

	for i, event := range events {
		want := expectedVersion + int64(i) + 1
		if event.EventVersion != want {
			return fmt.Errorf("event version gap for aggregate %s: got %d, want %d", aggregateKey, event.EventVersion, want)
		}
	}

	s.streams[aggregateKey] = append(stream, events...)
	return nil
}

func (s *memoryEventStore) Load(_ context.Context, aggregateKey string, fromVersion int64) ([]*cqrs.EventState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateKey]
	if int64(len(stream)) <= fromVersion {
		return nil, nil
	}
	tail := stream[fromVersion:]
	out := make([]*cqrs.EventState, len(tail))
	copy(out, tail)
	return out, nil
}

func (s *memoryEventStore) LatestVersion(_ context.Context, aggregateKey string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.streams[aggregateKey])), nil
}

// memorySnapshotStore 内存快照存储（测试和开发用）
type memorySnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewMemorySnapshotStore 创建内存快照存储
func NewMemorySnapshotStore() SnapshotStore {
	return &memorySnapshotStore{snapshots: make(map[string]*Snapshot)}
}

func (s *memorySnapshotStore) Save(_ context.Context, snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *snapshot
	state := make([]byte, len(snapshot.State))
	copy(state, snapshot.State)
	copied.State = state
	s.snapshots[snapshot.AggregateKey] = &copied
	return nil
}

func (s *memorySnapshotStore) Load(_ context.Context, aggregateKey string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot, ok := s.snapshots[aggregateKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, aggregateKey)
	}
	copied := *snapshot
	return &copied, nil
}
