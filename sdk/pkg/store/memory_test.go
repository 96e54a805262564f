package store

import (
	"context"
	"testing"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	jxtjson "github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEventState(t *testing.T, aggregateKey string, version int64) *cqrs.EventState {
	t.Helper()
	return &cqrs.EventState{
		MessageType:   "CustomerRegistered",
		AggregateID:   cqrs.AggregateID{PartitionID: "p1", ID: aggregateKey},
		AggregateName: "customer",
		EventVersion:  version,
		Message:       jxtjson.RawMessage(`{"name":"Acme"}`),
		Metadata:      cqrs.NewMetadata("tester"),
	}
}

func TestKeyValueStoreGetVersusFind(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKeyValueStore()

	// Get 对缺失键报错
	_, err := kv.Get(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Find 对缺失键返回 ok=false，不报错
	value, ok, err := kv.Find(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)

	require.NoError(t, kv.Add(ctx, "k1", []byte("v1")))

	got, err := kv.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	exists, err := kv.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, kv.Remove(ctx, "k1"))
	exists, err = kv.Exists(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemoryEventStoreAppendLoad(t *testing.T) {
	ctx := context.Background()
	es := NewMemoryEventStore()

	e1 := newEventState(t, "C1", 1)
	e2 := newEventState(t, "C1", 2)
	require.NoError(t, es.Append(ctx, "C1", 0, []*cqrs.EventState{e1, e2}))

	version, err := es.LatestVersion(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	all, err := es.Load(ctx, "C1", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(1), all[0].EventVersion)
	assert.Equal(t, int64(2), all[1].EventVersion)

	tail, err := es.Load(ctx, "C1", 1)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(2), tail[0].EventVersion)
}

func TestMemoryEventStoreVersionConflict(t *testing.T) {
	ctx := context.Background()
	es := NewMemoryEventStore()

	require.NoError(t, es.Append(ctx, "C1", 0, []*cqrs.EventState{newEventState(t, "C1", 1)}))

	// 期望版本不匹配
	err := es.Append(ctx, "C1", 0, []*cqrs.EventState{newEventState(t, "C1", 1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrVersionConflict)

	// 批内版本缺口
	err = es.Append(ctx, "C1", 1, []*cqrs.EventState{newEventState(t, "C1", 3)})
	assert.Error(t, err)

	// 冲突批不能留下部分写入
	version, err := es.LatestVersion(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestMemoryEventStoreStreamsIsolated(t *testing.T) {
	ctx := context.Background()
	es := NewMemoryEventStore()

	require.NoError(t, es.Append(ctx, "C1", 0, []*cqrs.EventState{newEventState(t, "C1", 1)}))
	require.NoError(t, es.Append(ctx, "C2", 0, []*cqrs.EventState{newEventState(t, "C2", 1)}))

	v1, _ := es.LatestVersion(ctx, "C1")
	v2, _ := es.LatestVersion(ctx, "C2")
	assert.Equal(t, int64(1), v1)
	assert.Equal(t, int64(1), v2)
}

func TestMemorySnapshotStore(t *testing.T) {
	ctx := context.Background()
	ss := NewMemorySnapshotStore()

	_, err := ss.Load(ctx, "C1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	snap := &Snapshot{AggregateKey: "C1", AggregateName: "customer", Version: 3, State: []byte(`{"name":"Acme"}`)}
	require.NoError(t, ss.Save(ctx, snap))

	loaded, err := ss.Load(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), loaded.Version)
	assert.Equal(t, snap.State, loaded.State)

	// 覆盖为更高版本
	require.NoError(t, ss.Save(ctx, &Snapshot{AggregateKey: "C1", AggregateName: "customer", Version: 5, State: []byte(`{}`)}))
	loaded, err = ss.Load(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), loaded.Version)
}
