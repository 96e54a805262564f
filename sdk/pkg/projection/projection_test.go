package projection

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/cqrs"
	"github.com/ChenBigdata421/jxt-cqrs/sdk/pkg/store"
)

type itemAdded struct {
	PartitionID string `json:"partitionId"`
	ID          string `json:"id"`
	Qty         int    `json:"qty"`
}

func (e *itemAdded) MessageName() string { return "ItemAdded" }
func (e *itemAdded) DefaultAggregateID() cqrs.AggregateID {
	return cqrs.AggregateID{PartitionID: e.PartitionID, ID: e.ID}
}
func (e *itemAdded) DefaultAggregateName() string { return "cart" }

func eventState(t *testing.T, id string, version int64, qty int) *cqrs.EventState {
	t.Helper()
	state, err := cqrs.NewEventState(
		&itemAdded{PartitionID: "p1", ID: id, Qty: qty},
		version, cqrs.NewMetadata("tester"))
	require.NoError(t, err)
	return state
}

func TestProcessor_AppliesInOrder(t *testing.T) {
	kv := store.NewMemoryKeyValueStore()
	var applied []int64
	p, err := NewProcessor("cart-totals", kv, nil, func(ctx context.Context, state *cqrs.EventState) error {
		applied = append(applied, state.EventVersion)
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	for v := int64(1); v <= 3; v++ {
		require.NoError(t, p.Handle(ctx, eventState(t, "c1", v, 1)))
	}
	assert.Equal(t, []int64{1, 2, 3}, applied)

	last, err := p.LastApplied(ctx, cqrs.AggregateID{PartitionID: "p1", ID: "c1"}.String())
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
}

// 重复投递和过期投递都被幂等跳过
func TestProcessor_SkipsDuplicateAndStale(t *testing.T) {
	kv := store.NewMemoryKeyValueStore()
	count := 0
	p, err := NewProcessor("cart-totals", kv, nil, func(ctx context.Context, state *cqrs.EventState) error {
		count++
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Handle(ctx, eventState(t, "c2", 1, 1)))
	require.NoError(t, p.Handle(ctx, eventState(t, "c2", 2, 1)))

	// 重复投递版本2
	require.NoError(t, p.Handle(ctx, eventState(t, "c2", 2, 1)))
	// 过期投递版本1
	require.NoError(t, p.Handle(ctx, eventState(t, "c2", 1, 1)))
	assert.Equal(t, 2, count)

	// 新版本继续应用
	require.NoError(t, p.Handle(ctx, eventState(t, "c2", 3, 1)))
	assert.Equal(t, 3, count)
}

// 不同聚合的水位互不影响
func TestProcessor_WatermarkPerAggregate(t *testing.T) {
	kv := store.NewMemoryKeyValueStore()
	p, err := NewProcessor("cart-totals", kv, nil, func(ctx context.Context, state *cqrs.EventState) error {
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Handle(ctx, eventState(t, "c3", 5, 1)))
	require.NoError(t, p.Handle(ctx, eventState(t, "c4", 1, 1)))

	last3, err := p.LastApplied(ctx, cqrs.AggregateID{PartitionID: "p1", ID: "c3"}.String())
	require.NoError(t, err)
	last4, err := p.LastApplied(ctx, cqrs.AggregateID{PartitionID: "p1", ID: "c4"}.String())
	require.NoError(t, err)
	assert.Equal(t, int64(5), last3)
	assert.Equal(t, int64(1), last4)
}

// 投影函数失败时水位不推进，重新投递会再次尝试
func TestProcessor_FailureKeepsWatermark(t *testing.T) {
	kv := store.NewMemoryKeyValueStore()
	fail := true
	p, err := NewProcessor("cart-totals", kv, nil, func(ctx context.Context, state *cqrs.EventState) error {
		if fail {
			return errors.New("read model unavailable")
		}
		return nil
	})
	require.NoError(t, err)

	ctx := context.Background()
	err = p.Handle(ctx, eventState(t, "c5", 1, 1))
	require.Error(t, err)

	last, err := p.LastApplied(ctx, cqrs.AggregateID{PartitionID: "p1", ID: "c5"}.String())
	require.NoError(t, err)
	assert.Equal(t, int64(0), last)

	// 重新投递成功后水位推进
	fail = false
	require.NoError(t, p.Handle(ctx, eventState(t, "c5", 1, 1)))
	last, err = p.LastApplied(ctx, cqrs.AggregateID{PartitionID: "p1", ID: "c5"}.String())
	require.NoError(t, err)
	assert.Equal(t, int64(1), last)
}

func TestNewProcessor_Validation(t *testing.T) {
	kv := store.NewMemoryKeyValueStore()
	h := func(ctx context.Context, state *cqrs.EventState) error { return nil }

	_, err := NewProcessor("", kv, nil, h)
	assert.Error(t, err)
	_, err = NewProcessor("p", nil, nil, h)
	assert.Error(t, err)
	_, err = NewProcessor("p", kv, nil, nil)
	assert.Error(t, err)
}
