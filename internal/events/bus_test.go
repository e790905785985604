package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewInMemoryBus(1000)

	var stages, all int64
	bus.Subscribe(EventStage, func(ctx context.Context, evt Event) error {
		atomic.AddInt64(&stages, 1)
		return nil
	})
	bus.Subscribe(Any, func(ctx context.Context, evt Event) error {
		atomic.AddInt64(&all, 1)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), New(EventStage, "test", "classifying")))
	require.NoError(t, bus.Publish(context.Background(), New(EventTurn, "test", nil)))

	assert.EqualValues(t, 1, atomic.LoadInt64(&stages))
	assert.EqualValues(t, 2, atomic.LoadInt64(&all))
}

func TestPublishRunsEveryHandlerAndReturnsFirstError(t *testing.T) {
	bus := NewInMemoryBus(10)
	boom := errors.New("boom")
	var calls int64
	for i := 0; i < 3; i++ {
		bus.Subscribe(EventTurn, func(ctx context.Context, evt Event) error {
			atomic.AddInt64(&calls, 1)
			return boom
		})
	}
	err := bus.Publish(context.Background(), New(EventTurn, "test", nil))
	require.ErrorIs(t, err, boom)
	assert.EqualValues(t, 3, atomic.LoadInt64(&calls))
}

func TestUnsubscribe(t *testing.T) {
	bus := NewInMemoryBus(10)
	var calls int64
	id := bus.Subscribe(EventStage, func(ctx context.Context, evt Event) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})
	bus.Unsubscribe(id)
	require.NoError(t, bus.Publish(context.Background(), New(EventStage, "test", nil)))
	assert.Zero(t, atomic.LoadInt64(&calls))
}

func TestHistoryIsBounded(t *testing.T) {
	bus := NewInMemoryBus(3)
	for i := 0; i < 5; i++ {
		evt := New(EventStage, "test", i)
		require.NoError(t, bus.Publish(context.Background(), evt))
	}
	hist := bus.History()
	require.Len(t, hist, 3)
	assert.Equal(t, 2, hist[0].Payload)
	assert.Equal(t, 4, hist[2].Payload)
}

func TestReplay(t *testing.T) {
	bus := NewInMemoryBus(1000)
	base := time.Now()
	for i := 0; i < 5; i++ {
		evt := New(EventStage, "test", i)
		evt.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, bus.Publish(context.Background(), evt))
	}

	var got []any
	err := bus.Replay(context.Background(), base.Add(time.Second), base.Add(3*time.Second), func(ctx context.Context, evt Event) error {
		got = append(got, evt.Payload)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, got)
}

func BenchmarkPublish(b *testing.B) {
	bus := NewInMemoryBus(100000)
	bus.Subscribe(EventStage, func(ctx context.Context, evt Event) error {
		return nil
	})
	evt := New(EventStage, "bench", nil)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bus.Publish(context.Background(), evt)
	}
}
