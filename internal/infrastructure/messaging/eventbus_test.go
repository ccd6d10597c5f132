package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/school-results/internal/domain/shared"
)

func written(t shared.EventType) shared.Event {
	return shared.NewResultWrittenEvent(t, "r1", "s1", "JSS 1", "First", "2024/2025", 70, 1, false)
}

func TestPublish_Sync(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: false})

	var got []shared.EventType
	require.NoError(t, bus.Subscribe(shared.EventResultCreated, func(e shared.Event) error {
		got = append(got, e.EventType())
		return nil
	}))
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		got = append(got, "all:"+e.EventType())
		return errors.New("ignored")
	}))

	require.NoError(t, bus.Publish(written(shared.EventResultCreated)))
	require.NoError(t, bus.Publish(written(shared.EventResultDeleted)))

	assert.Equal(t, []shared.EventType{
		shared.EventResultCreated,
		"all:" + shared.EventResultCreated,
		"all:" + shared.EventResultDeleted,
	}, got)

	m := bus.Metrics()
	assert.Equal(t, int64(2), m.Published)
	assert.Equal(t, int64(3), m.HandlerExecutions)
	assert.Equal(t, int64(2), m.HandlerFailures)
}

func TestPublish_AsyncDrainsOnClose(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: true, WorkerPoolSize: 2})

	var calls atomic.Int64
	require.NoError(t, bus.Subscribe(shared.EventResultUpdated, func(shared.Event) error {
		calls.Add(1)
		return nil
	}))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bus.Publish(written(shared.EventResultUpdated))
		}()
	}
	wg.Wait()

	require.NoError(t, bus.Close())
	assert.Equal(t, int64(20), calls.Load())

	assert.ErrorIs(t, bus.Publish(written(shared.EventResultUpdated)), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventResultUpdated, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close())
}

func TestPublish_HandlerPanicIsContained(t *testing.T) {
	bus := NewInMemoryEventBus(Config{AsyncMode: false})
	require.NoError(t, bus.Subscribe(shared.EventResultPublished, func(shared.Event) error {
		panic("boom")
	}))

	assert.NoError(t, bus.Publish(written(shared.EventResultPublished)))
	assert.Equal(t, int64(1), bus.Metrics().HandlerFailures)

	err := bus.execute(written(shared.EventResultPublished), func(shared.Event) error { panic("again") })
	assert.ErrorIs(t, err, ErrHandlerPanic)
}

func TestValidation(t *testing.T) {
	bus := NewInMemoryEventBus(DefaultConfig())
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventResultCreated, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}
