package outbox

import (
	"context"
	"testing"
	"time"

	domoutbox "github.com/facebouk/salepoint/internal/domain/outbox"
	"github.com/facebouk/salepoint/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct{ name string }

func (e testEvent) EventName() string { return e.name }

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(observability.NopLogger(), observability.Nop())
	received := make(chan domoutbox.Event, 1)
	bus.Subscribe("capture.succeeded", func(_ context.Context, e domoutbox.Event) error {
		received <- e
		return nil
	})

	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "capture.succeeded"}))

	select {
	case e := <-received:
		assert.Equal(t, "capture.succeeded", e.EventName())
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestBusDropsUnsubscribedEvents(t *testing.T) {
	bus := NewBus(observability.NopLogger(), observability.Nop())
	received := make(chan domoutbox.Event, 1)
	bus.Subscribe("capture.failed", func(_ context.Context, e domoutbox.Event) error {
		received <- e
		return nil
	})

	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "capture.scan"}))

	select {
	case <-received:
		t.Fatal("handler for another event must not fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBusSurvivesHandlerPanic(t *testing.T) {
	bus := NewBus(observability.NopLogger(), observability.Nop())
	received := make(chan struct{}, 2)
	bus.Subscribe("capture.scan", func(context.Context, domoutbox.Event) error {
		panic("handler bug")
	})
	bus.Subscribe("capture.scan", func(context.Context, domoutbox.Event) error {
		received <- struct{}{}
		return nil
	})

	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "capture.scan"}))
	require.NoError(t, bus.Publish(context.Background(), testEvent{name: "capture.scan"}))

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("bus stopped dispatching after a panic")
		}
	}
}

func TestPublishNilEventIsNoop(t *testing.T) {
	bus := NewBus(observability.NopLogger(), observability.Nop())
	assert.NoError(t, bus.Publish(context.Background(), nil))
}
