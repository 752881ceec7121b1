package drop

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherOrder(t *testing.T) {
	pub := NewPublisher()
	events := make(chan Event, 10)
	pub.Register(events)

	for i := uint64(0); i < 10; i++ {
		pub.Notify(Event{Kind: EventMinted, DripId: i})
	}
	for i := uint64(0); i < 10; i++ {
		ev := <-events
		assert.Equal(t, i, ev.DripId)
	}
}

func TestPublisherFullObserver(t *testing.T) {
	pub := NewPublisher()
	slow := make(chan Event, 1)
	fast := make(chan Event, 3)
	pub.Register(slow)
	pub.Register(fast)

	done := make(chan struct{})
	go func() {
		for i := uint64(0); i < 3; i++ {
			pub.Notify(Event{Kind: EventMinted, DripId: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notify blocked on a full observer")
	}

	require.Len(t, slow, 1)
	assert.Equal(t, uint64(0), (<-slow).DripId)
	// nothing arrives late
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, slow, 0)

	require.Len(t, fast, 3)
	for i := uint64(0); i < 3; i++ {
		assert.Equal(t, i, (<-fast).DripId)
	}

	var nilPub *Publisher
	nilPub.Notify(Event{Kind: EventMinted})
}
