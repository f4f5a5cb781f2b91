package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"noetic/internal/config"
	"noetic/internal/events"
	"noetic/internal/term"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b := New(config.DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	b.Start(ctx)
	t.Cleanup(func() {
		b.Close()
		cancel()
	})
	return b
}

func TestSubscribeReceivesMatchingType(t *testing.T) {
	b := newTestBus(t)

	var mu sync.Mutex
	var received []events.Event
	b.Subscribe([]events.Type{events.Asserted}, nil, func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, e)
	})

	b.Emit(events.Event{Type: events.Asserted, AssertionID: "a1"})
	b.Emit(events.Event{Type: events.Retracted, AssertionID: "a2"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, time.Millisecond)
}

func TestSubscribePatternFiltersByTerm(t *testing.T) {
	b := newTestBus(t)
	pattern, err := term.Parse("(knows self ?who)")
	require.NoError(t, err)

	var mu sync.Mutex
	var count int
	b.Subscribe(nil, pattern, func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	match, err := term.Parse("(knows self bob)")
	require.NoError(t, err)
	mismatch, err := term.Parse("(likes self pizza)")
	require.NoError(t, err)

	b.Emit(events.Event{Type: events.Asserted, Term: match})
	b.Emit(events.Event{Type: events.Asserted, Term: mismatch})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, time.Millisecond)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := newTestBus(t)

	var mu sync.Mutex
	var count int
	id := b.Subscribe([]events.Type{events.Asserted}, nil, func(e events.Event) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	b.Unsubscribe(id)

	b.Emit(events.Event{Type: events.Asserted})
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, count)
}

func TestEmitAssignsIncreasingSequence(t *testing.T) {
	b := newTestBus(t)

	var mu sync.Mutex
	var seqs []uint64
	done := make(chan struct{})
	b.Subscribe([]events.Type{events.Asserted}, nil, func(e events.Event) {
		mu.Lock()
		seqs = append(seqs, e.Seq)
		if len(seqs) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	b.Emit(events.Event{Type: events.Asserted})
	b.Emit(events.Event{Type: events.Asserted})
	b.Emit(events.Event{Type: events.Asserted})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for all events")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seqs, 3)
	assert.Less(t, seqs[0], seqs[1])
	assert.Less(t, seqs[1], seqs[2])
}

func TestHandlerPanicDoesNotStopDispatch(t *testing.T) {
	b := newTestBus(t)

	b.Subscribe([]events.Type{events.Asserted}, nil, func(e events.Event) {
		panic("boom")
	})

	var mu sync.Mutex
	var count int
	b.Subscribe([]events.Type{events.Asserted}, nil, func(e events.Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	b.Emit(events.Event{Type: events.Asserted})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, time.Millisecond)
}

func TestStatsSnapshotReportsCounters(t *testing.T) {
	b := newTestBus(t)
	b.Subscribe(nil, nil, func(events.Event) {})
	b.Emit(events.Event{Type: events.Asserted})

	require.Eventually(t, func() bool {
		return b.StatsSnapshot().TotalEmitted == 1
	}, time.Second, time.Millisecond)

	stats := b.StatsSnapshot()
	assert.Equal(t, 1, stats.SubscriberCount)
}
