package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSink struct {
	mu      sync.Mutex
	batches [][]Event
}

func newStubSink() *stubSink {
	return &stubSink{batches: [][]Event{}}
}

func (s *stubSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := append([]Event(nil), batch...)
	s.batches = append(s.batches, copied)
	return nil
}

func (s *stubSink) Close(context.Context) error { return nil }

func (s *stubSink) Batches() [][]Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]Event(nil), s.batches...)
}

func (s *stubSink) total() int {
	n := 0
	for _, b := range s.Batches() {
		n += len(b)
	}
	return n
}

func TestHubBatchBySize(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     8,
		MaxBatchEvents: 2,
		MaxBatchWait:   time.Minute,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	evt := validEvent(StageRunStart)
	hub.Emit(evt)
	hub.Emit(evt)
	require.Eventually(t, func() bool {
		batches := sink.Batches()
		return len(batches) == 1 && len(batches[0]) == 2
	}, time.Second, 10*time.Millisecond)
}

func TestHubBatchByTimer(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 10,
		MaxBatchWait:   25 * time.Millisecond,
	}, sink)
	defer func() {
		require.NoError(t, hub.Close(context.Background()))
	}()

	hub.Emit(validEvent(StageRecordWritten))
	require.Eventually(t, func() bool {
		return len(sink.Batches()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHubFlushOnClose(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     16,
		MaxBatchEvents: 100,
		MaxBatchWait:   time.Minute,
	}, sink)

	for i := 0; i < 5; i++ {
		hub.Emit(validEvent(StageFetchDone))
	}
	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, 5, sink.total())
}

func TestHubEmitNeverBlocksWhenFull(t *testing.T) {
	t.Parallel()

	// No run goroutine drains this hub, so the buffer stays full and every
	// extra Emit must take the drop path.
	hub := &Hub{
		cfg:    Config{},
		events: make(chan Event, 1),
		logger: zap.NewNop(),
	}
	evt := validEvent(StageRunStart)

	start := time.Now()
	for i := 0; i < 100; i++ {
		hub.Emit(evt)
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
	// The first drop is logged and resets the counter; the rest accumulate.
	require.EqualValues(t, 98, hub.dropped.Load())
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 1,
		MaxBatchWait:   10 * time.Millisecond,
	}, sink)

	hub.Emit(Event{}) // no run id, no timestamp
	require.NoError(t, hub.Close(context.Background()))
	require.Zero(t, sink.total())
}

func TestHubCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{}, newStubSink())
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := newStubSink()
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent(StageRunStart))
	require.Zero(t, sink.total())
}
