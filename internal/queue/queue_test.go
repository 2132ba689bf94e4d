package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueDrainAfterClose(t *testing.T) {
	t.Parallel()

	q := New(3)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, fmt.Sprintf("https://ok.example/%d", i)))
	}
	q.Close()

	for i := 0; i < 3; i++ {
		url, ok, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.NotEmpty(t, url)
	}

	_, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQueueAtMostOnceAcrossConsumers(t *testing.T) {
	t.Parallel()

	const total = 200
	q := New(total)
	ctx := context.Background()
	for i := 0; i < total; i++ {
		require.NoError(t, q.Enqueue(ctx, fmt.Sprintf("https://ok.example/%d", i)))
	}
	q.Close()

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				url, ok, err := q.Dequeue(ctx)
				if err != nil || !ok {
					return
				}
				mu.Lock()
				seen[url]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, total)
	for url, n := range seen {
		require.Equal(t, 1, n, "url %s dequeued %d times", url, n)
	}
}

func TestQueueDequeueHonorsContext(t *testing.T) {
	t.Parallel()

	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := q.Dequeue(ctx)
	require.Error(t, err)
}

func TestQueueCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	q := New(1)
	q.Close()
	q.Close()
}
