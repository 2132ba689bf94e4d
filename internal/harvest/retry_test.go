package harvest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedFetcher returns one queued step per Fetch call, recycling the last
// step once the script runs out.
type scriptedFetcher struct {
	steps []fetchStep
	calls int
}

type fetchStep struct {
	page Page
	err  error
}

func (f *scriptedFetcher) Fetch(_ context.Context, url string) (Page, error) {
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	step := f.steps[i]
	step.page.URL = url
	return step.page, step.err
}

func newRetryForTest(inner Fetcher) (*RetryingFetcher, *[]time.Duration) {
	f := NewRetryingFetcher(inner, Config{
		MaxAttempts:    3,
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     40 * time.Millisecond,
	}, zap.NewNop())

	pauses := &[]time.Duration{}
	f.pause = func(_ context.Context, delay time.Duration) {
		*pauses = append(*pauses, delay)
	}
	return f, pauses
}

func TestRetrySucceedsAfterRetryableStatus(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{steps: []fetchStep{
		{page: Page{StatusCode: 503}},
		{page: Page{StatusCode: 200, Body: []byte("ok")}},
	}}
	f, pauses := newRetryForTest(inner)

	page, err := f.Fetch(context.Background(), "https://ok.example/doc1")
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)
	require.Equal(t, 2, inner.calls)
	require.Len(t, *pauses, 1)
}

func TestRetryHonorsRetryAfterHeader(t *testing.T) {
	t.Parallel()

	headers := http.Header{}
	headers.Set("Retry-After", "2")
	inner := &scriptedFetcher{steps: []fetchStep{
		{page: Page{StatusCode: 429, Headers: headers}},
		{page: Page{StatusCode: 200}},
	}}
	f, pauses := newRetryForTest(inner)

	page, err := f.Fetch(context.Background(), "https://ok.example/doc1")
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)
	require.Equal(t, []time.Duration{2 * time.Second}, *pauses)
}

func TestRetryAfterMalformedFallsBackToBackoff(t *testing.T) {
	t.Parallel()

	headers := http.Header{}
	headers.Set("Retry-After", "Wed, 21 Oct 2026 07:28:00 GMT")
	inner := &scriptedFetcher{steps: []fetchStep{
		{page: Page{StatusCode: 429, Headers: headers}},
		{page: Page{StatusCode: 200}},
	}}
	f, pauses := newRetryForTest(inner)

	_, err := f.Fetch(context.Background(), "https://ok.example/doc1")
	require.NoError(t, err)
	require.Len(t, *pauses, 1)
	require.Less(t, (*pauses)[0], time.Second)
}

func TestRetryBudgetExhausted(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{steps: []fetchStep{
		{page: Page{StatusCode: 500}},
	}}
	f, pauses := newRetryForTest(inner)

	page, err := f.Fetch(context.Background(), "https://ok.example/doc1")
	require.NoError(t, err)
	require.Equal(t, 500, page.StatusCode)
	require.Equal(t, 3, inner.calls)
	require.Len(t, *pauses, 2)
}

func TestRetrySkipsNonRetryableStatus(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{steps: []fetchStep{
		{page: Page{StatusCode: 404}},
	}}
	f, pauses := newRetryForTest(inner)

	page, err := f.Fetch(context.Background(), "https://ok.example/missing")
	require.NoError(t, err)
	require.Equal(t, 404, page.StatusCode)
	require.Equal(t, 1, inner.calls)
	require.Empty(t, *pauses)
}

func TestRetryTransportErrorSharesBudget(t *testing.T) {
	t.Parallel()

	transportErr := errors.New("connection reset")
	inner := &scriptedFetcher{steps: []fetchStep{
		{err: transportErr},
		{err: transportErr},
		{page: Page{StatusCode: 200}},
	}}
	f, _ := newRetryForTest(inner)

	page, err := f.Fetch(context.Background(), "https://ok.example/doc1")
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)
	require.Equal(t, 3, inner.calls)
}

func TestRetryTransportErrorExhausted(t *testing.T) {
	t.Parallel()

	transportErr := errors.New("connection reset")
	inner := &scriptedFetcher{steps: []fetchStep{{err: transportErr}}}
	f, _ := newRetryForTest(inner)

	_, err := f.Fetch(context.Background(), "https://ok.example/doc1")
	require.ErrorIs(t, err, transportErr)
	require.Equal(t, 3, inner.calls)
}

// A client timeout on one attempt is a transient failure: it must spend an
// attempt and be retried, not end the loop.
func TestRetryTimeoutConsumesBudget(t *testing.T) {
	t.Parallel()

	timeoutErr := fmt.Errorf("Get \"https://ok.example/doc1\": %w", context.DeadlineExceeded)
	inner := &scriptedFetcher{steps: []fetchStep{{err: timeoutErr}}}
	f, pauses := newRetryForTest(inner)

	_, err := f.Fetch(context.Background(), "https://ok.example/doc1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 3, inner.calls)
	require.Len(t, *pauses, 2)
}

func TestRetryTimeoutThenSuccess(t *testing.T) {
	t.Parallel()

	inner := &scriptedFetcher{steps: []fetchStep{
		{err: fmt.Errorf("read: %w", context.DeadlineExceeded)},
		{page: Page{StatusCode: 200}},
	}}
	f, _ := newRetryForTest(inner)

	page, err := f.Fetch(context.Background(), "https://ok.example/doc1")
	require.NoError(t, err)
	require.Equal(t, 200, page.StatusCode)
	require.Equal(t, 2, inner.calls)
}

// cancelingFetcher cancels the run context during its first call, the way a
// shutdown signal lands mid-fetch.
type cancelingFetcher struct {
	cancel context.CancelFunc
	calls  int
}

func (f *cancelingFetcher) Fetch(ctx context.Context, _ string) (Page, error) {
	f.calls++
	f.cancel()
	return Page{}, ctx.Err()
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	inner := &cancelingFetcher{cancel: cancel}
	f, pauses := newRetryForTest(inner)

	_, err := f.Fetch(ctx, "https://ok.example/doc1")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, inner.calls)
	require.Empty(t, *pauses)
}

func TestBackoffJitteredAndCapped(t *testing.T) {
	t.Parallel()

	f := NewRetryingFetcher(nil, Config{
		MaxAttempts:    5,
		BackoffInitial: 10 * time.Millisecond,
		BackoffMax:     40 * time.Millisecond,
	}, zap.NewNop())

	for attempt := 0; attempt < 10; attempt++ {
		d := f.backoff(attempt)
		require.GreaterOrEqual(t, d, 5*time.Millisecond)
		require.LessOrEqual(t, d, 40*time.Millisecond)
	}
}
