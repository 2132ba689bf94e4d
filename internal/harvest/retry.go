package harvest

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Statuses eligible for automatic retry.
var retryableStatuses = map[int]struct{}{
	429: {},
	500: {},
	502: {},
	503: {},
	504: {},
}

// RetryingFetcher wraps a Fetcher with a bounded attempt loop and jittered
// exponential backoff. Retryable statuses and transport errors share one
// attempt budget; an explicit counter replaces any retry-by-recursion so
// pathological repeated 429s cannot grow the stack.
type RetryingFetcher struct {
	inner       Fetcher
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	logger      *zap.Logger

	// pause is swapped out in tests to observe waits without sleeping.
	pause func(ctx context.Context, delay time.Duration)
}

// NewRetryingFetcher builds the retry wrapper from config.
func NewRetryingFetcher(inner Fetcher, cfg Config, logger *zap.Logger) *RetryingFetcher {
	return &RetryingFetcher{
		inner:       inner,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BackoffInitial,
		maxDelay:    cfg.BackoffMax,
		logger:      logger,
		pause:       pauseFor,
	}
}

// Fetch runs the attempt loop. It returns the last page or transport error
// once the budget is spent; classification is the caller's job.
func (f *RetryingFetcher) Fetch(ctx context.Context, url string) (Page, error) {
	var (
		page  Page
		err   error
		delay time.Duration
	)
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			f.pause(ctx, delay)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Page{}, ctxErr
		}

		page, err = f.inner.Fetch(ctx, url)
		if err != nil {
			// Only the run context ends the loop early. A per-attempt
			// client timeout also surfaces as context.DeadlineExceeded,
			// and that one spends an attempt like any transport error.
			if ctx.Err() != nil {
				return Page{}, err
			}
			delay = f.backoff(attempt)
			f.logger.Warn("fetch attempt failed",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			continue
		}

		if _, retryable := retryableStatuses[page.StatusCode]; !retryable {
			return page, nil
		}

		delay = f.backoff(attempt)
		if page.StatusCode == 429 {
			if after, ok := retryAfter(page); ok {
				delay = after
			}
		}
		f.logger.Warn("retryable status",
			zap.String("url", url),
			zap.Int("status_code", page.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
	}
	return page, err
}

// backoff returns the jittered wait before the attempt following attempt.
func (f *RetryingFetcher) backoff(attempt int) time.Duration {
	delay := float64(f.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(f.maxDelay) {
		delay = float64(f.maxDelay)
	}
	half := time.Duration(delay / 2)
	return half + randomJitter(half)
}

// retryAfter reads the integer-seconds form of the Retry-After header.
// HTTP-date values fall back to standard backoff.
func retryAfter(page Page) (time.Duration, bool) {
	raw := page.Headers.Get("Retry-After")
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// pauseFor sleeps for delay or until ctx finishes, whichever comes first.
func pauseFor(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
