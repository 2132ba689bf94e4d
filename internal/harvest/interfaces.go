package harvest

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns the page plus exchange metadata.
// Implementations return non-2xx responses as pages, not errors.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Sink appends one completed record to the output stream. Append must be
// safe for concurrent use and must not return before the whole line is
// written.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
