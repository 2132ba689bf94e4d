package harvest

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// CollyFetcher implements Fetcher on a Colly collector. Each fetcher owns
// one HTTP transport, so a worker that keeps a fetcher for its lifetime
// amortizes TLS and connection setup across every URL it processes.
type CollyFetcher struct {
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewCollyFetcher constructs a configured Colly-based Fetcher.
func NewCollyFetcher(cfg Config, logger *zap.Logger) *CollyFetcher {
	base := colly.NewCollector(
		colly.Async(true),
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	)
	// Retries revisit the same URL through the same collector.
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.RequestTimeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.RequestTimeout)

	return &CollyFetcher{
		baseCollector: base,
		logger:        logger,
	}
}

// Fetch retrieves a page via the configured collector. Responses with
// non-2xx statuses are returned as pages so callers can apply their own
// retry policy; only transport-level failures return an error.
func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	collector := f.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{page: pageFromResponse(rawURL, r)})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			// The exchange completed; the status is the caller's problem.
			send(fetchResult{page: pageFromResponse(rawURL, r)})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	start := time.Now()
	if err := collector.Visit(rawURL); err != nil {
		return Page{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		res.page.Duration = time.Since(start)
		return res.page, res.err
	default:
		return Page{}, errors.New("fetch produced no result")
	}
}

func pageFromResponse(rawURL string, r *colly.Response) Page {
	headers := http.Header{}
	if r.Headers != nil {
		for k, v := range *r.Headers {
			cp := make([]string, len(v))
			copy(cp, v)
			headers[k] = cp
		}
	}
	return Page{
		URL:        rawURL,
		StatusCode: r.StatusCode,
		Headers:    headers,
		Body:       append([]byte{}, r.Body...),
	}
}

type fetchResult struct {
	page Page
	err  error
}
