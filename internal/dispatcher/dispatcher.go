// Package dispatcher manages worker fan-out over the URL work queue.
package dispatcher

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/biopub/harvester/internal/harvest"
	"github.com/biopub/harvester/internal/progress"
	"github.com/biopub/harvester/internal/queue"
	"github.com/biopub/harvester/internal/worker"
)

// CountingSink is the sink contract the dispatcher needs: appends plus an
// authoritative written-record count for the run summary.
type CountingSink interface {
	harvest.Sink
	Count() int64
}

// FetcherFactory builds the fetcher one worker will own for its lifetime.
// Tests substitute stub transports here.
type FetcherFactory func(workerID int) harvest.Fetcher

// Dispatcher fans a URL list out to a pool of workers and accounts for the
// results.
type Dispatcher struct {
	cfg        harvest.Config
	newFetcher FetcherFactory
	sink       CountingSink
	clock      harvest.Clock
	emitter    progress.Emitter
	logger     *zap.Logger
}

// New creates a Dispatcher. A nil factory defaults to Colly fetchers
// wrapped with the retry policy.
func New(
	cfg harvest.Config,
	newFetcher FetcherFactory,
	sink CountingSink,
	clock harvest.Clock,
	emitter progress.Emitter,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if newFetcher == nil {
		newFetcher = func(int) harvest.Fetcher {
			return harvest.NewRetryingFetcher(harvest.NewCollyFetcher(cfg, logger), cfg, logger)
		}
	}
	return &Dispatcher{
		cfg:        cfg,
		newFetcher: newFetcher,
		sink:       sink,
		clock:      clock,
		emitter:    emitter,
		logger:     logger,
	}
}

// Run processes every URL and blocks until the pool drains or the context
// ends. Each URL is dispatched at most once; completion order is
// unspecified. At normal completion the written-record count equals the
// submitted count, and any mismatch is logged loudly rather than hidden.
func (d *Dispatcher) Run(ctx context.Context, urls []string) harvest.RunSummary {
	runID := uuid.New()
	start := d.clock.Now()
	d.emit(progress.Event{RunID: progress.UUIDToBytes(runID), TS: start, Stage: progress.StageRunStart})

	q := queue.New(len(urls))
	for _, u := range urls {
		if err := q.Enqueue(ctx, u); err != nil {
			break
		}
	}
	q.Close()

	count := d.cfg.EffectiveWorkers()
	workers := make([]*worker.Worker, 0, count)
	for i := 0; i < count; i++ {
		workers = append(workers, worker.New(
			i,
			q,
			d.newFetcher(i),
			harvest.NewPacer(d.cfg),
			d.sink,
			d.clock,
			d.emitter,
			progress.UUIDToBytes(runID),
			d.logger,
		))
	}

	d.logger.Info("starting harvest run",
		zap.String("run_id", runID.String()),
		zap.Int("urls", len(urls)),
		zap.Int("workers", count),
	)

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()

	summary := harvest.RunSummary{
		RunID:     runID.String(),
		Submitted: len(urls),
		Written:   d.sink.Count(),
		Elapsed:   d.clock.Now().Sub(start),
	}
	for _, w := range workers {
		s, f := w.Counts()
		summary.Succeeded += s
		summary.Failed += f
	}

	stage := progress.StageRunDone
	if ctx.Err() != nil {
		stage = progress.StageRunError
	}
	d.emit(progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    d.clock.Now(),
		Stage: stage,
		Dur:   summary.Elapsed,
	})

	if summary.Written != int64(summary.Submitted) {
		d.logger.Warn("record count does not match submitted URLs",
			zap.String("run_id", runID.String()),
			zap.Int("submitted", summary.Submitted),
			zap.Int64("written", summary.Written),
		)
	}
	return summary
}

func (d *Dispatcher) emit(evt progress.Event) {
	if d.emitter == nil {
		return
	}
	d.emitter.Emit(evt)
}
