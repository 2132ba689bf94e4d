// Package worker implements the per-document harvest loop.
package worker

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/biopub/harvester/internal/extract"
	"github.com/biopub/harvester/internal/harvest"
	"github.com/biopub/harvester/internal/progress"
	"github.com/biopub/harvester/internal/queue"
)

// Worker consumes URLs from the shared queue and produces exactly one
// record per URL. It owns its Fetcher (and therefore its connection pool)
// and its Pacer for its whole lifetime; nothing it holds is shared with
// other workers except the queue and the sink.
type Worker struct {
	id      int
	queue   *queue.URLQueue
	fetcher harvest.Fetcher
	pacer   *harvest.Pacer
	sink    harvest.Sink
	clock   harvest.Clock
	emitter progress.Emitter
	runID   [16]byte
	logger  *zap.Logger

	succeeded int64
	failed    int64
}

// New constructs a Worker.
func New(
	id int,
	q *queue.URLQueue,
	fetcher harvest.Fetcher,
	pacer *harvest.Pacer,
	sink harvest.Sink,
	clock harvest.Clock,
	emitter progress.Emitter,
	runID [16]byte,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:      id,
		queue:   q,
		fetcher: fetcher,
		pacer:   pacer,
		sink:    sink,
		clock:   clock,
		emitter: emitter,
		runID:   runID,
		logger:  logger.With(zap.Int("worker", id)),
	}
}

// Run blocks, consuming URLs until the queue closes or the context ends.
// Cancellation is honored between documents: an in-flight document is
// finished before the stop check.
func (w *Worker) Run(ctx context.Context) {
	for {
		rawURL, ok, err := w.queue.Dequeue(ctx)
		if err != nil {
			return
		}
		if !ok {
			return
		}
		w.processURL(ctx, rawURL)
	}
}

// Counts reports how many success and failure records this worker wrote.
func (w *Worker) Counts() (succeeded, failed int64) {
	return w.succeeded, w.failed
}

func (w *Worker) processURL(ctx context.Context, rawURL string) {
	rec, ok := w.buildRecord(ctx, rawURL)
	if !ok {
		return
	}
	if err := w.sink.Append(ctx, rec); err != nil {
		w.logger.Error("append record failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return
	}
	if rec.Status == harvest.StatusSuccess {
		w.succeeded++
	} else {
		w.failed++
	}
	w.emit(progress.Event{
		Stage:     progress.StageRecordWritten,
		URL:       rawURL,
		Result:    string(rec.Status),
		ErrorType: string(rec.ErrorType),
	})
}

// buildRecord produces the record for one URL. Every failure mode is
// converted to an error-variant record here; nothing propagates out, so a
// single document can never halt the pool. ok is false only when the run
// context ended before a result existed.
func (w *Worker) buildRecord(ctx context.Context, rawURL string) (rec harvest.Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			detail := fmt.Sprintf("panic: %v", r)
			w.logger.Error("unexpected failure processing document",
				zap.String("url", rawURL),
				zap.String("detail", detail),
			)
			rec = w.failureRecord(rawURL, harvest.UnknownFailure(detail))
			ok = true
		}
	}()

	if err := w.pacer.Wait(ctx); err != nil {
		return harvest.Record{}, false
	}

	page, err := w.fetcher.Fetch(ctx, rawURL)
	w.emitFetch(rawURL, page, err)
	if ctx.Err() != nil && err != nil {
		return harvest.Record{}, false
	}

	if docErr := harvest.ClassifyFetch(page, err); docErr != nil {
		w.logger.Error("document fetch failed",
			zap.String("url", rawURL),
			zap.String("error_type", string(docErr.Kind)),
			zap.Int("status_code", docErr.StatusCode),
			zap.String("detail", docErr.Message),
		)
		return w.failureRecord(rawURL, docErr), true
	}

	paper, err := extract.Parse(page.Body)
	if err != nil {
		docErr := harvest.ExtractionFailure(err)
		w.logger.Error("document extraction failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return w.failureRecord(rawURL, docErr), true
	}

	return w.successRecord(rawURL, paper), true
}

func (w *Worker) successRecord(rawURL string, paper *harvest.Paper) harvest.Record {
	meta := paper.Metadata
	metrics := paper.Metrics
	return harvest.Record{
		PaperID:            harvest.PaperID(meta.DOI, rawURL),
		SourceURL:          rawURL,
		ScrapedAt:          w.clock.Now().Format(time.RFC3339),
		Status:             harvest.StatusSuccess,
		MissingFields:      paper.MissingFields,
		Metadata:           &meta,
		AbstractParagraphs: paper.AbstractParagraphs,
		Sections:           paper.Sections,
		References:         paper.References,
		FiguresTables:      paper.FiguresTables,
		Funding:            paper.Funding,
		Acknowledgments:    paper.Acknowledgments,
		Metrics:            &metrics,
	}
}

func (w *Worker) failureRecord(rawURL string, docErr *harvest.DocumentError) harvest.Record {
	return harvest.Record{
		PaperID:      harvest.FailureID(rawURL),
		SourceURL:    rawURL,
		ScrapedAt:    w.clock.Now().Format(time.RFC3339),
		Status:       harvest.StatusError,
		ErrorMessage: docErr.Message,
		ErrorType:    docErr.Kind,
		StatusCode:   docErr.StatusCode,
	}
}

func (w *Worker) emitFetch(rawURL string, page harvest.Page, err error) {
	if err != nil {
		return
	}
	w.emit(progress.Event{
		Stage:       progress.StageFetchDone,
		Site:        siteOf(rawURL),
		URL:         rawURL,
		Bytes:       int64(len(page.Body)),
		StatusClass: progress.ClassifyStatus(page.StatusCode),
		Dur:         page.Duration,
	})
}

func (w *Worker) emit(evt progress.Event) {
	if w.emitter == nil {
		return
	}
	evt.RunID = w.runID
	evt.TS = w.clock.Now()
	w.emitter.Emit(evt)
}

func siteOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
