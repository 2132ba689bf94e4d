package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/biopub/harvester/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now().UTC()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{
			RunID:       runID,
			TS:          now.Add(time.Second),
			Stage:       progress.StageFetchDone,
			Site:        "ok.example",
			Bytes:       2048,
			StatusClass: progress.Status2xx,
			Dur:         150 * time.Millisecond,
		},
		{
			RunID:       runID,
			TS:          now.Add(2 * time.Second),
			Stage:       progress.StageFetchDone,
			Site:        "ok.example",
			StatusClass: progress.Status4xx,
			Dur:         90 * time.Millisecond,
		},
		{
			RunID:  runID,
			TS:     now.Add(3 * time.Second),
			Stage:  progress.StageRecordWritten,
			Result: "success",
		},
		{
			RunID:     runID,
			TS:        now.Add(4 * time.Second),
			Stage:     progress.StageRecordWritten,
			Result:    "error",
			ErrorType: "HTTPError",
		},
		{RunID: runID, TS: now.Add(5 * time.Second), Stage: progress.StageRunDone, Dur: 5 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))

	require.InDelta(t, 1.0,
		testutil.ToFloat64(sink.fetchRequests.WithLabelValues("ok.example", string(progress.Status2xx))), 1e-9)
	require.InDelta(t, 1.0,
		testutil.ToFloat64(sink.fetchRequests.WithLabelValues("ok.example", string(progress.Status4xx))), 1e-9)
	require.InDelta(t, 2048.0,
		testutil.ToFloat64(sink.fetchBytes.WithLabelValues("ok.example")), 1e-9)
	require.Equal(t, 2, testutil.CollectAndCount(sink.fetchDuration, "harvester_fetch_duration_seconds"))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.recordsWritten.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.recordsWritten.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.failures.WithLabelValues("HTTPError")))
}

func TestPrometheusSinkRunError(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRunError, Dur: time.Second},
	}))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
}

func TestPrometheusSinkDoubleRegister(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestLogSinkConsume(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(uuid.New()), TS: time.Now(), Stage: progress.StageRunStart},
	}))
	require.NoError(t, sink.Close(context.Background()))
}
