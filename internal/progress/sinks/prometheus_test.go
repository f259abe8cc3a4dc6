package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"corpuscrawler/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageAdmitted, URL: "https://a.test/"},
		{RunID: runID, TS: now, Stage: progress.StageRejected, URL: "https://b.test/", Reason: "domain-allow"},
		{
			RunID:       runID,
			TS:          now.Add(time.Second),
			Stage:       progress.StageFetched,
			Host:        "a.test",
			URL:         "https://a.test/",
			Attempt:     1,
			Bytes:       2048,
			StatusClass: progress.Status2xx,
			Dur:         150 * time.Millisecond,
		},
		{RunID: runID, TS: now.Add(2 * time.Second), Stage: progress.StageRetried, Host: "a.test", Attempt: 1},
		{RunID: runID, TS: now.Add(3 * time.Second), Stage: progress.StageAbandoned, Host: "a.test", Attempt: 3},
		{RunID: runID, TS: now.Add(4 * time.Second), Stage: progress.StageCrawlDone, Dur: 4 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.admitted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.rejected.WithLabelValues("domain-allow")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.retried.WithLabelValues("a.test")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.abandoned.WithLabelValues("a.test")))
	require.InDelta(
		t,
		1.0,
		testutil.ToFloat64(sink.fetchRequests.WithLabelValues("a.test", string(progress.Status2xx))),
		1e-9,
	)
	require.InDelta(t, 2048.0, testutil.ToFloat64(sink.fetchBytes.WithLabelValues("a.test")), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "corpus_fetch_duration_seconds"))
}

// TestPrometheusSinkBoundsReasonCardinality confirms only the predicate name
// becomes a label value.
func TestPrometheusSinkBoundsReasonCardinality(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	batch := []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageRejected, Reason: "custom:checker: boom at https://x.test"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.rejected.WithLabelValues("custom")))
}

// TestPrometheusSinkDuplicateRegistration verifies a second registration fails cleanly.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
