package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"corpuscrawler/internal/progress"
)

// PrometheusSink exports crawl progress metrics. It owns every collector for
// admissions, rejections, fetch outcomes, retries, and abandonment.
type PrometheusSink struct {
	admitted  prometheus.Counter
	rejected  *prometheus.CounterVec
	retried   *prometheus.CounterVec
	abandoned *prometheus.CounterVec

	fetchRequests *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	crawlRuntime prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		admitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corpus_urls_admitted_total",
			Help: "URLs admitted into the frontier.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corpus_urls_rejected_total",
			Help: "URLs rejected by the selection evaluator, by reason.",
		}, []string{"reason"}),
		retried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corpus_fetch_retries_total",
			Help: "Fetch attempts requeued for retry, by host.",
		}, []string{"site"}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corpus_urls_abandoned_total",
			Help: "URLs abandoned after exhausting retries, by host.",
		}, []string{"site"}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corpus_fetch_requests_total",
			Help: "Fetch completions partitioned by site and status class.",
		}, []string{"site", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corpus_fetch_bytes_total",
			Help: "Bytes downloaded per site.",
		}, []string{"site"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "corpus_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by site and status class.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"site", "status_class"}),
		crawlRuntime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "corpus_crawl_runtime_seconds",
			Help:    "Wall time per completed crawl run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.admitted,
		s.rejected,
		s.retried,
		s.abandoned,
		s.fetchRequests,
		s.fetchBytes,
		s.fetchDuration,
		s.crawlRuntime,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageAdmitted:
		s.admitted.Inc()
	case progress.StageRejected:
		s.rejected.WithLabelValues(reasonLabel(evt.Reason)).Inc()
	case progress.StageRetried:
		s.retried.WithLabelValues(site(evt)).Inc()
	case progress.StageAbandoned:
		s.abandoned.WithLabelValues(site(evt)).Inc()
	case progress.StageFetched, progress.StageFailed:
		s.handleFetchEvent(evt)
	case progress.StageCrawlDone, progress.StageCrawlError:
		if evt.Dur > 0 {
			s.crawlRuntime.Observe(evt.Dur.Seconds())
		}
	}
}

func (s *PrometheusSink) handleFetchEvent(evt progress.Event) {
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.fetchRequests.WithLabelValues(site(evt), statusClass).Inc()
	if evt.Bytes > 0 {
		s.fetchBytes.WithLabelValues(site(evt)).Add(float64(evt.Bytes))
	}
	if evt.Dur > 0 {
		s.fetchDuration.WithLabelValues(site(evt), statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

func site(evt progress.Event) string {
	if evt.Host == "" {
		return "unknown"
	}
	return evt.Host
}

// reasonLabel bounds label cardinality: only the predicate name survives,
// not the per-URL error text.
func reasonLabel(reason string) string {
	for i, r := range reason {
		if r == ':' || r == ' ' {
			return reason[:i]
		}
	}
	return reason
}
