package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"corpuscrawler/internal/crawl"
	"corpuscrawler/internal/criteria"
	"corpuscrawler/internal/frontier"
	"corpuscrawler/internal/hostbucket"
	"corpuscrawler/internal/progress"
)

// LinkExtractor pulls outbound links from a fetched page.
type LinkExtractor interface {
	Links(artifact *crawl.PageArtifact) ([]string, error)
}

// ArtifactSink receives pages that survived the post-fetch checks. The
// pipeline dispatcher is the production implementation.
type ArtifactSink interface {
	Push(ctx context.Context, artifact *crawl.PageArtifact) error
}

// PoolConfig sizes the worker pool and bounds the crawl.
type PoolConfig struct {
	// Workers is the number of concurrent fetch goroutines (default 4).
	Workers int
	// MaxPages stops the crawl after this many successful pages; zero
	// means no budget.
	MaxPages int
}

const defaultWorkers = 4

// Pool runs the fetch state machine: claim a ready URL, fetch it, classify
// the outcome, and either retry, abandon, or hand the page downstream. Every
// claimed URL ends in exactly one terminal state.
type Pool struct {
	cfg      PoolConfig
	frontier *frontier.Frontier
	buckets  *hostbucket.Registry
	fetcher  crawl.Fetcher
	policy   RetryPolicy
	robots   RobotsPolicy
	admit    criteria.Spec
	keep     criteria.Spec
	links    LinkExtractor
	sink     ArtifactSink
	emitter  progress.Emitter
	clock    crawl.Clock
	logger   *zap.Logger
	runID    [16]byte

	cancel   context.CancelFunc
	failOnce sync.Once
	failure  error
	pages    atomic.Int64
}

// PoolDeps carries the collaborators a Pool needs.
type PoolDeps struct {
	Frontier *frontier.Frontier
	Buckets  *hostbucket.Registry
	Fetcher  crawl.Fetcher
	Policy   RetryPolicy
	Robots   RobotsPolicy
	// Admit gates URLs before they enter the frontier.
	Admit criteria.Spec
	// Keep gates fetched pages before they reach the pipeline.
	Keep    criteria.Spec
	Links   LinkExtractor
	Sink    ArtifactSink
	Emitter progress.Emitter
	Clock   crawl.Clock
	Logger  *zap.Logger
	RunID   [16]byte
}

// NewPool builds a Pool. Missing optional collaborators get no-op defaults.
func NewPool(cfg PoolConfig, deps PoolDeps) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if deps.Policy == nil {
		deps.Policy = NewExponentialRetryPolicy()
	}
	if deps.Robots == nil {
		deps.Robots = AllowAllRobots{}
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.NopEmitter{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pool{
		cfg:      cfg,
		frontier: deps.Frontier,
		buckets:  deps.Buckets,
		fetcher:  deps.Fetcher,
		policy:   deps.Policy,
		robots:   deps.Robots,
		admit:    deps.Admit,
		keep:     deps.Keep,
		links:    deps.Links,
		sink:     deps.Sink,
		emitter:  deps.Emitter,
		clock:    deps.Clock,
		logger:   deps.Logger,
		runID:    deps.RunID,
	}
}

// Submit evaluates a candidate URL against the admission criteria and, when
// admitted, enqueues it on the frontier. A full frontier is fatal to the run.
func (p *Pool) Submit(rawURL string, depth int) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		p.emitRejected(rawURL, depth, fmt.Sprintf("invalid-url: %v", err))
		return nil
	}
	decision := p.admit.Evaluate(criteria.Target{URL: parsed, Depth: depth})
	if !decision.Admit {
		p.emitRejected(rawURL, depth, decision.Reason)
		return nil
	}

	rec, added, err := p.frontier.Submit(rawURL, depth)
	if errors.Is(err, frontier.ErrFull) {
		p.fail(fmt.Errorf("admit %s: %w", rawURL, err))
		return err
	}
	if err != nil {
		p.emitRejected(rawURL, depth, fmt.Sprintf("invalid-url: %v", err))
		return nil
	}
	if added {
		p.emitter.Emit(progress.Event{
			RunID: p.runID,
			TS:    p.clock.Now().UTC(),
			Stage: progress.StageAdmitted,
			Host:  rec.Host,
			URL:   rec.Raw,
			Depth: rec.Depth,
		})
	}
	return nil
}

// Run blocks until the frontier is exhausted, the page budget is spent, the
// context is canceled, or a fatal error stops the run. The returned error is
// nil except for fatal conditions.
func (p *Pool) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.cancel = cancel

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.loop(ctx)
		}()
	}
	wg.Wait()
	return p.failure
}

// Pages reports how many pages were fetched and dispatched successfully.
func (p *Pool) Pages() int64 {
	return p.pages.Load()
}

func (p *Pool) loop(ctx context.Context) {
	for {
		rec, err := p.frontier.NextReady(ctx)
		if err != nil {
			return
		}
		p.process(ctx, rec)
	}
}

func (p *Pool) process(ctx context.Context, rec *crawl.URLRecord) {
	if allowed := p.checkRobots(ctx, rec); !allowed {
		p.buckets.Release(rec.Host, crawl.OutcomeSuccess)
		p.frontier.Complete(rec, crawl.StateAbandoned, "disallowed by robots.txt")
		p.frontier.Wake()
		p.emitAbandoned(rec, "robots")
		return
	}

	p.emitter.Emit(progress.Event{
		RunID:   p.runID,
		TS:      p.clock.Now().UTC(),
		Stage:   progress.StageFetchStart,
		Host:    rec.Host,
		URL:     rec.Raw,
		Depth:   rec.Depth,
		Attempt: rec.Attempts,
	})

	resp, err := p.fetcher.Fetch(ctx, crawl.FetchRequest{
		URL:     rec.Raw,
		Depth:   rec.Depth,
		Attempt: rec.Attempts,
	})
	if err != nil && ctx.Err() != nil {
		// Shutdown, not a host problem. Put the URL back untouched.
		p.buckets.Release(rec.Host, crawl.OutcomeSuccess)
		p.frontier.Requeue(rec, 0)
		return
	}

	outcome := Classify(resp.StatusCode, err)
	p.buckets.Release(rec.Host, outcome)
	p.frontier.Wake()

	switch outcome {
	case crawl.OutcomeTransient:
		p.handleTransient(rec, resp, err)
	case crawl.OutcomePermanent:
		p.handlePermanent(rec, resp)
	case crawl.OutcomeSuccess:
		p.handleSuccess(ctx, rec, resp)
	}
}

func (p *Pool) checkRobots(ctx context.Context, rec *crawl.URLRecord) bool {
	allowed, err := p.robots.Allowed(ctx, rec.Raw)
	if err != nil {
		p.logger.Debug("robots check failed, allowing",
			zap.String("url", rec.Raw), zap.Error(err))
		return true
	}
	return allowed
}

func (p *Pool) handleTransient(rec *crawl.URLRecord, resp crawl.FetchResponse, err error) {
	cause := describeFailure(resp, err)
	p.emitter.Emit(progress.Event{
		RunID:       p.runID,
		TS:          p.clock.Now().UTC(),
		Stage:       progress.StageFailed,
		Host:        rec.Host,
		URL:         rec.Raw,
		Depth:       rec.Depth,
		Attempt:     rec.Attempts,
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
		Reason:      cause,
	})

	if rec.Attempts >= p.policy.MaxAttempts() {
		p.frontier.Complete(rec, crawl.StateAbandoned, cause)
		p.emitAbandoned(rec, cause)
		return
	}

	delay := p.policy.Backoff(rec.Attempts)
	p.frontier.Requeue(rec, delay)
	p.emitter.Emit(progress.Event{
		RunID:   p.runID,
		TS:      p.clock.Now().UTC(),
		Stage:   progress.StageRetried,
		Host:    rec.Host,
		URL:     rec.Raw,
		Depth:   rec.Depth,
		Attempt: rec.Attempts,
		Dur:     delay,
		Reason:  cause,
	})
}

func (p *Pool) handlePermanent(rec *crawl.URLRecord, resp crawl.FetchResponse) {
	cause := describeFailure(resp, nil)
	p.emitter.Emit(progress.Event{
		RunID:       p.runID,
		TS:          p.clock.Now().UTC(),
		Stage:       progress.StageFailed,
		Host:        rec.Host,
		URL:         rec.Raw,
		Depth:       rec.Depth,
		Attempt:     rec.Attempts,
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
		Reason:      cause,
	})
	p.frontier.Complete(rec, crawl.StateAbandoned, cause)
	p.emitAbandoned(rec, cause)
}

func (p *Pool) handleSuccess(ctx context.Context, rec *crawl.URLRecord, resp crawl.FetchResponse) {
	artifact := &crawl.PageArtifact{
		URL:         rec.Raw,
		Key:         rec.Key,
		Depth:       rec.Depth,
		StatusCode:  resp.StatusCode,
		FetchedAt:   p.clock.Now().UTC(),
		ContentType: resp.ContentType,
		Body:        resp.Body,
	}

	if parsed, err := url.Parse(rec.Raw); err == nil {
		decision := p.keep.Evaluate(criteria.Target{URL: parsed, Depth: rec.Depth, Artifact: artifact})
		if !decision.Admit {
			p.frontier.Complete(rec, crawl.StateAbandoned, decision.Reason)
			p.emitRejected(rec.Raw, rec.Depth, decision.Reason)
			p.emitAbandoned(rec, decision.Reason)
			return
		}
	}

	if p.links != nil {
		links, err := p.links.Links(artifact)
		if err != nil {
			p.logger.Warn("link extraction failed",
				zap.String("url", rec.Raw), zap.Error(err))
		}
		artifact.Links = links
		for _, link := range links {
			if err := p.Submit(link, rec.Depth+1); err != nil {
				return
			}
		}
	}

	p.emitter.Emit(progress.Event{
		RunID:       p.runID,
		TS:          p.clock.Now().UTC(),
		Stage:       progress.StageFetched,
		Host:        rec.Host,
		URL:         rec.Raw,
		Depth:       rec.Depth,
		Attempt:     rec.Attempts,
		Bytes:       int64(len(resp.Body)),
		StatusClass: progress.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})

	if p.sink != nil {
		if err := p.sink.Push(ctx, artifact); err != nil {
			p.frontier.Complete(rec, crawl.StateFailed, err.Error())
			p.fail(fmt.Errorf("dispatch %s: %w", rec.Raw, err))
			return
		}
	}

	p.frontier.Complete(rec, crawl.StateFetched, "")

	if n := p.pages.Add(1); p.cfg.MaxPages > 0 && n >= int64(p.cfg.MaxPages) {
		p.logger.Info("page budget reached, stopping crawl",
			zap.Int64("pages", n))
		p.cancel()
	}
}

func (p *Pool) fail(err error) {
	p.failOnce.Do(func() {
		p.failure = err
		p.logger.Error("fatal crawl error", zap.Error(err))
		if p.cancel != nil {
			p.cancel()
		}
	})
}

func (p *Pool) emitRejected(rawURL string, depth int, reason string) {
	p.emitter.Emit(progress.Event{
		RunID:  p.runID,
		TS:     p.clock.Now().UTC(),
		Stage:  progress.StageRejected,
		URL:    rawURL,
		Depth:  depth,
		Reason: reason,
	})
}

func (p *Pool) emitAbandoned(rec *crawl.URLRecord, reason string) {
	p.emitter.Emit(progress.Event{
		RunID:   p.runID,
		TS:      p.clock.Now().UTC(),
		Stage:   progress.StageAbandoned,
		Host:    rec.Host,
		URL:     rec.Raw,
		Depth:   rec.Depth,
		Attempt: rec.Attempts,
		Reason:  reason,
	})
}

func describeFailure(resp crawl.FetchResponse, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("http status %d", resp.StatusCode)
}
