// Package engine assembles the crawl subsystems and runs a crawl end to end:
// seeds in, dataset files and a resumable checkpoint out.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"corpuscrawler/internal/api"
	"corpuscrawler/internal/checkpoint"
	"corpuscrawler/internal/clock/system"
	"corpuscrawler/internal/config"
	"corpuscrawler/internal/corpus"
	"corpuscrawler/internal/crawl"
	"corpuscrawler/internal/criteria"
	"corpuscrawler/internal/extract"
	"corpuscrawler/internal/fetch"
	"corpuscrawler/internal/frontier"
	"corpuscrawler/internal/hash/sha256"
	"corpuscrawler/internal/hostbucket"
	idgen "corpuscrawler/internal/id/uuid"
	"corpuscrawler/internal/lingua"
	"corpuscrawler/internal/logging"
	"corpuscrawler/internal/pipeline"
	"corpuscrawler/internal/progress"
	"corpuscrawler/internal/progress/sinks"
)

// Engine owns one crawl run.
type Engine struct {
	cfg    config.Config
	logger *zap.Logger
	clock  crawl.Clock
	runID  uuid.UUID

	frontier   *frontier.Frontier
	buckets    *hostbucket.Registry
	pool       *fetch.Pool
	dispatcher *pipeline.Dispatcher
	hub        *progress.Hub
	manager    *corpus.Manager
	registry   *prometheus.Registry
}

// New validates the configuration and wires a ready-to-run Engine.
func New(cfg config.Config, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	runID, err := idgen.New().NewRawID()
	if err != nil {
		return nil, err
	}

	clock := system.New()
	buckets := hostbucket.New(hostbucket.Config{
		PerHostConcurrency:   cfg.Crawler.PerDomainMax,
		MinInterval:          cfg.HostDelay(),
		BackoffMultiplierCap: cfg.Crawler.BackoffCap,
	}, clock)
	front := frontier.New(frontier.Config{MaxPending: cfg.Crawler.MaxPending}, clock, buckets)

	registry := prometheus.NewRegistry()
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		return nil, err
	}
	hub := progress.NewHub(
		progress.Config{Logger: logging.Named(logger, "progress")},
		sinks.NewLogSink(logging.Named(logger, "progress")),
		promSink,
	)

	manager, err := corpus.NewManager(cfg.Dataset.Dir, logging.Named(logger, "corpus"))
	if err != nil {
		return nil, err
	}
	extractor := extract.NewHTMLExtractor()
	dispatcher := pipeline.NewDispatcher(pipeline.Config{
		BufferSize: cfg.Pipeline.BufferSize,
		Consumers:  cfg.Pipeline.Consumers,
		StallGrace: cfg.StallGrace(),
		Logger:     logging.Named(logger, "pipeline"),
	}, &articleProcessor{
		manager:   manager,
		extractor: extractor,
		hasher:    sha256.New(),
		logger:    logging.Named(logger, "pipeline"),
	})

	admit, err := admissionSpec(cfg)
	if err != nil {
		return nil, err
	}

	var robots fetch.RobotsPolicy = fetch.AllowAllRobots{}
	if !cfg.Crawler.IgnoreRobots {
		robots = fetch.NewRobotsAgent(cfg.Crawler.UserAgent, cfg.FetchTimeout(), logging.Named(logger, "robots"))
	}

	pool := fetch.NewPool(fetch.PoolConfig{
		Workers:  cfg.Crawler.Workers,
		MaxPages: cfg.Crawler.MaxPages,
	}, fetch.PoolDeps{
		Frontier: front,
		Buckets:  buckets,
		Fetcher: fetch.NewClient(fetch.ClientConfig{
			UserAgent:    cfg.Crawler.UserAgent,
			Timeout:      cfg.FetchTimeout(),
			MaxRedirects: cfg.HTTP.MaxRedirects,
		}, clock),
		Policy: fetch.NewExponentialRetryPolicy().WithLimits(
			cfg.Crawler.MaxRetries,
			time.Duration(cfg.Crawler.RetryInitialMs)*time.Millisecond,
			time.Duration(cfg.Crawler.RetryMaxDelayMs)*time.Millisecond,
		),
		Robots:  robots,
		Admit:   admit,
		Keep:    criteria.NewSpec(criteria.NewContentType(cfg.Crawler.ContentTypes)),
		Links:   extractor,
		Sink:    dispatcher,
		Emitter: hub,
		Clock:   clock,
		Logger:  logging.Named(logger, "fetch"),
		RunID:   progress.UUIDToBytes(runID),
	})

	return &Engine{
		cfg:        cfg,
		logger:     logger,
		clock:      clock,
		runID:      runID,
		frontier:   front,
		buckets:    buckets,
		pool:       pool,
		dispatcher: dispatcher,
		hub:        hub,
		manager:    manager,
		registry:   registry,
	}, nil
}

// admissionSpec builds the pre-fetch admission rules from configuration. With
// no explicit allow list the crawl is scoped to the seed domains, matching
// the usual corpus-building setup.
func admissionSpec(cfg config.Config) (criteria.Spec, error) {
	var preds []criteria.Predicate
	preds = append(preds, criteria.NewDepthLimit(cfg.Crawler.MaxDepth))
	if len(cfg.Crawler.DeniedDomains) > 0 {
		preds = append(preds, criteria.NewDomainDeny(cfg.Crawler.DeniedDomains))
	}
	allowed := cfg.Crawler.AllowedDomains
	if len(allowed) == 0 && cfg.Crawler.SeedOwnDomains {
		allowed = cfg.SeedDomains()
	}
	if len(allowed) > 0 {
		preds = append(preds, criteria.NewDomainAllow(allowed))
	}
	if cfg.Crawler.PathPattern != "" {
		re, err := regexp.Compile(cfg.Crawler.PathPattern)
		if err != nil {
			return criteria.Spec{}, fmt.Errorf("compile crawler.path_pattern: %w", err)
		}
		preds = append(preds, criteria.NewPathPattern(re))
	}
	return criteria.NewSpec(preds...), nil
}

// Run executes the crawl: optional checkpoint restore, seed admission, the
// worker pool until exhaustion or budget, then checkpoint save and pipeline
// drain. The returned error is non-nil only for fatal conditions.
func (e *Engine) Run(ctx context.Context) error {
	start := e.clock.Now()
	e.hub.Emit(progress.Event{
		RunID: progress.UUIDToBytes(e.runID),
		TS:    start,
		Stage: progress.StageCrawlStart,
	})

	if e.cfg.Crawler.ResumeCrawl {
		if err := e.restore(); err != nil {
			return err
		}
	}

	var runErr error
	for _, seed := range e.cfg.Crawler.SeedURLs {
		if err := e.pool.Submit(seed, 0); err != nil {
			runErr = err
			break
		}
	}
	if runErr == nil {
		runErr = e.pool.Run(ctx)
	}

	if err := e.saveCheckpoint(); err != nil {
		e.logger.Warn("checkpoint save failed", zap.Error(err))
	}
	e.dispatcher.Close()

	stage := progress.StageCrawlDone
	reason := ""
	if runErr != nil {
		stage = progress.StageCrawlError
		reason = runErr.Error()
	}
	e.hub.Emit(progress.Event{
		RunID:  progress.UUIDToBytes(e.runID),
		TS:     e.clock.Now(),
		Stage:  stage,
		Dur:    e.clock.Now().Sub(start),
		Reason: reason,
	})

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.hub.Close(closeCtx); err != nil {
		e.logger.Warn("progress hub close failed", zap.Error(err))
	}

	e.logger.Info("crawl finished",
		zap.String("run_id", e.runID.String()),
		zap.Int64("pages", e.pool.Pages()),
		zap.Int64("processed", e.dispatcher.Processed()),
		zap.Duration("runtime", e.clock.Now().Sub(start)),
		zap.Error(runErr),
	)
	return runErr
}

// Process runs the linguistic pipeline over the stored dataset.
func (e *Engine) Process(ctx context.Context) error {
	proc := lingua.NewProcessor(e.manager, lingua.NewAnalyzer(), logging.Named(e.logger, "lingua"))
	return proc.Run(ctx)
}

// Status implements api.StatusSource.
func (e *Engine) Status() api.Status {
	return api.Status{
		RunID:     e.runID.String(),
		Pages:     e.pool.Pages(),
		Pending:   e.frontier.PendingLen(),
		InFlight:  e.frontier.InFlightLen(),
		Processed: e.dispatcher.Processed(),
	}
}

// Registry exposes the metrics registry for the API server.
func (e *Engine) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Engine) restore() error {
	snap, err := checkpoint.Load(e.cfg.Crawler.CheckpointPath)
	if errors.Is(err, os.ErrNotExist) {
		e.logger.Info("no checkpoint found, starting fresh",
			zap.String("path", e.cfg.Crawler.CheckpointPath))
		return nil
	}
	if err != nil {
		return err
	}
	e.frontier.Restore(snap.Frontier)
	e.buckets.Restore(snap.Hosts)
	e.logger.Info("checkpoint restored",
		zap.String("path", e.cfg.Crawler.CheckpointPath),
		zap.Int("pending", len(snap.Frontier.Pending)),
		zap.Int("seen", len(snap.Frontier.Seen)),
	)
	return nil
}

func (e *Engine) saveCheckpoint() error {
	return checkpoint.Save(e.cfg.Crawler.CheckpointPath, checkpoint.Snapshot{
		RunID:    e.runID.String(),
		SavedAt:  e.clock.Now(),
		Pages:    e.pool.Pages(),
		Frontier: e.frontier.Snapshot(),
		Hosts:    e.buckets.Snapshot(),
	})
}

// articleProcessor turns fetched pages into dataset entries: plain text plus
// a metadata record carrying the body digest.
type articleProcessor struct {
	manager   *corpus.Manager
	extractor *extract.HTMLExtractor
	hasher    crawl.Hasher
	logger    *zap.Logger
}

func (p *articleProcessor) Process(_ context.Context, artifact *crawl.PageArtifact) error {
	text, err := p.extractor.Text(artifact)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		p.logger.Debug("skipping page without article text", zap.String("url", artifact.URL))
		return nil
	}
	meta, err := p.extractor.Meta(artifact)
	if err != nil {
		return err
	}
	if digest, err := p.hasher.Hash(artifact.Body); err == nil {
		meta.Digest = digest
	}
	id, err := p.manager.Save(text, meta)
	if err != nil {
		return err
	}
	p.logger.Debug("article stored", zap.Int("id", id), zap.String("url", artifact.URL))
	return nil
}
