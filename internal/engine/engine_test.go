package engine

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"corpuscrawler/internal/checkpoint"
	"corpuscrawler/internal/config"
	"corpuscrawler/internal/corpus"
)

func articleHandler(title, body string, links ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		page := "<html><head><title>" + title + "</title></head><body><p>" + body + "</p>"
		for _, link := range links {
			page += fmt.Sprintf(`<a href=%q>link</a>`, link)
		}
		page += "</body></html>"
		_, _ = w.Write([]byte(page))
	}
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", articleHandler("Front", "Front page news text.", "/articles/1", "/articles/2"))
	mux.HandleFunc("/articles/1", articleHandler("One", "First article body text."))
	mux.HandleFunc("/articles/2", articleHandler("Two", "Second article body text."))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, seed string) config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Config{}
	cfg.Server.Port = 8080
	cfg.Crawler.SeedURLs = []string{seed}
	cfg.Crawler.Workers = 2
	cfg.Crawler.PerDomainMax = 2
	cfg.Crawler.UserAgent = "corpus-test/1.0"
	cfg.Crawler.DelayMs = 1
	cfg.Crawler.MaxDepth = 2
	cfg.Crawler.MaxPages = 10
	cfg.Crawler.MaxPending = 1000
	cfg.Crawler.BackoffCap = 8
	cfg.Crawler.SeedOwnDomains = true
	cfg.Crawler.MaxRetries = 3
	cfg.Crawler.RetryInitialMs = 1
	cfg.Crawler.RetryMaxDelayMs = 10
	cfg.Crawler.CheckpointPath = filepath.Join(dir, "checkpoint.json")
	cfg.Crawler.ContentTypes = []string{"text/html"}
	cfg.HTTP.TimeoutSeconds = 10
	cfg.HTTP.MaxRedirects = 5
	cfg.Pipeline.BufferSize = 16
	cfg.Pipeline.Consumers = 1
	cfg.Pipeline.StallGraceSeconds = 5
	cfg.Dataset.Dir = filepath.Join(dir, "dataset")
	return cfg
}

func TestEngineCrawlsSeedSiteEndToEnd(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	cfg := testConfig(t, srv.URL+"/")

	eng, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Run(context.Background()))

	require.Equal(t, int64(3), eng.pool.Pages())
	require.NoError(t, corpus.ValidateDataset(cfg.Dataset.Dir))

	ids, err := eng.manager.IDs()
	require.NoError(t, err)
	require.Len(t, ids, 3)

	meta, err := eng.manager.LoadMeta(1)
	require.NoError(t, err)
	require.NotEmpty(t, meta.Title)
	require.NotEmpty(t, meta.Digest)

	snap, err := checkpoint.Load(cfg.Crawler.CheckpointPath)
	require.NoError(t, err)
	require.Equal(t, int64(3), snap.Pages)
	require.Len(t, snap.Frontier.Terminal, 3)
}

func TestEngineStopsAtPageBudget(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	cfg := testConfig(t, srv.URL+"/")
	cfg.Crawler.Workers = 1
	cfg.Crawler.MaxPages = 1

	eng, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Run(context.Background()))
	require.Equal(t, int64(1), eng.pool.Pages())
}

func TestEngineResumesFromCheckpoint(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	cfg := testConfig(t, srv.URL+"/")
	cfg.Crawler.Workers = 1
	cfg.Crawler.MaxPages = 1

	first, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, first.Run(context.Background()))

	// The second run picks up the frontier where the first stopped; the
	// seed is deduplicated, so only the discovered articles remain.
	cfg.Crawler.ResumeCrawl = true
	cfg.Crawler.MaxPages = 10
	second, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, second.Run(context.Background()))
	require.Equal(t, int64(2), second.pool.Pages())

	ids, err := second.manager.IDs()
	require.NoError(t, err)
	require.Len(t, ids, 3)
	require.NoError(t, corpus.ValidateDataset(cfg.Dataset.Dir))
}

func TestEngineRejectsOffDomainSeedLinks(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", articleHandler("Front", "Front text.", "https://elsewhere.test/x", "/articles/1"))
	mux.HandleFunc("/articles/1", articleHandler("One", "Body text."))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := testConfig(t, srv.URL+"/")
	eng, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Run(context.Background()))

	// Only the seed host's pages are fetched.
	require.Equal(t, int64(2), eng.pool.Pages())
}

func TestEngineStatusReflectsRun(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	cfg := testConfig(t, srv.URL+"/")
	eng, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Run(context.Background()))

	status := eng.Status()
	require.Equal(t, int64(3), status.Pages)
	require.Equal(t, 0, status.Pending)
	require.Equal(t, 0, status.InFlight)
	require.Equal(t, int64(3), status.Processed)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	require.NotEmpty(t, u.Hostname())
}

func TestEngineProcessRunsLinguisticPipeline(t *testing.T) {
	t.Parallel()

	srv := newSite(t)
	cfg := testConfig(t, srv.URL+"/")
	eng, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Run(context.Background()))
	require.NoError(t, eng.Process(context.Background()))

	meta, err := eng.manager.LoadMeta(1)
	require.NoError(t, err)
	require.NotEmpty(t, meta.POSFrequencies)
}

func TestEngineRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "https://a.test/")
	cfg.Crawler.SeedURLs = nil
	_, err := New(cfg, nil)
	require.Error(t, err)
}
