// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Budget limits carried over from the dataset requirements.
const maxPagesLimit = 300

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the metrics/health HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the frontier, worker pool, and politeness behavior.
type CrawlerConfig struct {
	SeedURLs        []string `mapstructure:"seed_urls"`
	Workers         int      `mapstructure:"workers"`
	PerDomainMax    int      `mapstructure:"per_domain_max"`
	UserAgent       string   `mapstructure:"user_agent"`
	DelayMs         int      `mapstructure:"delay_ms"`
	IgnoreRobots    bool     `mapstructure:"ignore_robots"`
	MaxDepth        int      `mapstructure:"max_depth"`
	MaxPages        int      `mapstructure:"max_pages"`
	MaxPending      int      `mapstructure:"max_pending"`
	AllowedDomains  []string `mapstructure:"allowed_domains"`
	DeniedDomains   []string `mapstructure:"denied_domains"`
	PathPattern     string   `mapstructure:"path_pattern"`
	ContentTypes    []string `mapstructure:"content_types"`
	BackoffCap      int      `mapstructure:"backoff_cap"`
	CheckpointPath  string   `mapstructure:"checkpoint_path"`
	ResumeCrawl     bool     `mapstructure:"resume"`
	SeedOwnDomains  bool     `mapstructure:"seed_own_domains"`
	MaxRetries      int      `mapstructure:"max_retries"`
	RetryInitialMs  int      `mapstructure:"retry_initial_ms"`
	RetryMaxDelayMs int      `mapstructure:"retry_max_delay_ms"`
}

// HTTPConfig configures the fetch client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRedirects   int `mapstructure:"max_redirects"`
}

// PipelineConfig bounds the handoff to page processing.
type PipelineConfig struct {
	BufferSize        int `mapstructure:"buffer_size"`
	Consumers         int `mapstructure:"consumers"`
	StallGraceSeconds int `mapstructure:"stall_grace_seconds"`
}

// DatasetConfig sets where article files land.
type DatasetConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CORPUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.per_domain_max", 2)
	v.SetDefault("crawler.user_agent", "corpuscrawler/1.0")
	v.SetDefault("crawler.delay_ms", 1000)
	v.SetDefault("crawler.ignore_robots", false)
	v.SetDefault("crawler.max_depth", 2)
	v.SetDefault("crawler.max_pages", 100)
	v.SetDefault("crawler.max_pending", 100000)
	v.SetDefault("crawler.backoff_cap", 32)
	v.SetDefault("crawler.checkpoint_path", "state/checkpoint.json")
	v.SetDefault("crawler.seed_own_domains", true)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.retry_initial_ms", 250)
	v.SetDefault("crawler.retry_max_delay_ms", 5000)
	v.SetDefault("crawler.content_types", []string{"text/html"})
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_redirects", 5)
	v.SetDefault("pipeline.buffer_size", 64)
	v.SetDefault("pipeline.consumers", 1)
	v.SetDefault("pipeline.stall_grace_seconds", 30)
	v.SetDefault("dataset.dir", "dataset")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Seed problems are
// caught here, before any crawl work starts.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if len(c.Crawler.SeedURLs) == 0 {
		return fmt.Errorf("crawler.seed_urls must not be empty")
	}
	for _, seed := range c.Crawler.SeedURLs {
		u, err := url.Parse(seed)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("crawler.seed_urls entry %q is not an absolute http(s) url", seed)
		}
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.PerDomainMax <= 0 {
		return fmt.Errorf("crawler.per_domain_max must be > 0")
	}
	if c.Crawler.MaxPages < 1 || c.Crawler.MaxPages > maxPagesLimit {
		return fmt.Errorf("crawler.max_pages must be between 1 and %d", maxPagesLimit)
	}
	if c.Crawler.MaxDepth < 0 {
		return fmt.Errorf("crawler.max_depth must be >= 0")
	}
	if c.Crawler.MaxRetries <= 0 {
		return fmt.Errorf("crawler.max_retries must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Dataset.Dir == "" {
		return fmt.Errorf("dataset.dir must be set")
	}
	return nil
}

// FetchTimeout converts the HTTP timeout config into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// HostDelay converts the politeness delay config into a duration.
func (c Config) HostDelay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// StallGrace converts the pipeline stall tolerance into a duration.
func (c Config) StallGrace() time.Duration {
	return time.Duration(c.Pipeline.StallGraceSeconds) * time.Second
}

// SeedDomains lists the unique hostnames of the seed URLs, used to scope the
// crawl when no explicit allow list is configured.
func (c Config) SeedDomains() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, seed := range c.Crawler.SeedURLs {
		u, err := url.Parse(seed)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if host == "" {
			continue
		}
		if _, dup := seen[host]; dup {
			continue
		}
		seen[host] = struct{}{}
		out = append(out, host)
	}
	return out
}
