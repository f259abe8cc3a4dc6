// Package hostbucket tracks per-host politeness and adaptive backoff state.
package hostbucket

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"corpuscrawler/internal/crawl"
)

// Config holds registry-wide politeness settings.
type Config struct {
	// PerHostConcurrency caps simultaneous fetches against one host.
	PerHostConcurrency int
	// MinInterval is the minimum spacing between fetch starts to one host.
	MinInterval time.Duration
	// BackoffMultiplierCap bounds the exponential failure multiplier.
	BackoffMultiplierCap int
}

const (
	defaultPerHostConcurrency   = 2
	defaultMinInterval          = time.Second
	defaultBackoffMultiplierCap = 32
)

// Registry manages one bucket per host. All bucket mutations happen under
// the registry lock so acquire/release are atomic with respect to each other.
type Registry struct {
	cfg   Config
	clock crawl.Clock

	mu      sync.Mutex
	buckets map[string]*bucket
}

// bucket is the mutable politeness state for a single host. The limiter
// enforces the base min-interval spacing; retryAfter carries the adaptive
// backoff pushed out by failures.
type bucket struct {
	limiter    *rate.Limiter
	inFlight   int
	failures   int
	multiplier int
	retryAfter time.Time
}

// New constructs a Registry.
func New(cfg Config, clock crawl.Clock) *Registry {
	if cfg.PerHostConcurrency <= 0 {
		cfg.PerHostConcurrency = defaultPerHostConcurrency
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaultMinInterval
	}
	if cfg.BackoffMultiplierCap <= 0 {
		cfg.BackoffMultiplierCap = defaultBackoffMultiplierCap
	}
	return &Registry{
		cfg:     cfg,
		clock:   clock,
		buckets: make(map[string]*bucket),
	}
}

// TryAcquire reserves a fetch slot for host. It succeeds only when the host
// is past any backoff window, under its concurrency limit, and the politeness
// interval since the previous start has elapsed. On success the in-flight
// count is incremented and the next allowed start moves forward by the
// minimum interval.
func (r *Registry) TryAcquire(host string) bool {
	host = strings.ToLower(host)
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.ensureLocked(host)
	if b.inFlight >= r.cfg.PerHostConcurrency {
		return false
	}
	if now.Before(b.retryAfter) {
		return false
	}
	// The token check must come last: a consumed token is the interval
	// reservation, so nothing may fail after it.
	if !b.limiter.AllowN(now, 1) {
		return false
	}
	b.inFlight++
	return true
}

// Release returns a slot for host. A transient failure outcome doubles the
// backoff multiplier (capped) and pushes the next allowed start forward by
// minInterval times the multiplier; a success resets the multiplier to 1.
func (r *Registry) Release(host string, outcome crawl.Outcome) {
	host = strings.ToLower(host)
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.ensureLocked(host)
	if b.inFlight > 0 {
		b.inFlight--
	}
	if outcome == crawl.OutcomeTransient {
		b.failures++
		b.multiplier *= 2
		if b.multiplier > r.cfg.BackoffMultiplierCap {
			b.multiplier = r.cfg.BackoffMultiplierCap
		}
		b.retryAfter = now.Add(r.cfg.MinInterval * time.Duration(b.multiplier))
		return
	}
	b.failures = 0
	b.multiplier = 1
	b.retryAfter = time.Time{}
}

// InFlight reports the current in-flight count for host.
func (r *Registry) InFlight(host string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[strings.ToLower(host)]
	if !ok {
		return 0
	}
	return b.inFlight
}

// Multiplier reports the current backoff multiplier for host.
func (r *Registry) Multiplier(host string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buckets[strings.ToLower(host)]
	if !ok {
		return 1
	}
	return b.multiplier
}

func (r *Registry) ensureLocked(host string) *bucket {
	b, ok := r.buckets[host]
	if !ok {
		b = &bucket{
			limiter:    rate.NewLimiter(rate.Every(r.cfg.MinInterval), 1),
			multiplier: 1,
		}
		r.buckets[host] = b
	}
	return b
}
