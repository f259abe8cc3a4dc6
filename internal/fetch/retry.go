package fetch

import (
	"crypto/rand"
	"math"
	"math/big"
	"net/http"
	"time"

	"corpuscrawler/internal/crawl"
)

// Classify maps a fetch result onto the outcome taxonomy. Transport errors,
// 5xx responses, and 429 are transient; other 4xx are permanent; 2xx and 3xx
// succeed.
func Classify(statusCode int, err error) crawl.Outcome {
	if err != nil {
		return crawl.OutcomeTransient
	}
	switch {
	case statusCode >= 200 && statusCode < 400:
		return crawl.OutcomeSuccess
	case statusCode == http.StatusTooManyRequests:
		return crawl.OutcomeTransient
	case statusCode >= 500:
		return crawl.OutcomeTransient
	default:
		return crawl.OutcomePermanent
	}
}

// RetryPolicy decides how many attempts a URL gets and how long to wait
// between them.
type RetryPolicy interface {
	MaxAttempts() int
	Backoff(attempt int) time.Duration
}

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff.
type ExponentialRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewExponentialRetryPolicy builds a policy with sane defaults.
func NewExponentialRetryPolicy() *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{
		maxAttempts: 3,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
	}
}

// WithLimits overrides the default attempt and delay bounds.
func (p *ExponentialRetryPolicy) WithLimits(maxAttempts int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxAttempts > 0 {
		p.maxAttempts = maxAttempts
	}
	if baseDelay > 0 {
		p.baseDelay = baseDelay
	}
	if maxDelay > 0 {
		p.maxDelay = maxDelay
	}
	return p
}

// MaxAttempts implements RetryPolicy.
func (p *ExponentialRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Backoff returns the wait duration before the next attempt. The attempt
// argument counts completed attempts, starting at 1.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
