package fetch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"corpuscrawler/internal/crawl"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		err    error
		want   crawl.Outcome
	}{
		{name: "ok", status: 200, want: crawl.OutcomeSuccess},
		{name: "redirect", status: 301, want: crawl.OutcomeSuccess},
		{name: "transport error", err: errors.New("connection refused"), want: crawl.OutcomeTransient},
		{name: "rate limited", status: 429, want: crawl.OutcomeTransient},
		{name: "server error", status: 503, want: crawl.OutcomeTransient},
		{name: "not found", status: 404, want: crawl.OutcomePermanent},
		{name: "forbidden", status: 403, want: crawl.OutcomePermanent},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Classify(tc.status, tc.err))
		})
	}
}

func TestExponentialBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy().WithLimits(5, 100*time.Millisecond, time.Second)

	// Each delay is half the deterministic value plus random jitter up to
	// another half, so it lands in [delay/2, delay).
	first := policy.Backoff(1)
	require.GreaterOrEqual(t, first, 50*time.Millisecond)
	require.Less(t, first, 100*time.Millisecond)

	second := policy.Backoff(2)
	require.GreaterOrEqual(t, second, 100*time.Millisecond)
	require.Less(t, second, 200*time.Millisecond)

	// Attempt 20 would explode without the cap.
	capped := policy.Backoff(20)
	require.GreaterOrEqual(t, capped, 500*time.Millisecond)
	require.Less(t, capped, time.Second)
}

func TestExponentialBackoffClampsAttempt(t *testing.T) {
	t.Parallel()

	policy := NewExponentialRetryPolicy().WithLimits(3, 100*time.Millisecond, time.Second)
	require.Equal(t, policy.Backoff(1) >= 50*time.Millisecond, policy.Backoff(0) >= 50*time.Millisecond)
	require.Equal(t, 3, policy.MaxAttempts())
}
