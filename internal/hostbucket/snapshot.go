package hostbucket

import (
	"sort"
	"strings"
	"time"
)

// State is the serializable politeness state for one host. In-flight counts
// are deliberately absent: a restored crawl starts with no work in flight.
type State struct {
	Host       string    `json:"host"`
	Failures   int       `json:"failures"`
	Multiplier int       `json:"multiplier"`
	RetryAfter time.Time `json:"retry_after,omitempty"`
}

// Snapshot captures every known bucket, sorted by host for stable output.
func (r *Registry) Snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]State, 0, len(r.buckets))
	for host, b := range r.buckets {
		out = append(out, State{
			Host:       host,
			Failures:   b.failures,
			Multiplier: b.multiplier,
			RetryAfter: b.retryAfter,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}

// Restore recreates buckets from a snapshot. Interval limiters start fresh;
// politeness timers are only preserved modulo real time elapsed since the
// snapshot was taken.
func (r *Registry) Restore(states []State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, st := range states {
		host := strings.ToLower(st.Host)
		if host == "" {
			continue
		}
		b := r.ensureLocked(host)
		b.failures = st.Failures
		if st.Multiplier >= 1 {
			b.multiplier = st.Multiplier
		}
		b.retryAfter = st.RetryAfter
	}
}
