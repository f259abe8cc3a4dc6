// Package crawl defines core types shared across the acquisition subsystems.
package crawl

import (
	"time"
)

// URLState represents the lifecycle state of a discovered URL.
type URLState string

// URL states persisted in the frontier and checkpoint.
const (
	StatePending   URLState = "pending"
	StateReady     URLState = "ready"
	StateInFlight  URLState = "in_flight"
	StateFetched   URLState = "fetched"
	StateFailed    URLState = "failed"
	StateAbandoned URLState = "abandoned"
)

// Terminal reports whether the state ends a URL's lifecycle.
func (s URLState) Terminal() bool {
	switch s {
	case StateFetched, StateAbandoned:
		return true
	default:
		return false
	}
}

// URLRecord tracks a single discovered URL through the fetch state machine.
// The frontier owns the record until a worker claims it; the worker owns it
// for the duration of the attempt and then returns it via Requeue or Complete.
type URLRecord struct {
	// Key is the normalized dedup key (scheme+host+path+sorted query).
	Key string `json:"key"`
	// Raw is the URL exactly as discovered.
	Raw string `json:"raw"`
	// Host is the lowercased hostname, used for politeness bookkeeping.
	Host string `json:"host"`
	// Depth is the discovery depth; seeds are depth 0.
	Depth int `json:"depth"`
	// Seq is the global discovery sequence number, the FIFO tie-break.
	Seq uint64 `json:"seq"`
	// Discovered is the submission timestamp.
	Discovered time.Time `json:"discovered"`
	// State is the current lifecycle state.
	State URLState `json:"state"`
	// Attempts counts fetch attempts so far. It only increases.
	Attempts int `json:"attempts"`
	// NotBefore delays re-release after a requeue; zero means immediately.
	NotBefore time.Time `json:"not_before,omitempty"`
	// LastError holds the most recent failure description.
	LastError string `json:"last_error,omitempty"`
}

// PageArtifact is the immutable record of one successful fetch. Ownership
// transfers to the pipeline dispatcher once built.
type PageArtifact struct {
	URL         string    `json:"url"`
	Key         string    `json:"key"`
	Depth       int       `json:"depth"`
	StatusCode  int       `json:"status_code"`
	FetchedAt   time.Time `json:"fetched_at"`
	ContentType string    `json:"content_type"`
	Body        []byte    `json:"-"`
	// Links holds outbound links discovered in the body, pre-filter.
	Links []string `json:"links,omitempty"`
}

// Outcome classifies the result of a fetch attempt.
type Outcome string

// Fetch attempt outcomes.
const (
	OutcomeSuccess   Outcome = "success"
	OutcomeTransient Outcome = "transient"
	OutcomePermanent Outcome = "permanent"
)

// FetchRequest captures everything needed to retrieve a URL.
type FetchRequest struct {
	URL     string
	Depth   int
	Attempt int
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}
