// Package frontier implements the deduplicated, priority-ordered set of
// discovered URLs awaiting fetch.
package frontier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"corpuscrawler/internal/crawl"
)

// ErrExhausted signals end of work: nothing pending and nothing in flight.
var ErrExhausted = errors.New("frontier exhausted")

// ErrFull signals frontier growth beyond the configured cap. Callers must
// treat it as fatal to the crawl run.
var ErrFull = errors.New("frontier pending cap exceeded")

// HostGate decides whether a host is fetch-ready. Acquiring through the gate
// reserves the politeness slot for the returned record.
type HostGate interface {
	TryAcquire(host string) bool
}

// Config bounds frontier growth and wakeup cadence.
type Config struct {
	// MaxPending caps the pending set; zero means unbounded.
	MaxPending int
	// PollInterval bounds how long NextReady sleeps before rechecking
	// host readiness.
	PollInterval time.Duration
}

const defaultPollInterval = 25 * time.Millisecond

// Frontier holds every discovered URL in exactly one of three sets: pending,
// in flight, or terminal. Release order is breadth-first, FIFO within depth.
type Frontier struct {
	cfg   Config
	clock crawl.Clock
	gate  HostGate

	mu       sync.Mutex
	seen     map[string]struct{}
	pending  []*crawl.URLRecord
	inFlight map[string]*crawl.URLRecord
	terminal map[string]crawl.URLState
	seq      uint64

	wake chan struct{}
}

// New constructs a Frontier releasing URLs through the supplied host gate.
func New(cfg Config, clock crawl.Clock, gate HostGate) *Frontier {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Frontier{
		cfg:      cfg,
		clock:    clock,
		gate:     gate,
		seen:     make(map[string]struct{}),
		inFlight: make(map[string]*crawl.URLRecord),
		terminal: make(map[string]crawl.URLState),
		wake:     make(chan struct{}, 1),
	}
}

// Submit normalizes and admits a discovered URL. Duplicate keys are a no-op
// and return false. ErrFull is returned once the pending cap is exceeded.
func (f *Frontier) Submit(rawURL string, depth int) (*crawl.URLRecord, bool, error) {
	key, err := crawl.NormalizeURL(rawURL)
	if err != nil {
		return nil, false, fmt.Errorf("submit: %w", err)
	}
	host, err := crawl.HostOf(key)
	if err != nil {
		return nil, false, fmt.Errorf("submit: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.seen[key]; dup {
		return nil, false, nil
	}
	if f.cfg.MaxPending > 0 && len(f.pending) >= f.cfg.MaxPending {
		return nil, false, ErrFull
	}

	f.seq++
	rec := &crawl.URLRecord{
		Key:        key,
		Raw:        rawURL,
		Host:       host,
		Depth:      depth,
		Seq:        f.seq,
		Discovered: f.clock.Now(),
		State:      crawl.StatePending,
	}
	f.seen[key] = struct{}{}
	f.pending = append(f.pending, rec)
	f.signal()
	return rec, true, nil
}

// NextReady blocks until a pending URL whose host is fetch-ready can be
// claimed, then transitions it to InFlight and returns it with the host slot
// already held. It returns ErrExhausted when no pending or in-flight work
// remains, or the context error on cancellation.
func (f *Frontier) NextReady(ctx context.Context) (*crawl.URLRecord, error) {
	for {
		rec, wait, err := f.claim()
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-f.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// claim scans the pending set for the best eligible record. The scan picks
// the lowest (depth, seq) whose NotBefore has passed and whose host slot can
// be acquired, keeping release order deterministic for a fixed seed set.
func (f *Frontier) claim() (*crawl.URLRecord, time.Duration, error) {
	now := f.clock.Now()

	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pending) == 0 {
		if len(f.inFlight) == 0 {
			return nil, 0, ErrExhausted
		}
		return nil, f.cfg.PollInterval, nil
	}

	wait := f.cfg.PollInterval
	for {
		best := -1
		for i, rec := range f.pending {
			if rec.NotBefore.After(now) {
				if d := rec.NotBefore.Sub(now); d < wait {
					wait = d
				}
				continue
			}
			if best < 0 || less(rec, f.pending[best]) {
				best = i
			}
		}
		if best < 0 {
			return nil, wait, nil
		}

		rec := f.pending[best]
		if !f.gate.TryAcquire(rec.Host) {
			// Host not ready; park the record briefly so the scan can
			// move on to other hosts.
			rec.NotBefore = now.Add(f.cfg.PollInterval)
			continue
		}

		f.pending = append(f.pending[:best], f.pending[best+1:]...)
		rec.State = crawl.StateInFlight
		rec.Attempts++
		rec.NotBefore = time.Time{}
		f.inFlight[rec.Key] = rec
		return rec, 0, nil
	}
}

// Requeue returns ownership of a claimed URL to the pending set with an
// earliest-retry time. The record keeps its attempt count and priority.
func (f *Frontier) Requeue(rec *crawl.URLRecord, delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, held := f.inFlight[rec.Key]; !held {
		return
	}
	delete(f.inFlight, rec.Key)
	rec.State = crawl.StatePending
	rec.NotBefore = f.clock.Now().Add(delay)
	f.pending = append(f.pending, rec)
	f.signal()
}

// Complete moves a claimed URL to its terminal state.
func (f *Frontier) Complete(rec *crawl.URLRecord, state crawl.URLState, lastError string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, held := f.inFlight[rec.Key]; !held {
		return
	}
	delete(f.inFlight, rec.Key)
	rec.State = state
	rec.LastError = lastError
	f.terminal[rec.Key] = state
	f.signal()
}

// Wake nudges a blocked NextReady, typically after a host slot frees up.
func (f *Frontier) Wake() {
	f.signal()
}

// PendingLen reports the size of the pending set.
func (f *Frontier) PendingLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// InFlightLen reports how many URLs are currently claimed by workers.
func (f *Frontier) InFlightLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inFlight)
}

// Terminal returns a copy of the terminal outcome per key.
func (f *Frontier) Terminal() map[string]crawl.URLState {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]crawl.URLState, len(f.terminal))
	for k, v := range f.terminal {
		out[k] = v
	}
	return out
}

func (f *Frontier) signal() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// less orders records breadth-first: lower depth wins, then discovery order.
func less(a, b *crawl.URLRecord) bool {
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	return a.Seq < b.Seq
}
