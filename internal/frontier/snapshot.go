package frontier

import (
	"sort"
	"time"

	"corpuscrawler/internal/crawl"
)

// Snapshot is the serializable frontier state. In-flight records are folded
// back into the pending list so a resumed crawl re-attempts them; their
// attempt counts are preserved.
type Snapshot struct {
	Seen     []string                  `json:"seen"`
	Pending  []crawl.URLRecord         `json:"pending"`
	Terminal map[string]crawl.URLState `json:"terminal"`
	Seq      uint64                    `json:"seq"`
}

// Snapshot captures the current frontier state.
func (f *Frontier) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := Snapshot{
		Seen:     make([]string, 0, len(f.seen)),
		Pending:  make([]crawl.URLRecord, 0, len(f.pending)+len(f.inFlight)),
		Terminal: make(map[string]crawl.URLState, len(f.terminal)),
		Seq:      f.seq,
	}
	for key := range f.seen {
		snap.Seen = append(snap.Seen, key)
	}
	sort.Strings(snap.Seen)

	for _, rec := range f.pending {
		snap.Pending = append(snap.Pending, *rec)
	}
	for _, rec := range f.inFlight {
		cp := *rec
		cp.State = crawl.StatePending
		cp.NotBefore = time.Time{}
		snap.Pending = append(snap.Pending, cp)
	}
	sort.Slice(snap.Pending, func(i, j int) bool {
		return snap.Pending[i].Seq < snap.Pending[j].Seq
	})

	for k, v := range f.terminal {
		snap.Terminal[k] = v
	}
	return snap
}

// Restore rebuilds frontier state from a snapshot. It must be called before
// any Submit or NextReady activity.
func (f *Frontier) Restore(snap Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seen = make(map[string]struct{}, len(snap.Seen))
	for _, key := range snap.Seen {
		f.seen[key] = struct{}{}
	}

	f.pending = f.pending[:0]
	for i := range snap.Pending {
		rec := snap.Pending[i]
		rec.State = crawl.StatePending
		f.pending = append(f.pending, &rec)
	}

	f.terminal = make(map[string]crawl.URLState, len(snap.Terminal))
	for k, v := range snap.Terminal {
		f.terminal[k] = v
	}
	f.seq = snap.Seq
	f.signal()
}
