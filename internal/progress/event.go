// Package progress defines the event structures emitted at every URL state
// transition during a crawl run.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the transition represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageCrawlStart Stage = "CRAWL_START"
	StageCrawlDone  Stage = "CRAWL_DONE"
	StageCrawlError Stage = "CRAWL_ERROR"
	StageAdmitted   Stage = "ADMITTED"
	StageRejected   Stage = "REJECTED"
	StageFetchStart Stage = "FETCH_START"
	StageFetched    Stage = "FETCHED"
	StageRetried    Stage = "RETRIED"
	StageFailed     Stage = "FAILED"
	StageAbandoned  Stage = "ABANDONED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single crawl state transition.
type Event struct {
	// RunID identifies the crawl run in 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which transition occurred.
	Stage Stage
	// Host scopes fetch events to a host label.
	Host string
	// URL is the subject page, without credentials.
	URL string
	// Depth is the discovery depth of the subject URL.
	Depth int
	// Attempt is the fetch attempt number, starting at 1.
	Attempt int
	// Bytes carries the response size for fetch completions.
	Bytes int64
	// StatusClass groups HTTP response codes (2xx, 4xx, etc).
	StatusClass StatusClass
	// Dur captures fetch latency or total crawl runtime.
	Dur time.Duration
	// Reason carries rejection reasons and failure causes.
	Reason string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageCrawlStart, StageCrawlDone, StageCrawlError, StageAdmitted:
	case StageRejected:
		if e.Reason == "" {
			return errors.New("rejection requires a reason")
		}
	case StageFetchStart, StageRetried, StageAbandoned:
		if e.Host == "" {
			return fmt.Errorf("%s requires host", e.Stage)
		}
	case StageFetched, StageFailed:
		if e.Host == "" {
			return fmt.Errorf("%s requires host", e.Stage)
		}
		if e.StatusClass == "" {
			return fmt.Errorf("%s requires status class", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID form.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
