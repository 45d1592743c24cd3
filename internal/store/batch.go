package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/roach88/storyline/internal/engine"
)

// Batch statuses.
const (
	StatusPassed = "PASSED"
	StatusFailed = "FAILED"
)

// Batch is a recorded batch run.
type Batch struct {
	ID       string
	Started  time.Time
	Duration time.Duration

	// Status is PASSED or FAILED.
	Status string

	// Filter is the meta filter the batch ran with.
	Filter string

	// Total counts top-level stories; Failed counts those that failed or
	// timed out.
	Total  int
	Failed int

	// Stories is filled by ReadBatch only.
	Stories []StoryOutcome
}

// StoryOutcome is the recorded outcome of one story of a batch.
type StoryOutcome struct {
	BatchID  string
	Path     string
	Status   string
	Duration time.Duration
	Failure  string
}

// NewBatchID returns a UUIDv7 batch id.
func NewBatchID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FromResult converts a batch result. runErr is the error RunBatch
// returned, if any; it fails the batch like collected failures do.
func FromResult(id, filter string, res *engine.BatchResult, runErr error) Batch {
	b := Batch{
		ID:       id,
		Started:  res.Started,
		Duration: res.Duration,
		Status:   StatusPassed,
		Filter:   filter,
		Total:    len(res.Stories),
	}
	for _, s := range res.Stories {
		o := StoryOutcome{
			BatchID:  id,
			Path:     s.Path,
			Status:   string(s.Status),
			Duration: s.Duration,
		}
		if s.Failure != nil {
			o.Failure = s.Failure.Error()
		}
		if s.Status == engine.StatusFailed || s.Status == engine.StatusTimedOut {
			b.Failed++
		}
		b.Stories = append(b.Stories, o)
	}
	if runErr != nil || res.Err() != nil {
		b.Status = StatusFailed
	}
	return b
}
