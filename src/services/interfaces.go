package services

import (
	"context"
	"errors"
	"time"

	"github.com/username/capitolwatch/backend/src/model"
	"github.com/username/capitolwatch/backend/src/models"
)

// Define common service errors
var (
	ErrRunInProgress    = errors.New("a collection run is already in progress")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// RunStatus is the terminal state of a collection run.
type RunStatus string

const (
	RunRunning         RunStatus = "Running"
	RunCompleted       RunStatus = "Completed"
	RunPartiallyFailed RunStatus = "PartiallyFailed"
)

// SourceStatus is the terminal state of one source within a run.
type SourceStatus string

const (
	SourceOk        SourceStatus = "Ok"
	SourceFailed    SourceStatus = "Failed"
	SourceCancelled SourceStatus = "Cancelled"
)

// Rejection reasons recorded by the orchestrator itself, next to the
// normalizer codes and validator reasons.
const (
	RejectedStoreError = "StoreError"
)

// RejectedRecord identifies one record that did not reach the store.
type RejectedRecord struct {
	Key    string            `json:"key"`
	Ref    string            `json:"ref,omitempty"`
	Kind   models.RecordKind `json:"kind"`
	Reason string            `json:"reason"`
	Detail string            `json:"detail,omitempty"`
}

// SourceSummary is the per-source part of a RunSummary.
type SourceSummary struct {
	Name             string            `json:"name"`
	Kind             models.SourceKind `json:"kind"`
	Status           SourceStatus      `json:"status"`
	Reason           string            `json:"reason,omitempty"`
	Processed        int               `json:"processed"`
	Inserted         int               `json:"inserted"`
	Updated          int               `json:"updated"`
	SkippedDuplicate int               `json:"skipped_duplicate"`
	Rejected         map[string]int    `json:"rejected"`
	RejectedRecords  []RejectedRecord  `json:"rejected_records,omitempty"`
	Errors           []string          `json:"errors,omitempty"`
	DurationMs       int64             `json:"duration_ms"`
}

// RejectedTotal sums all rejection reasons.
func (s SourceSummary) RejectedTotal() int {
	n := 0
	for _, c := range s.Rejected {
		n += c
	}
	return n
}

// RejectionRate is rejected / processed, ignoring in-batch duplicates.
func (s SourceSummary) RejectionRate() float64 {
	dup := s.Rejected["DuplicateWithinBatch"]
	processed := s.Processed - dup
	if processed <= 0 {
		return 0
	}
	return float64(s.RejectedTotal()-dup) / float64(processed)
}

// RunSummary is the externally visible result of one collection run.
type RunSummary struct {
	RunID        string          `json:"run_id"`
	Trigger      string          `json:"trigger"`
	Status       RunStatus       `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   time.Time       `json:"finished_at"`
	DurationMs   int64           `json:"duration_ms"`
	Sources      []SourceSummary `json:"sources"`
	CountsBefore model.Counts    `json:"counts_before"`
	CountsAfter  model.Counts    `json:"counts_after"`
}

// Source returns the summary of the named source.
func (r RunSummary) Source(name string) (SourceSummary, bool) {
	for _, s := range r.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceSummary{}, false
}

// RunConfig selects what one run does. Zero values fall back to the
// service defaults.
type RunConfig struct {
	RunID              string
	Trigger            string
	Sources            []string
	Timeout            time.Duration
	MaxConcurrency     int
	RejectionThreshold float64
	MaxRejectedRecords int
}

// RunResult is what a run started in the background finished with.
type RunResult struct {
	Summary RunSummary
	Err     error
}

// CollectionService runs and reports collection runs.
type CollectionService interface {
	RunCollection(ctx context.Context, cfg RunConfig) (RunSummary, error)
	StartCollection(ctx context.Context, cfg RunConfig) (runID string, done <-chan RunResult, err error)
	LatestSummary(ctx context.Context) (*RunSummary, error)
	ListRuns(ctx context.Context, limit int) ([]model.CollectionRun, error)
	Ping(ctx context.Context) error
}

// RunLock keeps runs from overlapping, within and across processes.
type RunLock interface {
	Acquire(ctx context.Context, owner string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, owner string) error
}

// SummaryPublisher receives every finished RunSummary.
type SummaryPublisher interface {
	Publish(ctx context.Context, v any) error
}
