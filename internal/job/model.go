// Package job tracks and executes resumable batch jobs shared by the
// geocoding and analysis pipelines.
package job

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which pipeline a job drives.
type Kind string

const (
	KindGeocoding Kind = "geocoding"
	KindAnalysis  Kind = "analysis"
)

// Status is the job state machine: pending -> running -> completed or failed.
// A failed job is resumable; re-invoking it continues from
// LastProcessedOffset.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrorEntry records one per-record failure inside a batch. Failures are
// logged and counted, never fatal to the batch.
type ErrorEntry struct {
	RecordID int64     `json:"record_id"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// Job is one batch job row.
type Job struct {
	ID                  uuid.UUID
	Kind                Kind
	Status              Status
	TotalRecords        int64
	Processed           int64
	Succeeded           int64
	Failed              int64
	CacheHits           int64
	LastProcessedOffset int64
	ErrorLog            []ErrorEntry
	CreatedAt           time.Time
	StartedAt           *time.Time
	CompletedAt         *time.Time
}

// Counters is the per-job progress snapshot persisted at each checkpoint.
type Counters struct {
	Processed int64
	Succeeded int64
	Failed    int64
	CacheHits int64
}

// ValidKind reports whether k names a known job kind.
func ValidKind(k Kind) bool {
	return k == KindGeocoding || k == KindAnalysis
}
