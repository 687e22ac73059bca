package job

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Outcome classifies a successfully handled record. Exactly one counter is
// incremented per processed record.
type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeCacheHit
)

// Source supplies records in a stable order, so an offset persisted by one
// invocation addresses the same records in the next.
type Source[T any] interface {
	Total(ctx context.Context) (int64, error)
	Fetch(ctx context.Context, offset, limit int64) ([]T, error)
}

// StateStore is the slice of job persistence the runner needs.
type StateStore interface {
	MarkRunning(ctx context.Context, id uuid.UUID) error
	Checkpoint(ctx context.Context, id uuid.UUID, offset int64, c Counters, errorLog []ErrorEntry) error
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID) error
}

// Runner executes one job over a record source, checkpointing after every
// batch. Records are processed strictly sequentially; a per-record error is
// logged and counted, never fatal. Only a Fetch or state-store failure fails
// the job, and the persisted offset makes a later re-invocation resume where
// this one stopped.
type Runner[T any] struct {
	store    StateStore
	source   Source[T]
	process  func(ctx context.Context, record T) (Outcome, error)
	recordID func(record T) int64
}

// NewRunner creates a Runner. recordID extracts the identifier written into
// error log entries.
func NewRunner[T any](
	store StateStore,
	source Source[T],
	process func(ctx context.Context, record T) (Outcome, error),
	recordID func(record T) int64,
) *Runner[T] {
	return &Runner[T]{store: store, source: source, process: process, recordID: recordID}
}

// Run executes j until its records are exhausted, mutating j to reflect
// final state. Completed jobs are rejected; pending and failed jobs start
// (or resume) from j.LastProcessedOffset.
func (r *Runner[T]) Run(ctx context.Context, j *Job, batchSize int64) error {
	if j.Status == StatusCompleted {
		return eris.Errorf("job: %s already completed", j.ID)
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	if j.TotalRecords == 0 {
		total, err := r.source.Total(ctx)
		if err != nil {
			return eris.Wrapf(err, "job: count records for %s", j.ID)
		}
		j.TotalRecords = total
	}

	if err := r.store.MarkRunning(ctx, j.ID); err != nil {
		return eris.Wrapf(err, "job: mark running %s", j.ID)
	}
	j.Status = StatusRunning

	counters := Counters{
		Processed: j.Processed,
		Succeeded: j.Succeeded,
		Failed:    j.Failed,
		CacheHits: j.CacheHits,
	}
	offset := j.LastProcessedOffset

	for offset < j.TotalRecords {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, j, eris.Wrapf(err, "job: %s interrupted", j.ID))
		}

		limit := batchSize
		if remaining := j.TotalRecords - offset; remaining < limit {
			limit = remaining
		}

		records, err := r.source.Fetch(ctx, offset, limit)
		if err != nil {
			return r.fail(ctx, j, eris.Wrapf(err, "job: fetch batch at offset %d", offset))
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			outcome, perr := r.process(ctx, rec)
			if ctx.Err() != nil {
				// A cancellation mid-batch is an interruption, not a string
				// of record failures. The partial batch is not checkpointed,
				// so a resumed run reprocesses it from its start.
				return r.fail(ctx, j, eris.Wrapf(ctx.Err(), "job: %s interrupted at offset %d", j.ID, offset))
			}
			counters.Processed++
			if perr != nil {
				counters.Failed++
				j.ErrorLog = append(j.ErrorLog, ErrorEntry{
					RecordID: r.recordID(rec),
					Message:  perr.Error(),
					At:       time.Now().UTC(),
				})
				continue
			}
			switch outcome {
			case OutcomeCacheHit:
				counters.CacheHits++
			case OutcomeFailed:
				counters.Failed++
			default:
				counters.Succeeded++
			}
		}

		offset += int64(len(records))
		if err := r.store.Checkpoint(ctx, j.ID, offset, counters, j.ErrorLog); err != nil {
			return r.fail(ctx, j, eris.Wrapf(err, "job: checkpoint at offset %d", offset))
		}
		r.apply(j, offset, counters)

		zap.L().Debug("job: batch checkpointed",
			zap.String("job_id", j.ID.String()),
			zap.Int64("offset", offset),
			zap.Int64("processed", counters.Processed),
		)
	}

	if err := r.store.Complete(ctx, j.ID); err != nil {
		return r.fail(ctx, j, eris.Wrapf(err, "job: complete %s", j.ID))
	}
	j.Status = StatusCompleted

	zap.L().Info("job: completed",
		zap.String("job_id", j.ID.String()),
		zap.String("kind", string(j.Kind)),
		zap.Int64("processed", counters.Processed),
		zap.Int64("succeeded", counters.Succeeded),
		zap.Int64("failed", counters.Failed),
		zap.Int64("cache_hits", counters.CacheHits),
	)
	return nil
}

// fail transitions the job to failed, keeping counters and offset intact so
// a re-invocation resumes. When the offset already covers every record (a
// failed Complete write, say), the resumed run fetches nothing and completes
// immediately. The original error is returned even if the status write also
// fails. The status write survives a cancelled ctx so an interrupted job is
// not left in running.
func (r *Runner[T]) fail(ctx context.Context, j *Job, cause error) error {
	if err := r.store.Fail(context.WithoutCancel(ctx), j.ID); err != nil {
		zap.L().Error("job: could not record failure",
			zap.String("job_id", j.ID.String()),
			zap.Error(err),
		)
	}
	j.Status = StatusFailed
	return cause
}

func (r *Runner[T]) apply(j *Job, offset int64, c Counters) {
	j.LastProcessedOffset = offset
	j.Processed = c.Processed
	j.Succeeded = c.Succeeded
	j.Failed = c.Failed
	j.CacheHits = c.CacheHits
}
