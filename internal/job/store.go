package job

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/civicworks/boundary-audit/internal/db"
)

// Store persists job rows in Postgres. One runner owns a job row at a time;
// the store itself does no locking.
type Store struct {
	pool db.Pool
}

// NewStore creates a Store over the given pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

const jobColumns = `id, kind, status, total_records, processed, succeeded, failed, cache_hits,
		last_processed_offset, error_log, created_at, started_at, completed_at`

// Create inserts a pending job.
func (s *Store) Create(ctx context.Context, kind Kind, totalRecords int64) (*Job, error) {
	if !ValidKind(kind) {
		return nil, eris.Errorf("job: unknown kind %q", kind)
	}

	j := &Job{
		ID:           uuid.New(),
		Kind:         kind,
		Status:       StatusPending,
		TotalRecords: totalRecords,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, kind, status, total_records, error_log)
		VALUES ($1, $2, $3, $4, '[]'::jsonb)
		RETURNING created_at`,
		j.ID, string(j.Kind), string(j.Status), j.TotalRecords,
	).Scan(&j.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "job: create")
	}
	return j, nil
}

// Get fetches one job by id. Returns nil, nil when absent.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row.Scan)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "job: get %s", id)
	}
	return j, nil
}

// List returns the most recently created jobs.
func (s *Store) List(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "job: list")
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "job: scan list row")
		}
		out = append(out, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "job: iterate list rows")
	}
	return out, nil
}

// MarkRunning moves a pending or failed job to running, setting started_at
// only on the first transition. Completed jobs are never re-entered.
func (s *Store) MarkRunning(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET status = 'running', started_at = COALESCE(started_at, now()), completed_at = NULL
		WHERE id = $1 AND status <> 'completed'`,
		id,
	)
	if err != nil {
		return eris.Wrapf(err, "job: mark running %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job: %s is not runnable", id)
	}
	return nil
}

// Checkpoint persists the batch offset, counters, and error log in one
// statement so a crash never leaves them out of step.
func (s *Store) Checkpoint(ctx context.Context, id uuid.UUID, offset int64, c Counters, errorLog []ErrorEntry) error {
	if errorLog == nil {
		errorLog = []ErrorEntry{}
	}
	logJSON, err := json.Marshal(errorLog)
	if err != nil {
		return eris.Wrap(err, "job: marshal error log")
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET last_processed_offset = $2, processed = $3, succeeded = $4, failed = $5, cache_hits = $6, error_log = $7
		WHERE id = $1`,
		id, offset, c.Processed, c.Succeeded, c.Failed, c.CacheHits, logJSON,
	)
	if err != nil {
		return eris.Wrapf(err, "job: checkpoint %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("job: checkpoint: no job %s", id)
	}
	return nil
}

// Complete marks a job completed.
func (s *Store) Complete(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'completed', completed_at = now() WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "job: complete %s", id)
	}
	return nil
}

// Fail marks a job failed, leaving counters and offset intact for resume.
func (s *Store) Fail(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', completed_at = now() WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "job: fail %s", id)
	}
	return nil
}

func scanJob(scan func(...any) error) (*Job, error) {
	var j Job
	var kind, status string
	var logJSON []byte

	err := scan(&j.ID, &kind, &status, &j.TotalRecords, &j.Processed, &j.Succeeded, &j.Failed,
		&j.CacheHits, &j.LastProcessedOffset, &logJSON, &j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}

	j.Kind = Kind(kind)
	j.Status = Status(status)
	if len(logJSON) > 0 {
		if err := json.Unmarshal(logJSON, &j.ErrorLog); err != nil {
			return nil, eris.Wrap(err, "job: unmarshal error log")
		}
	}
	return &j, nil
}
