package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/lintci/internal/domain"
	"github.com/example/lintci/internal/storage"
)

type jobRepo struct {
	tx *sql.Tx
}

const jobColumns = `id, event_id, workflow, state, reason, failure_message, failure_at,
	created_at, updated_at, started_at, finished_at, version`

func (r *jobRepo) Create(ctx context.Context, job *domain.Job) error {
	var failureMessage sql.NullString
	var failureAt sql.NullTime
	if job.Failure != nil {
		failureMessage = sql.NullString{String: job.Failure.Message, Valid: true}
		failureAt = sql.NullTime{Time: job.Failure.OccurredAt, Valid: true}
	}

	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.EventID, job.Workflow, job.State, job.Reason,
		failureMessage, failureAt,
		job.CreatedAt, job.UpdatedAt, nullableTime(job.StartedAt), nullableTime(job.FinishedAt),
		job.Version)
	return err
}

func (r *jobRepo) Get(ctx context.Context, id string) (*domain.Job, error) {
	row := r.tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// Update persists the job, guarded by its version. The stored version
// must match the in-memory one; on success the version is incremented.
func (r *jobRepo) Update(ctx context.Context, job *domain.Job) error {
	var failureMessage sql.NullString
	var failureAt sql.NullTime
	if job.Failure != nil {
		failureMessage = sql.NullString{String: job.Failure.Message, Valid: true}
		failureAt = sql.NullTime{Time: job.Failure.OccurredAt, Valid: true}
	}

	res, err := r.tx.ExecContext(ctx, `
		UPDATE jobs
		SET state = ?, reason = ?, failure_message = ?, failure_at = ?,
			updated_at = ?, started_at = ?, finished_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`, job.State, job.Reason, failureMessage, failureAt,
		job.UpdatedAt, nullableTime(job.StartedAt), nullableTime(job.FinishedAt),
		job.ID, job.Version)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Either the job is gone or someone else advanced it.
		if _, err := r.Get(ctx, job.ID); err != nil {
			return err
		}
		return domain.ErrConcurrentModify
	}

	job.Version++
	return nil
}

func (r *jobRepo) List(ctx context.Context, opts storage.ListOptions) ([]*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var conditions []string
	var args []any

	if len(opts.IDs) > 0 {
		placeholders := make([]string, len(opts.IDs))
		for i, id := range opts.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		conditions = append(conditions, "id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(opts.JobStates) > 0 {
		placeholders := make([]string, len(opts.JobStates))
		for i, state := range opts.JobStates {
			placeholders[i] = "?"
			args = append(args, state)
		}
		conditions = append(conditions, "state IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) NextPending(ctx context.Context) (*domain.Job, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE state = ?
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, domain.JobStatePending)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	job := &domain.Job{}
	var reason sql.NullString
	var failureMessage sql.NullString
	var failureAt, startedAt, finishedAt sql.NullTime

	err := row.Scan(&job.ID, &job.EventID, &job.Workflow, &job.State, &reason,
		&failureMessage, &failureAt,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &finishedAt, &job.Version)
	if err != nil {
		return nil, err
	}

	job.Reason = reason.String
	if failureMessage.Valid {
		job.Failure = &domain.Failure{
			Message:    failureMessage.String,
			OccurredAt: failureAt.Time,
		}
	}
	job.StartedAt = timePtr(startedAt)
	job.FinishedAt = timePtr(finishedAt)

	return job, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	value := t.Time
	return &value
}
