package sqlite

import (
	"context"
	"database/sql"

	"github.com/example/lintci/internal/domain"
)

type stepRepo struct {
	tx *sql.Tx
}

const stepColumns = `job_id, idx, name, command, class, continue_on_error, state,
	exit_code, log, created_at, updated_at, started_at, finished_at`

func (r *stepRepo) Create(ctx context.Context, step *domain.StepRun) error {
	_, err := r.tx.ExecContext(ctx, `
		INSERT INTO job_steps (`+stepColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, step.JobID, step.Index, step.Name, step.Command, string(step.Class),
		step.ContinueOnError, step.State, step.ExitCode, step.Log,
		step.CreatedAt, step.UpdatedAt,
		nullableTime(step.StartedAt), nullableTime(step.FinishedAt))
	return err
}

func (r *stepRepo) Update(ctx context.Context, step *domain.StepRun) error {
	res, err := r.tx.ExecContext(ctx, `
		UPDATE job_steps
		SET state = ?, exit_code = ?, log = ?, updated_at = ?, started_at = ?, finished_at = ?
		WHERE job_id = ? AND idx = ?
	`, step.State, step.ExitCode, step.Log, step.UpdatedAt,
		nullableTime(step.StartedAt), nullableTime(step.FinishedAt),
		step.JobID, step.Index)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *stepRepo) ListByJob(ctx context.Context, jobID string) ([]*domain.StepRun, error) {
	rows, err := r.tx.QueryContext(ctx, `
		SELECT `+stepColumns+` FROM job_steps
		WHERE job_id = ?
		ORDER BY idx ASC
	`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []*domain.StepRun
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanStep(row rowScanner) (*domain.StepRun, error) {
	step := &domain.StepRun{}
	var class string
	var log sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(&step.JobID, &step.Index, &step.Name, &step.Command, &class,
		&step.ContinueOnError, &step.State, &step.ExitCode, &log,
		&step.CreatedAt, &step.UpdatedAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	step.Class = domain.StepClass(class)
	step.Log = log.String
	step.StartedAt = timePtr(startedAt)
	step.FinishedAt = timePtr(finishedAt)

	return step, nil
}
