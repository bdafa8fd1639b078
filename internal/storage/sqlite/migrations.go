package sqlite

import (
	"context"
	"database/sql"
)

// Migrate runs all database migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	migrations := []string{
		// Events table
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			repository TEXT NOT NULL,
			ref TEXT,
			changed_files_json TEXT,
			payload_json TEXT,
			received_at DATETIME NOT NULL
		)`,

		// Jobs table
		`CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			workflow TEXT NOT NULL,
			state INTEGER NOT NULL DEFAULT 10,
			reason TEXT,
			failure_message TEXT,
			failure_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			started_at DATETIME,
			finished_at DATETIME,
			version INTEGER NOT NULL DEFAULT 1,
			FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
		)`,

		// Job Steps table
		`CREATE TABLE IF NOT EXISTS job_steps (
			job_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			name TEXT NOT NULL,
			command TEXT NOT NULL,
			class TEXT NOT NULL,
			continue_on_error BOOLEAN NOT NULL DEFAULT FALSE,
			state INTEGER NOT NULL DEFAULT 10,
			exit_code INTEGER NOT NULL DEFAULT 0,
			log TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			started_at DATETIME,
			finished_at DATETIME,
			PRIMARY KEY (job_id, idx),
			FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
		)`,

		// Indexes for efficient queries
		`CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_event ON jobs(event_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`,
		`CREATE INDEX IF NOT EXISTS idx_job_steps_job ON job_steps(job_id)`,
	}

	for _, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return err
		}
	}

	return nil
}
