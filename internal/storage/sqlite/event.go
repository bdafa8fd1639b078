package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/example/lintci/internal/domain"
	"github.com/example/lintci/internal/storage"
)

type eventRepo struct {
	tx *sql.Tx
}

func (r *eventRepo) Create(ctx context.Context, event *domain.Event) error {
	changedJSON, err := json.Marshal(event.ChangedFiles)
	if err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(event.Payload)
	if err != nil {
		return err
	}

	_, err = r.tx.ExecContext(ctx, `
		INSERT INTO events (id, kind, repository, ref, changed_files_json, payload_json, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, event.ID, string(event.Kind), event.Repository, event.Ref,
		string(changedJSON), string(payloadJSON), event.ReceivedAt)
	return err
}

func (r *eventRepo) Get(ctx context.Context, id string) (*domain.Event, error) {
	row := r.tx.QueryRowContext(ctx, `
		SELECT id, kind, repository, ref, changed_files_json, payload_json, received_at
		FROM events WHERE id = ?
	`, id)

	event, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return event, nil
}

func (r *eventRepo) List(ctx context.Context, opts storage.ListOptions) ([]*domain.Event, error) {
	query := `
		SELECT id, kind, repository, ref, changed_files_json, payload_json, received_at
		FROM events`
	var conditions []string
	var args []any

	if len(opts.EventKinds) > 0 {
		placeholders := make([]string, len(opts.EventKinds))
		for i, kind := range opts.EventKinds {
			placeholders[i] = "?"
			args = append(args, string(kind))
		}
		conditions = append(conditions, "kind IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY received_at DESC"
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

	var events []*domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.Event, error) {
	event := &domain.Event{}
	var kind string
	var ref sql.NullString
	var changedJSON, payloadJSON sql.NullString

	err := row.Scan(&event.ID, &kind, &event.Repository, &ref,
		&changedJSON, &payloadJSON, &event.ReceivedAt)
	if err != nil {
		return nil, err
	}

	event.Kind = domain.EventKind(kind)
	event.Ref = ref.String

	if changedJSON.Valid && changedJSON.String != "" && changedJSON.String != "null" {
		if err := json.Unmarshal([]byte(changedJSON.String), &event.ChangedFiles); err != nil {
			return nil, err
		}
	}
	if payloadJSON.Valid && payloadJSON.String != "" && payloadJSON.String != "null" {
		if err := json.Unmarshal([]byte(payloadJSON.String), &event.Payload); err != nil {
			return nil, err
		}
	}
	if event.Payload == nil {
		event.Payload = make(map[string]any)
	}

	return event, nil
}
