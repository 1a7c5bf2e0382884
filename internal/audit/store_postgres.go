package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "vaxcov/pkg/domain"
)

// PostgresStore materializes audit events for per-job queries. Kafka stays
// the distribution channel; this table backs GET /datasets/jobs/{id}/events.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_events (
			id           UUID        PRIMARY KEY,
			category     TEXT        NOT NULL,
			occurred_at  TIMESTAMPTZ NOT NULL,
			action       TEXT        NOT NULL,
			job_id       TEXT        NOT NULL DEFAULT '',
			country_code TEXT        NOT NULL DEFAULT '',
			year         INT         NOT NULL DEFAULT 0,
			column_name  TEXT        NOT NULL DEFAULT '',
			rule         TEXT        NOT NULL DEFAULT '',
			old_value    TEXT        NOT NULL DEFAULT '',
			new_value    TEXT        NOT NULL DEFAULT '',
			reason       TEXT        NOT NULL DEFAULT '',
			request_id   TEXT        NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS audit_events_job_id_idx ON audit_events (job_id);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, occurred_at, action, job_id, country_code, year,
			column_name, rule, old_value, new_value, reason, request_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		string(event.Category),
		event.Timestamp,
		string(event.Action),
		event.JobID,
		string(event.Country),
		event.Year,
		event.Column,
		event.Rule,
		event.OldValue,
		event.NewValue,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByJob(ctx context.Context, jobID string) ([]Event, error) {
	query := `
		SELECT category, occurred_at, action, job_id, country_code, year,
		       column_name, rule, old_value, new_value, reason, request_id
		FROM audit_events
		WHERE job_id = $1
		ORDER BY occurred_at
	`
	rows, err := s.db.QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("list audit events for job %s: %w", jobID, err)
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		var (
			e        Event
			category string
			action   string
			country  string
		)
		if err := rows.Scan(
			&category, &e.Timestamp, &action, &e.JobID, &country, &e.Year,
			&e.Column, &e.Rule, &e.OldValue, &e.NewValue, &e.Reason, &e.RequestID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = EventCategory(category)
		e.Action = AuditEvent(action)
		e.Country = id.CountryCode(country)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
