package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgLogPrefix = "application:pgstore"

const applicationsSchema = `
CREATE TABLE IF NOT EXISTS applications (
    id                TEXT PRIMARY KEY,
    job_id            TEXT NOT NULL,
    job_title         TEXT NOT NULL DEFAULT '',
    company           TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL,
    method            TEXT NOT NULL DEFAULT '',
    resume_path       TEXT NOT NULL DEFAULT '',
    cover_letter_path TEXT NOT NULL DEFAULT '',
    action_url        TEXT NOT NULL DEFAULT '',
    notes             TEXT NOT NULL DEFAULT '',
    applied_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS applications_job_id_idx ON applications (job_id);
`

// postgresStore keeps applications in a single Postgres table. The schema is
// applied on connect so a fresh database works without a separate step.
type postgresStore struct {
	pool *pgxpool.Pool
}

func newPostgresStore(databaseURL string, timeout time.Duration) (*postgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to parse database URL: %w", pgLogPrefix, err)
	}
	config.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create pool: %w", pgLogPrefix, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ping database: %w", pgLogPrefix, err)
	}
	if _, err := pool.Exec(ctx, applicationsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s - failed to ensure schema: %w", pgLogPrefix, err)
	}

	slog.Info(fmt.Sprintf("%s - connected, applications schema ensured", pgLogPrefix))
	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Put(ctx context.Context, app *Application) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO applications
			(id, job_id, job_title, company, status, method,
			 resume_path, cover_letter_path, action_url, notes, applied_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			method = EXCLUDED.method,
			resume_path = EXCLUDED.resume_path,
			cover_letter_path = EXCLUDED.cover_letter_path,
			action_url = EXCLUDED.action_url,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at`,
		app.ID, app.JobID, app.JobTitle, app.Company, app.Status, app.Method,
		app.ResumePath, app.CoverLetterPath, app.ActionURL, app.Notes, app.AppliedAt, app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s - upsert application %s: %w", pgLogPrefix, app.ID, err)
	}
	return nil
}

const selectColumns = `id, job_id, job_title, company, status, method,
	resume_path, cover_letter_path, action_url, notes, applied_at, updated_at`

func scanApplication(row pgx.Row) (*Application, error) {
	var app Application
	err := row.Scan(&app.ID, &app.JobID, &app.JobTitle, &app.Company, &app.Status, &app.Method,
		&app.ResumePath, &app.CoverLetterPath, &app.ActionURL, &app.Notes, &app.AppliedAt, &app.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *postgresStore) Get(ctx context.Context, id string) (*Application, error) {
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM applications WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("%s - get application %s: %w", pgLogPrefix, id, err)
	}
	return app, nil
}

func (s *postgresStore) GetByJob(ctx context.Context, jobID string) (*Application, error) {
	app, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM applications WHERE job_id = $1 ORDER BY applied_at DESC LIMIT 1`, jobID))
	if err != nil {
		return nil, fmt.Errorf("%s - get application for job %s: %w", pgLogPrefix, jobID, err)
	}
	return app, nil
}

func (s *postgresStore) List(ctx context.Context) ([]*Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM applications ORDER BY applied_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s - list applications: %w", pgLogPrefix, err)
	}
	defer rows.Close()

	var apps []*Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("%s - scan application: %w", pgLogPrefix, err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - iterate applications: %w", pgLogPrefix, err)
	}
	return apps, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}
