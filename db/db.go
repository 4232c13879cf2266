package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/nijaru/mcp-video/models"
	"github.com/sirupsen/logrus"
)

var ErrNotFound = fmt.Errorf("job not found")

const schema = `CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	status TEXT NOT NULL,
	transcription TEXT NOT NULL DEFAULT '',
	model_name TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_url ON jobs(url, created_at);`

// Store keeps the history of pipeline runs. It is never consulted to skip a
// run.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	logrus.WithField("path", dbPath).Info("Initializing database")

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating directory for database: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("error creating table: %w", err)
	}

	return &Store{db: conn}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, job *models.Job) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, url, status, transcription, model_name, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.URL, string(job.Status), job.Transcription, job.ModelName, job.Error,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting job: %w", err)
	}
	return nil
}

// Finish stores the final status, transcript and error of a job.
func (s *Store) Finish(ctx context.Context, job *models.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, transcription = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(job.Status), job.Transcription, job.Error, job.UpdatedAt, job.ID,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error executing statement: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		tx.Rollback()
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, status, transcription, model_name, error, created_at, updated_at
		FROM jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	return job, nil
}

// ListByURL returns the most recent jobs for url, newest first.
func (s *Store) ListByURL(ctx context.Context, url string, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, url, status, transcription, model_name, error, created_at, updated_at
		FROM jobs WHERE url = ? ORDER BY created_at DESC LIMIT ?`, url, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying database: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id); err != nil {
		return fmt.Errorf("error executing delete statement: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*models.Job, error) {
	job := &models.Job{}
	var status string
	err := row.Scan(
		&job.ID,
		&job.URL,
		&status,
		&job.Transcription,
		&job.ModelName,
		&job.Error,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Status = models.Status(status)
	return job, nil
}
