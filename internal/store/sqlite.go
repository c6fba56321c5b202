package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/docintel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'pending',
	filename   TEXT,
	path       TEXT,
	progress   TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS results (
	job_id     TEXT PRIMARY KEY REFERENCES jobs(id),
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job model.Job) error {
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, filename, path, progress, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Status), job.Filename, job.Path, job.Progress, job.Error, now, now,
	)
	return eris.Wrapf(err, "sqlite: insert job %s", job.ID)
}

func (s *SQLiteStore) PutStatus(ctx context.Context, jobID string, upd model.StatusUpdate) error {
	// Read-modify-write: the merge runs in Go so all drivers share one
	// transition policy. Safe because each job has exactly one writer.
	job, err := s.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if err := merge(job, upd); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(job.Status), job.Progress, job.Error, time.Now().UTC(), jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update job %s", jobID)
	}
	return checkRowsAffected(res, jobID)
}

func (s *SQLiteStore) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, filename, path, progress, error FROM jobs WHERE id = ?`, jobID)

	var job model.Job
	var status string
	var filename, path, progress, errMsg sql.NullString
	if err := row.Scan(&job.ID, &status, &filename, &path, &progress, &errMsg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get job %s", jobID)
	}
	job.Status = model.JobStatus(status)
	job.Filename = filename.String
	job.Path = path.String
	job.Progress = progress.String
	job.Error = errMsg.String
	return &job, nil
}

func (s *SQLiteStore) PutResult(ctx context.Context, jobID string, result *model.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (job_id, result, created_at) VALUES (?, ?, ?)`,
		jobID, string(payload), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert result %s", jobID)
}

func (s *SQLiteStore) GetResult(ctx context.Context, jobID string) (*model.Result, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT result FROM results WHERE job_id = ?`, jobID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get result %s", jobID)
	}
	var res model.Result
	if err := json.Unmarshal([]byte(payload), &res); err != nil {
		return nil, eris.Wrapf(err, "sqlite: unmarshal result %s", jobID)
	}
	return &res, nil
}

func checkRowsAffected(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
