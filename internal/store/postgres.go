package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/db"
	"github.com/sells-group/docintel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_job":    `INSERT INTO jobs (id, status, filename, source_path, progress, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"update_job":    `UPDATE jobs SET status = $1, progress = $2, error = $3, updated_at = $4 WHERE id = $5`,
	"get_job":       `SELECT id, status, filename, source_path, progress, error FROM jobs WHERE id = $1`,
	"insert_result": `INSERT INTO results (job_id, result, created_at) VALUES ($1, $2, $3)`,
	"get_result":    `SELECT result FROM results WHERE job_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, q := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, q); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// newPostgresWithPool wires an existing pool; used by tests with pgxmock.
func newPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'pending',
	filename    TEXT NOT NULL,
	source_path TEXT NOT NULL,
	progress    TEXT NOT NULL DEFAULT '',
	error       TEXT,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS results (
	job_id     TEXT PRIMARY KEY REFERENCES jobs(id),
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
`

// Migrate creates the jobs and results tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

// CreateJob inserts the initial status record.
func (s *PostgresStore) CreateJob(ctx context.Context, job model.Job) error {
	now := time.Now().UTC()
	_, err := s.pool.Exec(ctx, "insert_job",
		job.ID, string(job.Status), job.Filename, job.Path, job.Progress, now, now)
	if err != nil {
		return eris.Wrapf(err, "postgres: create job %s", job.ID)
	}
	return nil
}

// PutStatus merges a partial update into the stored status record.
func (s *PostgresStore) PutStatus(ctx context.Context, jobID string, upd model.StatusUpdate) error {
	job, err := s.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if err := merge(job, upd); err != nil {
		return err
	}

	var errVal sql.NullString
	if job.Error != "" {
		errVal = sql.NullString{String: job.Error, Valid: true}
	}
	tag, err := s.pool.Exec(ctx, "update_job",
		string(job.Status), job.Progress, errVal, time.Now().UTC(), jobID)
	if err != nil {
		return eris.Wrapf(err, "postgres: update job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStatus returns the status record for a job.
func (s *PostgresStore) GetStatus(ctx context.Context, jobID string) (*model.Job, error) {
	var (
		job    model.Job
		status string
		errVal sql.NullString
	)
	row := s.pool.QueryRow(ctx, "get_job", jobID)
	err := row.Scan(&job.ID, &status, &job.Filename, &job.Path, &job.Progress, &errVal)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get job %s", jobID)
	}
	job.Status = model.JobStatus(status)
	if errVal.Valid {
		job.Error = errVal.String
	}
	return &job, nil
}

// PutResult stores the result document as JSONB.
func (s *PostgresStore) PutResult(ctx context.Context, jobID string, res *model.Result) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return eris.Wrapf(err, "postgres: marshal result %s", jobID)
	}
	if _, err := s.pool.Exec(ctx, "insert_result", jobID, payload, time.Now().UTC()); err != nil {
		return eris.Wrapf(err, "postgres: insert result %s", jobID)
	}
	return nil
}

// GetResult returns the stored result for a job.
func (s *PostgresStore) GetResult(ctx context.Context, jobID string) (*model.Result, error) {
	var payload []byte
	row := s.pool.QueryRow(ctx, "get_result", jobID)
	err := row.Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get result %s", jobID)
	}
	var res model.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, eris.Wrapf(err, "postgres: unmarshal result %s", jobID)
	}
	return &res, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
