// Package store persists job status and result records. Status and result
// are independent documents keyed by job id; there are no cross-job
// transactions, and reads never block on writes for a different job.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/model"
)

// ErrNotFound is returned when no record exists for a job id.
var ErrNotFound = eris.New("store: job not found")

// Store defines the persistence interface for the document pipeline.
type Store interface {
	// CreateJob inserts the initial PENDING status record.
	CreateJob(ctx context.Context, job model.Job) error
	// PutStatus merges a partial update into the existing status record.
	// Backward status transitions are rejected.
	PutStatus(ctx context.Context, jobID string, upd model.StatusUpdate) error
	// GetStatus returns the status record, or ErrNotFound.
	GetStatus(ctx context.Context, jobID string) (*model.Job, error)

	// PutResult writes the result record. Written exactly once per job.
	PutResult(ctx context.Context, jobID string, res *model.Result) error
	// GetResult returns the result record, or ErrNotFound.
	GetResult(ctx context.Context, jobID string) (*model.Result, error)

	// Migrate creates backing tables where the driver needs them.
	Migrate(ctx context.Context) error
	Close() error
}

// New selects a Store implementation by driver name.
func New(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "memory", "":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

// merge applies a StatusUpdate to a Job, enforcing forward-only
// transitions. Shared by all drivers so merge semantics cannot drift.
func merge(job *model.Job, upd model.StatusUpdate) error {
	if upd.Status != "" {
		if !job.Status.CanTransition(upd.Status) {
			return eris.Errorf("store: illegal transition %s -> %s for job %s", job.Status, upd.Status, job.ID)
		}
		job.Status = upd.Status
	}
	if upd.Progress != nil {
		job.Progress = *upd.Progress
	}
	if upd.Error != nil {
		job.Error = *upd.Error
	}
	return nil
}
