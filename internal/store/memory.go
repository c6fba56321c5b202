package store

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/docintel/internal/model"
)

// MemoryStore implements Store with in-process maps. Each job id has a
// single writer (its pipeline run); an RWMutex lets status and result
// queries proceed concurrently with writes for other jobs.
type MemoryStore struct {
	mu      sync.RWMutex
	jobs    map[string]model.Job
	results map[string]*model.Result
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]model.Job),
		results: make(map[string]*model.Result),
	}
}

func (m *MemoryStore) CreateJob(_ context.Context, job model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return eris.Errorf("store: job %s already exists", job.ID)
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryStore) PutStatus(_ context.Context, jobID string, upd model.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	if err := merge(&job, upd); err != nil {
		return err
	}
	m.jobs[jobID] = job
	return nil
}

func (m *MemoryStore) GetStatus(_ context.Context, jobID string) (*model.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return &job, nil
}

func (m *MemoryStore) PutResult(_ context.Context, jobID string, res *model.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.results[jobID]; ok {
		return eris.Errorf("store: result for job %s already written", jobID)
	}
	m.results[jobID] = res
	return nil
}

func (m *MemoryStore) GetResult(_ context.Context, jobID string) (*model.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.results[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return res, nil
}

func (m *MemoryStore) Migrate(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
