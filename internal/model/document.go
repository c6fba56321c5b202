package model

// JobStatus represents the current state of a document job. Transitions are
// monotonic: PENDING → PROCESSING → {COMPLETED, FAILED}.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses along the lifecycle so stores can refuse
// backward transitions.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next is a forward move.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s == next {
		return true
	}
	return next.rank() > s.rank() && !s.Terminal()
}

// DocumentType classifies how much tabular/keyword evidence a document shows.
type DocumentType string

const (
	DocTypeStructured     DocumentType = "structured"
	DocTypeSemiStructured DocumentType = "semi_structured"
	DocTypeUnstructured   DocumentType = "unstructured"
)

// Job is the status record for a submitted document.
type Job struct {
	ID       string    `json:"job_id"`
	Status   JobStatus `json:"status"`
	Filename string    `json:"filename,omitempty"`
	Path     string    `json:"source_path,omitempty"`
	Progress string    `json:"progress,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// StatusUpdate is a partial write merged into an existing Job record.
// Nil fields are left untouched.
type StatusUpdate struct {
	Status   JobStatus
	Progress *string
	Error    *string
}
