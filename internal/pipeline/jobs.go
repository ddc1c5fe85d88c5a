package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an export job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusConverting JobStatus = "converting"
	StatusArchiving  JobStatus = "archiving"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks the state of a single page export.
type Job struct {
	mu sync.Mutex

	ID      string `json:"job_id"`
	PageURL string `json:"url"`
	Source  string `json:"source"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	pageData []byte
	output   Output
	errors   []string
}

// Output is the rendered document held by a finished job.
type Output struct {
	Platform  string `json:"platform"`
	Title     string `json:"title"`
	Filename  string `json:"filename"`
	ArchiveID string `json:"archive_id,omitempty"`
	Text      string `json:"-"`
}

// Progress tracks processing progress.
type Progress struct {
	Messages int      `json:"messages"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// NewJob creates a queued job for a saved page.
func NewJob(pageURL, source string, data []byte) *Job {
	now := time.Now()
	return &Job{
		ID:          uuid.NewString(),
		PageURL:     pageURL,
		Source:      source,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: ContentHashHex(data),
		CreatedAt:   now,
		UpdatedAt:   now,
		pageData:    data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetCounts records how many messages were kept and skipped.
func (j *Job) SetCounts(messages, skipped int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Messages = messages
	j.Progress.Skipped = skipped
	j.UpdatedAt = time.Now()
}

// SetOutput stores the rendered document.
func (j *Job) SetOutput(out Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.output = out
	j.UpdatedAt = time.Now()
}

// Output returns the rendered document and whether the job completed.
func (j *Job) Output() (Output, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.output, j.Status == StatusCompleted
}

// PageData returns the raw page bytes.
func (j *Job) PageData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.pageData
}

// releasePageData drops the page once it has been converted.
func (j *Job) releasePageData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pageData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string    `json:"job_id"`
	PageURL  string    `json:"url"`
	Source   string    `json:"source"`
	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`
	Output   *Output   `json:"output,omitempty"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	snap := JobSnapshot{
		ID:      j.ID,
		PageURL: j.PageURL,
		Source:  j.Source,
		Status:  j.Status,
		Phase:   j.Phase,
		Progress: Progress{
			Messages: j.Progress.Messages,
			Skipped:  j.Progress.Skipped,
			Errors:   errs,
		},
	}
	if j.Status == StatusCompleted {
		out := j.output
		snap.Output = &out
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
