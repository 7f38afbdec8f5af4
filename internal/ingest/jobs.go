// Package ingest orchestrates asynchronous document ingestion: accepted
// uploads are queued, a background worker extracts, chunks, embeds and
// indexes them, and a job tracker lets clients poll progress.
package ingest

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrJobNotFound indicates an unknown job id.
var ErrJobNotFound = errors.New("job not found")

// State is the lifecycle phase of an ingestion job.
type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// FileError records one file that could not be ingested.
type FileError struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// Job is the tracked unit of asynchronous ingestion work. Values handed
// out by the tracker are snapshots: safe to read without coordination.
type Job struct {
	ID         string      `json:"job_id"`
	State      State       `json:"state"`
	Files      []string    `json:"files"`
	Processed  int         `json:"processed"` // files ingested successfully so far
	Total      int         `json:"total"`
	Error      string      `json:"error,omitempty"`
	FileErrors []FileError `json:"file_errors,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Tracker stores job snapshots. Each job has a single writer (the worker
// processing it); concurrent pollers read whole immutable snapshots, so
// they never block the writer or observe a torn state.
type Tracker struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*Job)}
}

// put stores a fresh snapshot, replacing any previous one. The stored
// value must never be mutated afterwards.
func (t *Tracker) put(job *Job) {
	t.mu.Lock()
	t.jobs[job.ID] = job
	t.mu.Unlock()
}

// Get returns the latest snapshot for a job id.
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.RLock()
	job, ok := t.jobs[id]
	t.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return *job, nil
}

// List returns snapshots of all tracked jobs, newest first.
func (t *Tracker) List() []Job {
	t.mu.RLock()
	defer t.mu.RUnlock()

	jobs := make([]Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Sweep drops terminal jobs whose last update is older than retention.
// Returns the number of jobs removed.
func (t *Tracker) Sweep(retention time.Duration, now time.Time) int {
	if retention <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, job := range t.jobs {
		if job.State.Terminal() && now.Sub(job.UpdatedAt) > retention {
			delete(t.jobs, id)
			removed++
		}
	}
	return removed
}
