package inmemory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dvloznov/finance-client/internal/jobs"
)

var errMissingID = errors.New("job ID is required")

// Store keeps job snapshots in process memory for the console's job
// endpoints. Callers always receive copies.
type Store struct {
	mu      sync.RWMutex
	records map[string]jobs.Job
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]jobs.Job)}
}

// SaveJob records the current state of job, replacing any earlier snapshot.
func (s *Store) SaveJob(ctx context.Context, job *jobs.Job) error {
	if job.ID == "" {
		return fmt.Errorf("SaveJob: %w", errMissingID)
	}

	s.mu.Lock()
	s.records[job.ID] = *job
	s.mu.Unlock()
	return nil
}

// GetJob returns the latest snapshot of a job.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	s.mu.RLock()
	rec, ok := s.records[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, jobs.ErrJobNotFound)
	}
	return &rec, nil
}

// ListJobs returns the jobs matching filter, newest first.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.Job, error) {
	s.mu.RLock()
	matched := make([]jobs.Job, 0, len(s.records))
	for _, rec := range s.records {
		if matchesFilter(rec, filter) {
			matched = append(matched, rec)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, newestFirst)

	start := min(max(filter.Offset, 0), len(matched))
	end := len(matched)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, end)
	}

	out := make([]*jobs.Job, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, &matched[i])
	}
	return out, nil
}

// UpdateJobStatus sets the status of a stored job. An empty errorMsg keeps
// the previous error.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, jobs.ErrJobNotFound)
	}
	rec.Status = status
	if errorMsg != "" {
		rec.Error = errorMsg
	}
	s.records[jobID] = rec
	return nil
}

// Prune forgets finished jobs that completed before cutoff and returns how
// many were removed. Pending and running jobs are kept.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, rec := range s.records {
		if rec.Finished() && rec.CompletedAt != nil && rec.CompletedAt.Before(cutoff) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

func matchesFilter(job jobs.Job, filter jobs.JobFilter) bool {
	if filter.Type != "" && job.Type != filter.Type {
		return false
	}
	return filter.Status == "" || job.Status == filter.Status
}

func newestFirst(a, b jobs.Job) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

var _ jobs.JobStore = (*Store)(nil)
