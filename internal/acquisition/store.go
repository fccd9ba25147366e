package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a job ID is unknown to the store.
var ErrNotFound = errors.New("acquisition job not found")

// Store is the in-memory job record store. The outer map is guarded by its
// own RWMutex; each job carries its own mutex so mutation is serialized
// per job without cross-job contention.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*entry
}

type entry struct {
	mu  sync.Mutex
	job *Job
}

// NewStore creates an empty job record store.
func NewStore() *Store {
	return &Store{jobs: make(map[uuid.UUID]*entry)}
}

// Create inserts a new job in the Started state and returns its ID.
func (s *Store) Create() uuid.UUID {
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		Status:    StatusStarted,
		Step:      StepNone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = &entry{job: job}
	s.mu.Unlock()

	return job.ID
}

// Get returns a read-only snapshot of the job.
func (s *Store) Get(id uuid.UUID) (Snapshot, error) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Snapshot(), nil
}

// Mutate applies fn to the job as a single atomic update. All writers for a
// given job go through here, so the step runner's output handler and the
// gateway's challenge-response handler can never race on the same record.
func (s *Store) Mutate(id uuid.UUID, fn func(*Job)) error {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.job)
	return nil
}

// ActiveCount returns the number of jobs that have not reached a terminal
// state. Used by the observability gauge.
func (s *Store) ActiveCount() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.jobs {
		e.mu.Lock()
		if !e.job.Status.Terminal() {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Sweep evicts terminal jobs whose last update is older than the retention
// window and returns how many were removed.
func (s *Store) Sweep(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.jobs {
		e.mu.Lock()
		expired := e.job.Status.Terminal() && e.job.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if expired {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// RunSweeper periodically sweeps expired jobs until the context is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(retention); n > 0 {
				logger.Info("swept expired acquisition jobs", "count", n)
			}
		}
	}
}
