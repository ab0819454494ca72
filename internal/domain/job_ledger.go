package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrJobNotFound indicates the ledger has no entry for a job id.
var ErrJobNotFound = errors.New("job not found")

// InMemoryJobLedger stores job records in memory.
type InMemoryJobLedger struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewInMemoryJobLedger creates a new in-memory job ledger.
func NewInMemoryJobLedger() *InMemoryJobLedger {
	return &InMemoryJobLedger{
		mu:   sync.RWMutex{},
		jobs: make(map[string]Job),
	}
}

// Record stores the latest state of a job.
func (l *InMemoryJobLedger) Record(_ context.Context, job Job) error {
	if job.ID == "" {
		return errors.New("job id cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.jobs[job.ID] = job
	return nil
}

// Get retrieves the latest recorded state of a job.
func (l *InMemoryJobLedger) Get(_ context.Context, jobID string) (Job, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	job, exists := l.jobs[jobID]
	if !exists {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	return job, nil
}
