// Package echo provides an in-memory job backend that echoes the prompt back.
// It implements domain.JobClient without making external API calls and walks
// every job through the same lifecycle a RunPod endpoint reports, which makes
// it useful for local development and tests.
package echo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/davidbz/runrelay/internal/domain"
	"github.com/davidbz/runrelay/internal/observability"
)

// job tracks the words of one echoed prompt and how many were streamed.
type job struct {
	words  []string
	sent   int
	polled bool
}

// Client implements domain.JobClient in memory.
type Client struct {
	mu   sync.Mutex
	jobs map[string]*job
}

// NewClient creates a new echo client.
// No configuration is required as this backend operates entirely in-memory.
func NewClient() *Client {
	return &Client{
		mu:   sync.Mutex{},
		jobs: make(map[string]*job),
	}
}

// Submit registers a job that will stream the prompt back word by word.
func (c *Client) Submit(ctx context.Context, prompt string, _ domain.SamplingParams) (*domain.JobHandle, error) {
	if prompt == "" {
		return nil, &domain.SubmitError{StatusCode: http.StatusBadRequest, Err: errors.New("prompt cannot be empty")}
	}

	id := "echo-" + uuid.NewString()

	c.mu.Lock()
	c.jobs[id] = &job{words: strings.Fields(prompt), sent: 0, polled: false}
	c.mu.Unlock()

	observability.FromContext(ctx).Debug("echo job created", observability.String("job_id", id))

	return &domain.JobHandle{ID: id, Status: domain.JobQueued}, nil
}

// Poll reports IN_QUEUE on the first call, then one word per call while the
// job runs, then COMPLETED. Finished jobs are forgotten.
func (c *Client) Poll(_ context.Context, jobID string) (*domain.JobSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	j, exists := c.jobs[jobID]
	if !exists {
		return nil, &domain.PollError{
			Kind:       domain.PollErrorStatus,
			StatusCode: http.StatusNotFound,
			Err:        fmt.Errorf("job %s not found", jobID),
		}
	}

	if !j.polled {
		j.polled = true
		return &domain.JobSnapshot{Status: domain.JobQueued, Fragments: []string{}}, nil
	}

	if j.sent < len(j.words) {
		word := j.words[j.sent]
		j.sent++
		if j.sent < len(j.words) {
			word += " "
		}
		return &domain.JobSnapshot{Status: domain.JobRunning, Fragments: []string{word}}, nil
	}

	delete(c.jobs, jobID)
	return &domain.JobSnapshot{Status: domain.JobCompleted, Fragments: []string{}}, nil
}

// Release forgets a job whose relay was abandoned. Unknown ids are ignored.
func (c *Client) Release(_ context.Context, jobID string) error {
	c.mu.Lock()
	delete(c.jobs, jobID)
	c.mu.Unlock()
	return nil
}

// Pending returns the number of jobs that have not completed yet.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}
