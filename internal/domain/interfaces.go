package domain

import (
	"context"
	"time"
)

// JobClient talks to an asynchronous job backend.
type JobClient interface {
	// Submit starts a job for the prompt and returns its handle.
	Submit(ctx context.Context, prompt string, params SamplingParams) (*JobHandle, error)

	// Poll returns the current status of a job and the output fragments
	// produced since the previous poll.
	Poll(ctx context.Context, jobID string) (*JobSnapshot, error)
}

// JobReleaser is implemented by JobClients that hold local state per job.
// Release drops that state once a relay is abandoned before a terminal status.
type JobReleaser interface {
	Release(ctx context.Context, jobID string) error
}

// PromptFormatter renders chat messages into a model family's prompt.
type PromptFormatter interface {
	// Format returns the flat prompt for the given family.
	Format(messages []Message, family string) (string, error)
}

// ChunkSink is the client-facing output of a relay.
type ChunkSink interface {
	// WriteLine writes one line and flushes it to the client.
	WriteLine(ctx context.Context, line string) error

	// Close ends the stream. Calling it more than once is allowed.
	Close() error
}

// Waiter pauses between polls. Implementations return ctx.Err() when the
// context ends before the duration elapses.
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// ModelRegistry resolves public model ids.
type ModelRegistry interface {
	// Register adds a model route.
	Register(ctx context.Context, route ModelRoute) error

	// Get retrieves the route for a model id.
	Get(ctx context.Context, model string) (ModelRoute, error)

	// List returns all registered model ids, sorted.
	List(ctx context.Context) ([]string, error)
}

// JobRecorder keeps a ledger of jobs.
type JobRecorder interface {
	// Record stores the current state of the job.
	Record(ctx context.Context, job Job) error
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}
