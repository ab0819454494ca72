package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/runrelay/internal/observability"
)

const (
	defaultPollInterval  = 200 * time.Millisecond
	defaultSchemaBackoff = 300 * time.Millisecond
)

// RelayConfig holds the fixed pauses of the poll loop. There is no growth and
// no retry cap: the loop ends on a terminal status or when the caller goes away.
type RelayConfig struct {
	PollInterval  time.Duration `env:"RELAY_POLL_INTERVAL"  envDefault:"200ms"`
	SchemaBackoff time.Duration `env:"RELAY_SCHEMA_BACKOFF" envDefault:"300ms"`
}

// DefaultRelayConfig returns the standard poll intervals.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		PollInterval:  defaultPollInterval,
		SchemaBackoff: defaultSchemaBackoff,
	}
}

// StreamRelay drives a job's poll loop and turns each poll into at most one chunk.
//
// States follow the job: QUEUED and RUNNING loop, COMPLETED and FAILED end the
// loop. Every terminal state writes the [DONE] marker and closes the sink; a
// FAILED job produces no content chunk.
type StreamRelay struct {
	client JobClient
	waiter Waiter
	config RelayConfig
}

// NewStreamRelay creates a relay for one job.
func NewStreamRelay(client JobClient, waiter Waiter, config RelayConfig) *StreamRelay {
	return &StreamRelay{
		client: client,
		waiter: waiter,
		config: config,
	}
}

// Relay polls job until it reaches a terminal status, writing chunks to sink.
// The job's Status and Output are updated as polls are observed. A non-nil
// error means the relay was abandoned and wraps ErrRelayAbandoned.
func (r *StreamRelay) Relay(ctx context.Context, job *Job, sink ChunkSink) error {
	if job == nil {
		return fmt.Errorf("%w: job cannot be nil", ErrInvalidInput)
	}

	logger := observability.FromContext(ctx)

	for !job.Status.Terminal() {
		if err := ctx.Err(); err != nil {
			return r.abandon(ctx, job, sink, err)
		}

		snapshot, err := r.client.Poll(ctx, job.ID)
		if err == nil && snapshot == nil {
			err = &PollError{Kind: PollErrorSchema, StatusCode: 0, Err: errors.New("empty poll result")}
		}
		if err != nil {
			if ctx.Err() != nil {
				return r.abandon(ctx, job, sink, ctx.Err())
			}

			observability.JobPollsTotal.WithLabelValues(job.Model, pollErrorResult(err)).Inc()
			logger.Warn("poll failed, retrying", observability.Error(err))

			if waitErr := r.waiter.Wait(ctx, r.backoffFor(err)); waitErr != nil {
				return r.abandon(ctx, job, sink, waitErr)
			}
			continue
		}

		observability.JobPollsTotal.WithLabelValues(job.Model, string(snapshot.Status)).Inc()

		if stepErr := r.step(ctx, job, snapshot, sink); stepErr != nil {
			return r.abandon(ctx, job, sink, stepErr)
		}
	}

	logger.Info("job reached terminal status",
		observability.String("status", string(job.Status)),
		observability.Int("output_length", len(job.Output)))

	if err := sink.WriteLine(ctx, DoneLine); err != nil {
		_ = sink.Close()
		return fmt.Errorf("%w: failed to write end of stream: %w", ErrRelayAbandoned, err)
	}

	if err := sink.Close(); err != nil {
		logger.Warn("failed to close sink", observability.Error(err))
	}

	return nil
}

// step applies one successful poll to the job.
func (r *StreamRelay) step(ctx context.Context, job *Job, snapshot *JobSnapshot, sink ChunkSink) error {
	switch snapshot.Status {
	case JobQueued:
		job.Status = JobQueued
		return r.waiter.Wait(ctx, r.config.PollInterval)

	case JobRunning:
		job.Status = JobRunning
		// Empty deltas are still emitted so the client sees activity.
		if err := r.emit(ctx, job, snapshot.Text(), false, sink); err != nil {
			return err
		}
		return r.waiter.Wait(ctx, r.config.PollInterval)

	case JobCompleted:
		if err := r.emit(ctx, job, snapshot.Text(), true, sink); err != nil {
			return err
		}
		job.Status = JobCompleted
		return nil

	case JobFailed:
		job.Status = JobFailed
		return nil

	default:
		observability.FromContext(ctx).Warn("unknown job status, retrying",
			observability.String("status", string(snapshot.Status)))
		return r.waiter.Wait(ctx, r.config.SchemaBackoff)
	}
}

func (r *StreamRelay) emit(ctx context.Context, job *Job, delta string, terminal bool, sink ChunkSink) error {
	line, err := EncodeChunk(StreamChunk{
		ID:       job.ID,
		Created:  job.Created,
		Model:    job.Model,
		Delta:    delta,
		Terminal: terminal,
	})
	if err != nil {
		return err
	}

	if err := sink.WriteLine(ctx, line); err != nil {
		return fmt.Errorf("failed to write chunk: %w", err)
	}

	job.Output += delta
	return nil
}

// abandon stops the relay without the [DONE] marker.
func (r *StreamRelay) abandon(ctx context.Context, job *Job, sink ChunkSink, cause error) error {
	// TODO: cancel the backend job with POST {base}/cancel/{id}; it keeps running until it finishes on its own.
	observability.FromContext(ctx).Warn("relay abandoned before terminal status, backend job left running",
		observability.String("status", string(job.Status)),
		observability.Error(cause))

	if err := sink.Close(); err != nil {
		observability.FromContext(ctx).Debug("failed to close sink", observability.Error(err))
	}

	return fmt.Errorf("%w: %w", ErrRelayAbandoned, cause)
}

func (r *StreamRelay) backoffFor(err error) time.Duration {
	var pollErr *PollError
	if errors.As(err, &pollErr) && pollErr.Kind == PollErrorSchema {
		return r.config.SchemaBackoff
	}
	return r.config.PollInterval
}

func pollErrorResult(err error) string {
	var pollErr *PollError
	if errors.As(err, &pollErr) {
		return "error_" + string(pollErr.Kind)
	}
	return "error"
}
