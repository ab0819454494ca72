package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davidbz/runrelay/internal/observability"
)

const statusAbandoned = "ABANDONED"

// Orchestrator owns one client request end to end: prompt formatting, job
// submission and the relay of the job's output.
type Orchestrator struct {
	registry  ModelRegistry
	formatter PromptFormatter
	waiter    Waiter
	config    RelayConfig
	recorder  JobRecorder
	events    EventPublisher
	now       func() time.Time
}

// NewOrchestrator creates a new orchestrator (DI constructor).
func NewOrchestrator(
	registry ModelRegistry,
	formatter PromptFormatter,
	waiter Waiter,
	config *RelayConfig,
	recorder JobRecorder,
	events EventPublisher,
) *Orchestrator {
	relayConfig := DefaultRelayConfig()
	if config != nil {
		relayConfig = *config
	}

	return &Orchestrator{
		registry:  registry,
		formatter: formatter,
		waiter:    waiter,
		config:    relayConfig,
		recorder:  recorder,
		events:    events,
		now:       time.Now,
	}
}

// Stream resolves the request's model, formats its prompt and relays the
// resulting job to sink.
func (o *Orchestrator) Stream(ctx context.Context, req *CompletionRequest, sink ChunkSink) error {
	if req == nil {
		return fmt.Errorf("%w: request cannot be nil", ErrInvalidInput)
	}

	if req.Model == "" {
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidInput)
	}

	route, err := o.registry.Get(ctx, req.Model)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	prompt, err := o.formatter.Format(req.Messages, route.Format)
	if err != nil {
		return fmt.Errorf("failed to format prompt: %w", err)
	}

	return o.Run(ctx, route.Client, &JobRequest{
		Model:  route.ID,
		Prompt: prompt,
		Params: req.Params,
	}, sink)
}

// Run submits one job and relays it. Validation failures return
// ErrInvalidInput without touching the sink. A failed submission closes the
// sink with no chunks and returns a *SubmitError.
func (o *Orchestrator) Run(ctx context.Context, client JobClient, req *JobRequest, sink ChunkSink) error {
	created := o.now()

	switch {
	case req == nil || req.Prompt == "":
		return fmt.Errorf("%w: prompt cannot be empty", ErrInvalidInput)
	case req.Model == "":
		return fmt.Errorf("%w: model cannot be empty", ErrInvalidInput)
	case client == nil:
		return fmt.Errorf("%w: job client cannot be nil", ErrInvalidInput)
	case sink == nil:
		return fmt.Errorf("%w: sink cannot be nil", ErrInvalidInput)
	}

	ctx = observability.WithModel(ctx, req.Model)
	logger := observability.FromContext(ctx)

	handle, err := client.Submit(ctx, req.Prompt, req.Params)
	if err != nil {
		observability.JobsSubmittedTotal.WithLabelValues(req.Model, "error").Inc()
		logger.Error("job submission failed", observability.Error(err))

		if closeErr := sink.Close(); closeErr != nil {
			logger.Warn("failed to close sink", observability.Error(closeErr))
		}

		var submitErr *SubmitError
		if errors.As(err, &submitErr) {
			return err
		}
		return &SubmitError{StatusCode: 0, Err: err}
	}
	if handle == nil || handle.ID == "" {
		observability.JobsSubmittedTotal.WithLabelValues(req.Model, "error").Inc()
		logger.Error("job submission returned no job id")

		if closeErr := sink.Close(); closeErr != nil {
			logger.Warn("failed to close sink", observability.Error(closeErr))
		}
		return &SubmitError{StatusCode: 0, Err: errors.New("backend returned no job id")}
	}
	observability.JobsSubmittedTotal.WithLabelValues(req.Model, "ok").Inc()

	ctx = observability.WithJobID(ctx, handle.ID)
	logger = observability.FromContext(ctx)
	logger.Info("job submitted", observability.String("backend_status", string(handle.Status)))

	// The relay always starts by polling: even a job reported finished at
	// submission time still has its output behind the stream endpoint.
	job := &Job{
		ID:      handle.ID,
		Model:   req.Model,
		Created: created.Unix(),
		Status:  JobQueued,
		Output:  "",
	}
	o.record(ctx, *job)
	o.publish(ctx, "job.submitted", job)

	observability.StreamsActive.Inc()
	relayErr := NewStreamRelay(client, o.waiter, o.config).Relay(ctx, job, sink)
	observability.StreamsActive.Dec()

	status := string(job.Status)
	if relayErr != nil {
		status = statusAbandoned
	}
	observability.JobsFinishedTotal.WithLabelValues(req.Model, status).Inc()
	observability.JobDuration.WithLabelValues(req.Model, status).Observe(o.now().Sub(created).Seconds())

	// The client may be gone; the ledger still gets the final state.
	detached := context.WithoutCancel(ctx)
	o.record(detached, *job)

	switch {
	case relayErr != nil:
		o.release(detached, client, job.ID)
		o.publish(detached, "job.abandoned", job)
		return relayErr
	case job.Status == JobFailed:
		o.publish(detached, "job.failed", job)
		return ErrJobFailed
	default:
		o.publish(detached, "job.completed", job)
		return nil
	}
}

func (o *Orchestrator) record(ctx context.Context, job Job) {
	if o.recorder == nil {
		return
	}

	if err := o.recorder.Record(ctx, job); err != nil {
		observability.FromContext(ctx).Warn("failed to record job", observability.Error(err))
	}
}

func (o *Orchestrator) release(ctx context.Context, client JobClient, jobID string) {
	releaser, ok := client.(JobReleaser)
	if !ok {
		return
	}

	if err := releaser.Release(ctx, jobID); err != nil {
		observability.FromContext(ctx).Warn("failed to release job", observability.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, eventType string, job *Job) {
	if o.events == nil {
		return
	}

	o.events.Publish(ctx, eventType, map[string]interface{}{
		"job_id":        job.ID,
		"model":         job.Model,
		"status":        string(job.Status),
		"created":       job.Created,
		"output_length": len(job.Output),
	})
}
