package runpod

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/davidbz/runrelay/internal/domain"
)

// Wire statuses reported by RunPod.
const (
	statusInQueue    = "IN_QUEUE"
	statusInProgress = "IN_PROGRESS"
	statusCompleted  = "COMPLETED"
	statusFailed     = "FAILED"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

type runRequest struct {
	Input runInput `json:"input"`
}

type runInput struct {
	Prompt         string                `json:"prompt"`
	SamplingParams domain.SamplingParams `json:"sampling_params"`
}

// runResponse is the body of POST /run.
type runResponse struct {
	ID     string `json:"id"     validate:"required"`
	Status string `json:"status" validate:"required,oneof=IN_QUEUE IN_PROGRESS COMPLETED FAILED"`
}

// streamResponse is the body of GET /stream/{id}. Pointers tell a missing
// number apart from a legitimate zero.
type streamResponse struct {
	Status string        `json:"status" validate:"required,oneof=IN_QUEUE IN_PROGRESS COMPLETED FAILED"`
	Stream []streamEntry `json:"stream" validate:"required,dive"`
}

type streamEntry struct {
	Metrics *streamMetrics `json:"metrics" validate:"required"`
	Output  *streamOutput  `json:"output"  validate:"required"`
}

type streamMetrics struct {
	StreamIndex *float64 `json:"stream_index" validate:"required"`
}

type streamOutput struct {
	InputTokens *float64  `json:"input_tokens" validate:"required"`
	Text        []*string `json:"text"         validate:"required,dive,required"`
}

// fragments returns every text entry of the stream array in order. Null
// entries never reach here: validation rejects them.
func (r *streamResponse) fragments() []string {
	fragments := make([]string, 0, len(r.Stream))
	for _, entry := range r.Stream {
		for _, text := range entry.Output.Text {
			fragments = append(fragments, *text)
		}
	}
	return fragments
}

func toJobStatus(status string) (domain.JobStatus, error) {
	switch status {
	case statusInQueue:
		return domain.JobQueued, nil
	case statusInProgress:
		return domain.JobRunning, nil
	case statusCompleted:
		return domain.JobCompleted, nil
	case statusFailed:
		return domain.JobFailed, nil
	default:
		return "", fmt.Errorf("unknown job status %q", status)
	}
}

// validatePayload checks payload against its struct tags and flattens the
// failures into one readable error.
func validatePayload(payload interface{}) error {
	err := getValidator().Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("unexpected validation failure: %w", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		messages = append(messages, fmt.Sprintf("field '%s' failed on the '%s' tag", fieldErr.Namespace(), fieldErr.Tag()))
	}
	return errors.New(strings.Join(messages, "; "))
}
