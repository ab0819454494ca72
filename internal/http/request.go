package http

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/davidbz/runrelay/internal/domain"
)

// Defaults applied to omitted sampling fields.
const (
	defaultMaxTokens        = 200
	defaultPresencePenalty  = 0.0
	defaultFrequencyPenalty = 0.0
	defaultTemperature      = 1.0
	defaultTopP             = 1.0
	defaultTopK             = -1
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

// chatCompletionRequest is the inbound body of POST /v1/chat/completions.
// Pointers mark fields that get a default when omitted.
type chatCompletionRequest struct {
	Model             string        `json:"model"               validate:"required"`
	Messages          []chatMessage `json:"messages"            validate:"required,min=1,dive"`
	MaxTokens         *int          `json:"max_tokens"`
	PresencePenalty   *float64      `json:"presence_penalty"    validate:"omitempty,min=-2,max=2"`
	FrequencyPenalty  *float64      `json:"frequency_penalty"`
	Temperature       *float64      `json:"temperature"`
	TopP              *float64      `json:"top_p"`
	TopK              *int          `json:"top_k"`
	Stop              *domain.Stop  `json:"stop"`
	Stream            *bool         `json:"stream"`
	IgnoreEOS         *bool         `json:"ignore_eos"`
	SkipSpecialTokens *bool         `json:"skip_special_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"    validate:"required,oneof=system user assistant"`
	Content string `json:"content"`
}

// validateRequest checks the body against its struct tags and reports every
// failing field in one error.
func validateRequest(req *chatCompletionRequest) error {
	err := getValidator().Struct(req)
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

// toDomain applies defaults and converts the body into a CompletionRequest.
func (r *chatCompletionRequest) toDomain() *domain.CompletionRequest {
	messages := make([]domain.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		messages = append(messages, domain.Message{Role: domain.Role(m.Role), Content: m.Content})
	}

	stop := r.Stop
	if stop == nil {
		stop = domain.StopList("USER", "</s>")
	}

	return &domain.CompletionRequest{
		Model:    r.Model,
		Messages: messages,
		Params: domain.SamplingParams{
			PresencePenalty:   valueOr(r.PresencePenalty, defaultPresencePenalty),
			FrequencyPenalty:  valueOr(r.FrequencyPenalty, defaultFrequencyPenalty),
			Temperature:       valueOr(r.Temperature, defaultTemperature),
			TopP:              valueOr(r.TopP, defaultTopP),
			TopK:              valueOr(r.TopK, defaultTopK),
			Stop:              stop,
			IgnoreEOS:         r.IgnoreEOS,
			MaxTokens:         valueOr(r.MaxTokens, defaultMaxTokens),
			SkipSpecialTokens: r.SkipSpecialTokens,
		},
	}
}

func valueOr[T any](value *T, fallback T) T {
	if value == nil {
		return fallback
	}
	return *value
}
