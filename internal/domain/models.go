package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a chat completion request after the HTTP layer has
// validated it and applied defaults.
type CompletionRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Params   SamplingParams `json:"sampling_params"`
}

// JobRequest is what the orchestrator needs to start one backend job.
type JobRequest struct {
	Model  string
	Prompt string
	Params SamplingParams
}

// SamplingParams are forwarded to the backend unmodified.
type SamplingParams struct {
	PresencePenalty   float64 `json:"presence_penalty"`
	FrequencyPenalty  float64 `json:"frequency_penalty"`
	Temperature       float64 `json:"temperature"`
	TopP              float64 `json:"top_p"`
	TopK              int     `json:"top_k"`
	Stop              *Stop   `json:"stop,omitempty"`
	IgnoreEOS         *bool   `json:"ignore_eos,omitempty"`
	MaxTokens         int     `json:"max_tokens"`
	SkipSpecialTokens *bool   `json:"skip_special_tokens,omitempty"`
}

// Stop holds stop sequences. It accepts either a JSON string or a JSON list
// and re-encodes in the shape it was given.
type Stop struct {
	Values []string
	Single bool
}

// StopList builds a list-shaped Stop.
func StopList(values ...string) *Stop {
	return &Stop{Values: values, Single: false}
}

// StopString builds a string-shaped Stop.
func StopString(value string) *Stop {
	return &Stop{Values: []string{value}, Single: true}
}

// MarshalJSON implements json.Marshaler.
func (s Stop) MarshalJSON() ([]byte, error) {
	if s.Single && len(s.Values) == 1 {
		return json.Marshal(s.Values[0])
	}
	if s.Values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.Values)
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Stop) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		s.Values = []string{single}
		s.Single = true
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("stop must be a string or a list of strings")
	}
	s.Values = list
	s.Single = false
	return nil
}

// JobStatus is the lifecycle state of a backend job.
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further polling happens after this status.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobHandle is returned by a successful submission.
type JobHandle struct {
	ID     string
	Status JobStatus
}

// JobSnapshot is the state of a job as observed by a single poll.
type JobSnapshot struct {
	Status    JobStatus
	Fragments []string
}

// Text concatenates the output fragments of the snapshot in order.
func (s *JobSnapshot) Text() string {
	return strings.Join(s.Fragments, "")
}

// Job is the orchestrator-side view of one backend job.
type Job struct {
	ID      string
	Model   string
	Created int64 // unix seconds, fixed at orchestration start
	Status  JobStatus
	Output  string
}

// StreamChunk is one client-visible unit of streamed output.
type StreamChunk struct {
	ID       string
	Created  int64
	Model    string
	Delta    string
	Terminal bool
}

// ModelRoute binds a public model id to its prompt family and backend.
type ModelRoute struct {
	ID     string
	Format string
	Client JobClient
}
