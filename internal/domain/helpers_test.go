package domain_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/runrelay/internal/domain"
)

// pollResult is one scripted answer of scriptedClient.Poll.
type pollResult struct {
	snapshot *domain.JobSnapshot
	err      error
}

func queued() pollResult {
	return pollResult{snapshot: &domain.JobSnapshot{Status: domain.JobQueued, Fragments: []string{}}, err: nil}
}

func running(fragments ...string) pollResult {
	return pollResult{snapshot: &domain.JobSnapshot{Status: domain.JobRunning, Fragments: fragments}, err: nil}
}

func completed(fragments ...string) pollResult {
	return pollResult{snapshot: &domain.JobSnapshot{Status: domain.JobCompleted, Fragments: fragments}, err: nil}
}

func failed() pollResult {
	return pollResult{snapshot: &domain.JobSnapshot{Status: domain.JobFailed, Fragments: []string{}}, err: nil}
}

func pollErr(kind domain.PollErrorKind) pollResult {
	return pollResult{snapshot: nil, err: &domain.PollError{Kind: kind, StatusCode: 0, Err: errors.New("boom")}}
}

// scriptedClient is a JobClient that replays a fixed sequence of poll results.
type scriptedClient struct {
	mu      sync.Mutex
	polls   []pollResult
	calls   int
	jobIDs  []string
	handle  *domain.JobHandle
	subErr  error
	prompts []string
}

func newScriptedClient(polls ...pollResult) *scriptedClient {
	return &scriptedClient{
		polls:  polls,
		handle: &domain.JobHandle{ID: "job-1", Status: domain.JobQueued},
	}
}

func (c *scriptedClient) Submit(_ context.Context, prompt string, _ domain.SamplingParams) (*domain.JobHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prompts = append(c.prompts, prompt)
	if c.subErr != nil {
		return nil, c.subErr
	}
	return c.handle, nil
}

func (c *scriptedClient) Poll(_ context.Context, jobID string) (*domain.JobSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.jobIDs = append(c.jobIDs, jobID)
	if c.calls >= len(c.polls) {
		// Out of script: end the job so a broken test cannot spin forever.
		c.calls++
		return &domain.JobSnapshot{Status: domain.JobFailed, Fragments: nil}, nil
	}

	result := c.polls[c.calls]
	c.calls++
	return result.snapshot, result.err
}

func (c *scriptedClient) pollCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// recordingWaiter returns immediately and records requested pauses.
type recordingWaiter struct {
	mu        sync.Mutex
	durations []time.Duration
	onWait    func(n int) error
}

func (w *recordingWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.durations = append(w.durations, d)
	n := len(w.durations)
	w.mu.Unlock()

	if w.onWait != nil {
		if err := w.onWait(n); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func (w *recordingWaiter) waits() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.durations...)
}

// recordingSink captures written lines.
type recordingSink struct {
	mu       sync.Mutex
	lines    []string
	closed   int
	writeErr error
	failAt   int // 1-based write index that fails; 0 never fails
}

func (s *recordingSink) WriteLine(_ context.Context, line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failAt > 0 && len(s.lines)+1 == s.failAt {
		return s.writeErr
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSink) written() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func (s *recordingSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// decodedChunk mirrors the wire shape of a chunk line.
type decodedChunk struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index        int               `json:"index"`
		Delta        map[string]string `json:"delta"`
		FinishReason *string           `json:"finish_reason"`
	} `json:"choices"`
}

func decodeChunkLine(t *testing.T, line string) decodedChunk {
	t.Helper()

	require.True(t, strings.HasPrefix(line, "data: "), "line %q lacks data prefix", line)
	require.True(t, strings.HasSuffix(line, "\n"), "line %q lacks newline", line)

	var chunk decodedChunk
	payload := strings.TrimSuffix(strings.TrimPrefix(line, "data: "), "\n")
	require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
	require.Len(t, chunk.Choices, 1)
	return chunk
}

// mockJobClient is a testify mock of domain.JobClient.
type mockJobClient struct {
	mock.Mock
}

func (m *mockJobClient) Submit(ctx context.Context, prompt string, params domain.SamplingParams) (*domain.JobHandle, error) {
	args := m.Called(ctx, prompt, params)
	handle, _ := args.Get(0).(*domain.JobHandle)
	return handle, args.Error(1)
}

func (m *mockJobClient) Poll(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
	args := m.Called(ctx, jobID)
	snapshot, _ := args.Get(0).(*domain.JobSnapshot)
	return snapshot, args.Error(1)
}

// mockFormatter is a testify mock of domain.PromptFormatter.
type mockFormatter struct {
	mock.Mock
}

func (m *mockFormatter) Format(messages []domain.Message, family string) (string, error) {
	args := m.Called(messages, family)
	return args.String(0), args.Error(1)
}

// mockPublisher is a testify mock of domain.EventPublisher.
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, eventType string, data map[string]interface{}) {
	m.Called(ctx, eventType, data)
}

// mockRegistry is a mock implementation of ModelRegistry for testing.
type mockRegistry struct {
	routes map[string]domain.ModelRoute
}

func newMockRegistry(routes ...domain.ModelRoute) *mockRegistry {
	r := &mockRegistry{routes: make(map[string]domain.ModelRoute)}
	for _, route := range routes {
		r.routes[route.ID] = route
	}
	return r
}

func (m *mockRegistry) Register(_ context.Context, route domain.ModelRoute) error {
	m.routes[route.ID] = route
	return nil
}

func (m *mockRegistry) Get(_ context.Context, model string) (domain.ModelRoute, error) {
	route, exists := m.routes[model]
	if !exists {
		return domain.ModelRoute{}, fmt.Errorf("%w: %s", domain.ErrModelNotFound, model)
	}
	return route, nil
}

func (m *mockRegistry) List(_ context.Context) ([]string, error) {
	names := make([]string, 0, len(m.routes))
	for name := range m.routes {
		names = append(names, name)
	}
	return names, nil
}
