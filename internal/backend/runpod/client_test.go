package runpod_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/runrelay/internal/backend/runpod"
	"github.com/davidbz/runrelay/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *runpod.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return runpod.NewClient(runpod.Config{
		APIToken: "rp-token",
		BaseURL:  server.URL,
		Timeout:  5 * time.Second,
	}, "endpoint-1")
}

func TestNewClient_BaseURL(t *testing.T) {
	config := runpod.Config{BaseURL: "https://api.runpod.ai/v2/", Timeout: time.Second}

	require.Equal(t, "https://api.runpod.ai/v2/abc123", runpod.NewClient(config, "abc123").BaseURL())
	require.Equal(t, "https://api.runpod.ai/v2", runpod.NewClient(config, "").BaseURL())
}

func TestClient_Submit(t *testing.T) {
	t.Run("should post the prompt and sampling params", func(t *testing.T) {
		var captured struct {
			Input struct {
				Prompt         string                 `json:"prompt"`
				SamplingParams map[string]interface{} `json:"sampling_params"`
			} `json:"input"`
		}

		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/endpoint-1/run", r.URL.Path)
			require.Equal(t, "Bearer rp-token", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"job-7","status":"IN_QUEUE"}`)
		})

		handle, err := client.Submit(context.Background(), "USER: Hi ASSISTANT:", domain.SamplingParams{
			Temperature: 0.5,
			TopP:        1,
			TopK:        -1,
			MaxTokens:   200,
			Stop:        domain.StopList("USER", "</s>"),
		})

		require.NoError(t, err)
		require.Equal(t, "job-7", handle.ID)
		require.Equal(t, domain.JobQueued, handle.Status)

		require.Equal(t, "USER: Hi ASSISTANT:", captured.Input.Prompt)
		require.InDelta(t, 0.5, captured.Input.SamplingParams["temperature"], 1e-9)
		require.InDelta(t, 200, captured.Input.SamplingParams["max_tokens"], 1e-9)
		require.Equal(t, []interface{}{"USER", "</s>"}, captured.Input.SamplingParams["stop"])
		require.NotContains(t, captured.Input.SamplingParams, "ignore_eos")
	})

	t.Run("should report non-2xx status codes", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		handle, err := client.Submit(context.Background(), "hi", domain.SamplingParams{})

		require.Nil(t, handle)
		var submitErr *domain.SubmitError
		require.ErrorAs(t, err, &submitErr)
		require.Equal(t, http.StatusInternalServerError, submitErr.StatusCode)
		require.Contains(t, err.Error(), "boom")
	})

	t.Run("should reject responses that fail the schema", func(t *testing.T) {
		bodies := []string{
			`{"status":"IN_QUEUE"}`,
			`{"id":"job-1","status":"CANCELLED"}`,
			`{"id":42,"status":"IN_QUEUE"}`,
			`not json`,
		}

		for _, body := range bodies {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			})

			handle, err := client.Submit(context.Background(), "hi", domain.SamplingParams{})

			require.Nil(t, handle, body)
			var submitErr *domain.SubmitError
			require.ErrorAs(t, err, &submitErr, body)
			require.Equal(t, http.StatusOK, submitErr.StatusCode, body)
		}
	})

	t.Run("should report transport failures", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		client := runpod.NewClient(runpod.Config{BaseURL: server.URL, Timeout: time.Second}, "")
		_, err := client.Submit(context.Background(), "hi", domain.SamplingParams{})

		var submitErr *domain.SubmitError
		require.ErrorAs(t, err, &submitErr)
		require.Zero(t, submitErr.StatusCode)
	})
}

func TestClient_Poll(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		status    domain.JobStatus
		fragments []string
	}{
		{
			name:      "queued with an empty stream",
			body:      `{"status":"IN_QUEUE","stream":[]}`,
			status:    domain.JobQueued,
			fragments: []string{},
		},
		{
			name: "in progress concatenates every entry",
			body: `{"status":"IN_PROGRESS","stream":[
				{"metrics":{"stream_index":0},"output":{"input_tokens":12,"text":["Hel"]}},
				{"metrics":{"stream_index":1},"output":{"input_tokens":12,"text":["lo",", "]}}
			]}`,
			status:    domain.JobRunning,
			fragments: []string{"Hel", "lo", ", "},
		},
		{
			name:      "empty string entries are kept",
			body:      `{"status":"IN_PROGRESS","stream":[{"metrics":{"stream_index":0},"output":{"input_tokens":1,"text":["","a"]}}]}`,
			status:    domain.JobRunning,
			fragments: []string{"", "a"},
		},
		{
			name:      "completed with an empty text list",
			body:      `{"status":"COMPLETED","stream":[{"metrics":{"stream_index":2},"output":{"input_tokens":0,"text":[]}}]}`,
			status:    domain.JobCompleted,
			fragments: []string{},
		},
		{
			name:      "failed",
			body:      `{"status":"FAILED","stream":[]}`,
			status:    domain.JobFailed,
			fragments: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, http.MethodGet, r.Method)
				require.Equal(t, "/endpoint-1/stream/job-7", r.URL.Path)
				require.Equal(t, "Bearer rp-token", r.Header.Get("Authorization"))
				_, _ = io.WriteString(w, tt.body)
			})

			snapshot, err := client.Poll(context.Background(), "job-7")

			require.NoError(t, err)
			require.Equal(t, tt.status, snapshot.Status)
			require.Equal(t, tt.fragments, snapshot.Fragments)
		})
	}
}

func TestClient_PollErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		kind       domain.PollErrorKind
	}{
		{name: "non-2xx status", statusCode: http.StatusServiceUnavailable, body: "busy", kind: domain.PollErrorStatus},
		{name: "malformed json", statusCode: http.StatusOK, body: `{"status":`, kind: domain.PollErrorSchema},
		{name: "unknown status", statusCode: http.StatusOK, body: `{"status":"TIMED_OUT","stream":[]}`, kind: domain.PollErrorSchema},
		{name: "missing stream", statusCode: http.StatusOK, body: `{"status":"IN_PROGRESS"}`, kind: domain.PollErrorSchema},
		{
			name:       "missing stream index",
			statusCode: http.StatusOK,
			body:       `{"status":"IN_PROGRESS","stream":[{"metrics":{},"output":{"input_tokens":1,"text":["a"]}}]}`,
			kind:       domain.PollErrorSchema,
		},
		{
			name:       "missing output",
			statusCode: http.StatusOK,
			body:       `{"status":"IN_PROGRESS","stream":[{"metrics":{"stream_index":0}}]}`,
			kind:       domain.PollErrorSchema,
		},
		{
			name:       "non-string text",
			statusCode: http.StatusOK,
			body:       `{"status":"IN_PROGRESS","stream":[{"metrics":{"stream_index":0},"output":{"input_tokens":1,"text":[1]}}]}`,
			kind:       domain.PollErrorSchema,
		},
		{
			name:       "null text entry",
			statusCode: http.StatusOK,
			body:       `{"status":"IN_PROGRESS","stream":[{"metrics":{"stream_index":0},"output":{"input_tokens":1,"text":[null,"x"]}}]}`,
			kind:       domain.PollErrorSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = io.WriteString(w, tt.body)
			})

			snapshot, err := client.Poll(context.Background(), "job-7")

			require.Nil(t, snapshot)
			var pollErr *domain.PollError
			require.ErrorAs(t, err, &pollErr)
			require.Equal(t, tt.kind, pollErr.Kind)
			require.Equal(t, tt.statusCode, pollErr.StatusCode)
		})
	}

	t.Run("transport failure", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		client := runpod.NewClient(runpod.Config{BaseURL: server.URL, Timeout: time.Second}, "endpoint-1")
		_, err := client.Poll(context.Background(), "job-7")

		var pollErr *domain.PollError
		require.ErrorAs(t, err, &pollErr)
		require.Equal(t, domain.PollErrorTransport, pollErr.Kind)
	})
}
