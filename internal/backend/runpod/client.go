package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/davidbz/runrelay/internal/domain"
	"github.com/davidbz/runrelay/internal/observability"
)

const maxErrorBody = 512

// Client talks to a single RunPod serverless endpoint.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the endpoint endpointID under config.BaseURL.
// An empty endpointID uses config.BaseURL as the endpoint URL itself.
func NewClient(config Config, endpointID string) *Client {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if endpointID != "" {
		baseURL += "/" + url.PathEscape(endpointID)
	}

	return &Client{
		apiToken: config.APIToken,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// BaseURL returns the endpoint URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Submit starts a job with POST {base}/run.
func (c *Client) Submit(ctx context.Context, prompt string, params domain.SamplingParams) (*domain.JobHandle, error) {
	body, err := json.Marshal(runRequest{
		Input: runInput{Prompt: prompt, SamplingParams: params},
	})
	if err != nil {
		return nil, &domain.SubmitError{StatusCode: 0, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(body))
	if err != nil {
		return nil, &domain.SubmitError{StatusCode: 0, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.SubmitError{StatusCode: 0, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if !successful(resp.StatusCode) {
		return nil, &domain.SubmitError{StatusCode: resp.StatusCode, Err: statusError(resp)}
	}

	var payload runResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return nil, &domain.SubmitError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", decodeErr),
		}
	}

	if validateErr := validatePayload(&payload); validateErr != nil {
		return nil, &domain.SubmitError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("invalid run response: %w", validateErr),
		}
	}

	status, err := toJobStatus(payload.Status)
	if err != nil {
		return nil, &domain.SubmitError{StatusCode: resp.StatusCode, Err: err}
	}

	observability.FromContext(ctx).Debug("runpod job created",
		observability.String("job_id", payload.ID),
		observability.String("runpod_status", payload.Status),
	)

	return &domain.JobHandle{ID: payload.ID, Status: status}, nil
}

// Poll fetches the output produced since the previous poll with
// GET {base}/stream/{id}.
func (c *Client) Poll(ctx context.Context, jobID string) (*domain.JobSnapshot, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+"/stream/"+url.PathEscape(jobID),
		http.NoBody,
	)
	if err != nil {
		return nil, &domain.PollError{
			Kind:       domain.PollErrorTransport,
			StatusCode: 0,
			Err:        fmt.Errorf("failed to create request: %w", err),
		}
	}
	c.authorize(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.PollError{
			Kind:       domain.PollErrorTransport,
			StatusCode: 0,
			Err:        fmt.Errorf("request failed: %w", err),
		}
	}
	defer resp.Body.Close()

	if !successful(resp.StatusCode) {
		return nil, &domain.PollError{Kind: domain.PollErrorStatus, StatusCode: resp.StatusCode, Err: statusError(resp)}
	}

	var payload streamResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr != nil {
		return nil, &domain.PollError{
			Kind:       domain.PollErrorSchema,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("failed to decode response: %w", decodeErr),
		}
	}

	if validateErr := validatePayload(&payload); validateErr != nil {
		return nil, &domain.PollError{
			Kind:       domain.PollErrorSchema,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("invalid stream response: %w", validateErr),
		}
	}

	status, err := toJobStatus(payload.Status)
	if err != nil {
		return nil, &domain.PollError{Kind: domain.PollErrorSchema, StatusCode: resp.StatusCode, Err: err}
	}

	return &domain.JobSnapshot{Status: status, Fragments: payload.fragments()}, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
}

func successful(statusCode int) bool {
	return statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
