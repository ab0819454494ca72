package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/davidbz/runrelay/internal/domain"
	"github.com/davidbz/runrelay/internal/observability"
)

const (
	banner = "runrelay api"

	maxRequestBodyBytes = 1 << 20

	modelObject  = "model"
	modelCreated = 169712718265
	modelOwner   = "admin"
)

type modelResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelListResponse struct {
	Object string          `json:"object"`
	Data   []modelResponse `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler handles HTTP requests.
type Handler struct {
	orchestrator *domain.Orchestrator
	registry     domain.ModelRegistry
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(orchestrator *domain.Orchestrator, registry domain.ModelRegistry) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		registry:     registry,
	}
}

// HandleChatCompletion validates a chat request and streams the job output.
func (h *Handler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body chatCompletionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if err := validateRequest(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx = observability.WithModel(ctx, body.Model)
	logger := observability.FromContext(ctx)
	logger.Info("completion request received",
		observability.Int("messages", len(body.Messages)),
		observability.Bool("stream", valueOr(body.Stream, true)),
	)

	sink := newSSESink(w)
	err := h.orchestrator.Stream(ctx, body.toDomain(), sink)

	switch {
	case err == nil:
		logger.Info("stream completed")
	case errors.Is(err, domain.ErrJobFailed):
		logger.Info("job failed, stream closed")
	case sink.Started():
		// The response is committed; the stream itself carried the outcome.
		logger.Warn("stream ended early", observability.Error(err))
	case errors.Is(err, domain.ErrModelNotFound):
		// Same body as the legacy API, but with a 400 rather than its 200.
		writeError(w, http.StatusBadRequest, "invalid model")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("stream failed", observability.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleListModels lists every served model.
func (h *Handler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data := make([]modelResponse, 0, len(models))
	for _, model := range models {
		data = append(data, newModelResponse(model))
	}

	writeJSON(w, http.StatusOK, modelListResponse{Object: "list", Data: data})
}

// HandleGetModel describes one model or answers 404.
func (h *Handler) HandleGetModel(w http.ResponseWriter, r *http.Request) {
	model := chi.URLParam(r, "model")

	if _, err := h.registry.Get(r.Context(), model); err != nil {
		http.NotFound(w, r)
		return
	}

	writeJSON(w, http.StatusOK, newModelResponse(model))
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// HandleRoot answers with the service banner.
func (h *Handler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(banner))
}

func newModelResponse(id string) modelResponse {
	return modelResponse{ID: id, Object: modelObject, Created: modelCreated, OwnedBy: modelOwner}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Already written status, can't change it.
		return
	}
}
