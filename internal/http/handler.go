package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/lexgate/lexgate/internal/domain"
	"github.com/lexgate/lexgate/internal/observability"
)

// Handler handles HTTP requests.
type Handler struct {
	pipeline *domain.PipelineService
	registry domain.ProviderRegistry
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(pipeline *domain.PipelineService, registry domain.ProviderRegistry) *Handler {
	return &Handler{
		pipeline: pipeline,
		registry: registry,
	}
}

// HandleGenerate processes batch generation requests.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var req domain.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	ctx = observability.WithUserID(ctx, req.UserID)
	ctx = observability.WithMode(ctx, string(req.Mode))
	if req.Model != "" {
		ctx = observability.WithModel(ctx, req.Model)
	}

	logger := observability.FromContext(ctx)
	logger.Info("generation request received",
		zap.String("mode", string(req.Mode)),
		zap.String("model", req.Model),
	)

	result, err := h.pipeline.Generate(ctx, &req)
	if err != nil {
		logger.Error("generation failed", zap.Error(err))
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	logger.Info("generation succeeded",
		zap.String("model", result.Model),
		zap.Int("tokens", result.Cost.Total),
		zap.Float64("cost", result.Cost.Cost),
		zap.Bool("cached", result.Cached),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// HandleGenerateStream processes streaming generation requests over SSE.
// The event sequence is: one "analysis" event, then "data" fragment events,
// then either a "billing" event (normal or partial completion) or an "error"
// event followed by "billing" when any fragments were delivered.
func (h *Handler) HandleGenerateStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()

	var req domain.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	ctx = observability.WithUserID(ctx, req.UserID)
	ctx = observability.WithMode(ctx, string(req.Mode))

	logger := observability.FromContext(ctx)
	logger.Info("stream request started")

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	session, err := h.pipeline.GenerateStream(ctx, &req)
	if err != nil {
		logger.Error("stream failed", zap.Error(err))
		http.Error(w, err.Error(), statusForError(err))
		return
	}
	defer session.Cancel()

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent(w, "analysis", session.Analysis)
	flusher.Flush()

	for chunk := range session.Chunks {
		if chunk.Error != nil {
			logger.Error("stream chunk error", zap.Error(chunk.Error))
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", chunk.Error.Error())
			flusher.Flush()
			break
		}

		if chunk.Done {
			break
		}

		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", string(data))
		flusher.Flush()
	}

	// The pipeline always settles billing, including after an error or a
	// client disconnect, covering only the fragments actually delivered.
	if cost, ok := <-session.Billing; ok {
		writeEvent(w, "billing", cost)
		flusher.Flush()
		logger.Info("stream completed",
			zap.Int("tokens", cost.Total),
			zap.Float64("cost", cost.Cost),
		)
	}
}

// HandleProviders lists registered providers and their supported models.
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	names, err := h.registry.List(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type providerInfo struct {
		Name   string   `json:"name"`
		Models []string `json:"models"`
	}

	infos := make([]providerInfo, 0, len(names))
	for _, name := range names {
		provider, err := h.registry.Get(ctx, name)
		if err != nil {
			continue
		}
		infos = append(infos, providerInfo{
			Name:   provider.Name(),
			Models: provider.SupportedModels(ctx),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"providers": infos}); err != nil {
		observability.FromContext(ctx).Error("failed to encode response", zap.Error(err))
	}
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		// Already written status, can't change it, just log.
		return
	}
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(data))
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
