// Package transport serves the ragd REST API over HTTP. It owns request
// routing, decoding and validation, error mapping, and the middleware
// chain; the actual retrieval and synthesis work is delegated to the
// pipeline.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/animadocs/ragd/pkg/api"
	"github.com/animadocs/ragd/pkg/health"
	"github.com/animadocs/ragd/pkg/pipeline"
)

// Handler routes API requests to the pipeline.
type Handler struct {
	pipe        *pipeline.Pipeline
	checker     *health.Checker
	validation  api.ValidationConfig
	maxBodySize int64
	mux         *http.ServeMux
}

// NewHandler creates the route table for the API surface.
func NewHandler(pipe *pipeline.Pipeline, checker *health.Checker, validation api.ValidationConfig, maxBodySize int64) *Handler {
	h := &Handler{
		pipe:        pipe,
		checker:     checker,
		validation:  validation,
		maxBodySize: maxBodySize,
		mux:         http.NewServeMux(),
	}

	h.mux.HandleFunc("GET /{$}", h.handleRoot)
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /stats", h.handleStats)
	h.mux.HandleFunc("POST /query", h.handleQuery)
	h.mux.HandleFunc("POST /rebuild-index", h.handleRebuild)
	h.mux.HandleFunc("GET /search", h.handleSearch)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Mux exposes the underlying mux so extra routes (metrics) can be added.
func (h *Handler) Mux() *http.ServeMux {
	return h.mux
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	status := "initializing"
	if h.pipe.Ready() {
		status = "running"
	}
	writeJSON(w, http.StatusOK, api.RootResponse{
		Message: "ragd documentation query service",
		Status:  status,
	})
}

// handleHealth reports component health. The response is 503 until the
// index is ready and every registered component is up, so orchestrator
// probes hold traffic during startup.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Run(r.Context())

	resp := api.HealthResponse{
		Status:        "healthy",
		PipelineReady: h.pipe.Ready(),
		Components:    make(map[string]api.ComponentStatus, len(report.Components)),
		Timestamp:     report.Timestamp,
	}
	for name, c := range report.Components {
		resp.Components[name] = api.ComponentStatus{
			Status:  string(c.Status),
			Message: c.Message,
			Latency: c.Latency,
		}
	}

	status := http.StatusOK
	if report.Status == health.StatusDown {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.pipe.Stats(r.Context())
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req api.QueryRequest
	if !h.decodeBody(w, r, &req) {
		return
	}
	if apiErr := api.ValidateQuery(&req, h.validation); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}

	resp, err := h.pipe.Query(r.Context(), &req)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRebuild accepts an asynchronous rebuild and returns immediately.
// Progress is observable through /stats; a concurrent trigger is refused
// with a conflict.
func (h *Handler) handleRebuild(w http.ResponseWriter, r *http.Request) {
	var req api.RebuildRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	if err := h.pipe.TriggerRebuild(req.ForceRebuild); err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, api.RebuildResponse{
		Message:      "index rebuild started",
		ForceRebuild: req.ForceRebuild,
		Status:       "processing",
	})
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	topK := 0
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteAPIError(w, api.NewInvalidRequestError("top_k", "top_k must be an integer"))
			return
		}
		topK = n
	}

	if apiErr := api.ValidateSearch(q, topK, h.validation); apiErr != nil {
		WriteAPIError(w, apiErr)
		return
	}

	// topK of zero falls back to the configured retrieval default.
	resp, err := h.pipe.Search(r.Context(), q, topK)
	if err != nil {
		writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeBody decodes a JSON request body, enforcing content type and the
// body size limit. An empty body decodes to the zero value of v.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// An empty body means all fields take their defaults.
		if errors.Is(err, io.EOF) {
			return true
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", h.maxBodySize)),
				http.StatusRequestEntityTooLarge)
			return false
		}
		WriteAPIError(w, api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()))
		return false
	}
	return true
}
