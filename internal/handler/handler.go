package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codescape/internal/analysis"
	"codescape/internal/frame"
	"codescape/internal/service"
)

// maxBodyBytes caps request bodies; payloads of large projects are big
const maxBodyBytes = 64 << 20

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SessionHandler handles session API requests
type SessionHandler struct {
	svc    *service.SessionService
	bus    *service.EventBus
	logger *slog.Logger
}

// NewSessionHandler creates a new session handler. The bus feeds websocket
// clients; a nil logger uses slog.Default.
func NewSessionHandler(svc *service.SessionService, bus *service.EventBus, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{svc: svc, bus: bus, logger: logger.With("component", "handler")}
}

// Register adds every route to mux. The SSE endpoint is registered by the
// caller, which owns the hub.
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/graph", h.GetGraph)
	mux.HandleFunc("GET /api/positions", h.GetPositions)
	mux.HandleFunc("GET /api/export/json", h.ExportJSON)
	mux.HandleFunc("GET /api/export/yaml", h.ExportYAML)
	mux.HandleFunc("GET /api/generations", h.ListGenerations)

	mux.HandleFunc("POST /api/payload", h.UploadPayload)
	mux.HandleFunc("POST /api/analyze", h.Analyze)
	mux.HandleFunc("POST /api/messages", h.PostMessage)
	mux.HandleFunc("POST /api/interactions", h.PostInteraction)

	mux.HandleFunc("GET /api/pins", h.ListPins)
	mux.HandleFunc("DELETE /api/pins/{node_id}", h.DeletePin)

	mux.HandleFunc("GET /ws", h.ServeWebSocket)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", h.Health)
}

// GetGraph returns the filtered graph with current positions
func (h *SessionHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.View()
	if err != nil {
		h.writeServiceError(w, "Failed to get graph", err)
		return
	}
	h.writeJSON(w, v, http.StatusOK)
}

// GetPositions returns the positions of visible nodes
func (h *SessionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.svc.Positions()
	if err != nil {
		h.writeServiceError(w, "Failed to get positions", err)
		return
	}
	h.writeJSON(w, positions, http.StatusOK)
}

// ExportJSON exports a layout snapshot as JSON
func (h *SessionHandler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	h.export(w, "json", "application/json", "layout.json")
}

// ExportYAML exports a layout snapshot as YAML
func (h *SessionHandler) ExportYAML(w http.ResponseWriter, r *http.Request) {
	h.export(w, "yaml", "application/x-yaml", "layout.yml")
}

func (h *SessionHandler) export(w http.ResponseWriter, format, contentType, filename string) {
	var buf bytes.Buffer
	if err := h.svc.Export(&buf, format); err != nil {
		h.writeServiceError(w, "Failed to export "+format, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Write(buf.Bytes())
}

// ListGenerations returns the graph load history
func (h *SessionHandler) ListGenerations(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.writeError(w, "Invalid limit", s, http.StatusBadRequest)
			return
		}
		limit = n
	}
	gens, err := h.svc.Generations(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list generations", err)
		return
	}
	h.writeJSON(w, gens, http.StatusOK)
}

// UploadPayload loads an analysis payload from the request body. YAML bodies
// are accepted when the content type says so.
func (h *SessionHandler) UploadPayload(w http.ResponseWriter, r *http.Request) {
	format := "json"
	if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil {
		switch ct {
		case "application/x-yaml", "application/yaml", "text/yaml":
			format = "yaml"
		}
	}

	info, err := h.svc.Import(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes), format, service.SourceUpload)
	if err != nil {
		h.writeError(w, "Invalid payload", err.Error(), http.StatusBadRequest)
		return
	}
	h.writeJSON(w, info, http.StatusOK)
}

// Analyze requests an analysis and loads the result
func (h *SessionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analysis.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, "Invalid JSON", err.Error(), http.StatusBadRequest)
		return
	}

	info, err := h.svc.Analyze(r.Context(), req)
	if err != nil {
		var needs *analysis.NeedsEntrypointError
		var invalid validator.ValidationErrors
		var transport *analysis.TransportError
		switch {
		case errors.As(err, &needs):
			h.writeJSON(w, map[string]any{
				"error":   "Entrypoint required",
				"details": needs.Message,
				"options": needs.Options,
			}, http.StatusConflict)
		case errors.As(err, &invalid):
			h.writeError(w, "Invalid analysis request", err.Error(), http.StatusBadRequest)
		case errors.As(err, &transport), errors.Is(err, analysis.ErrAnalysisFailed):
			h.writeError(w, "Analysis failed", err.Error(), http.StatusBadGateway)
		default:
			h.writeServiceError(w, "Analysis failed", err)
		}
		return
	}
	h.writeJSON(w, info, http.StatusOK)
}

// PostMessage applies a progress message relayed by the host shell
func (h *SessionHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, "Failed to read body", err.Error(), http.StatusBadRequest)
		return
	}

	info, err := h.svc.HandleMessage(r.Context(), raw)
	if err != nil {
		h.writeError(w, "Invalid message", err.Error(), http.StatusBadRequest)
		return
	}
	if info == nil {
		h.writeJSON(w, map[string]string{"status": "accepted"}, http.StatusAccepted)
		return
	}
	h.writeJSON(w, info, http.StatusOK)
}

// PostInteraction queues one interaction for the next frame
func (h *SessionHandler) PostInteraction(w http.ResponseWriter, r *http.Request) {
	var it frame.Interaction
	if err := json.NewDecoder(r.Body).Decode(&it); err != nil {
		h.writeError(w, "Invalid JSON", err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.svc.Submit(it); err != nil {
		h.writeServiceError(w, "Interaction rejected", err)
		return
	}
	h.writeJSON(w, map[string]string{"status": "queued"}, http.StatusAccepted)
}

// ListPins returns the pins of the current project
func (h *SessionHandler) ListPins(w http.ResponseWriter, r *http.Request) {
	pins, err := h.svc.Pins(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list pins", err)
		return
	}
	h.writeJSON(w, pins, http.StatusOK)
}

// DeletePin releases a pin
func (h *SessionHandler) DeletePin(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("node_id")
	if err := h.svc.Unpin(r.Context(), id); err != nil {
		h.writeServiceError(w, "Failed to unpin "+id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Health reports the session status
func (h *SessionHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]any{
		"status":  "ok",
		"session": h.svc.Status(),
	}, http.StatusOK)
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNoGraph), errors.Is(err, service.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, frame.ErrInvalidInteraction):
		return http.StatusBadRequest
	case errors.Is(err, frame.ErrQueueFull):
		return http.StatusTooManyRequests
	case errors.Is(err, frame.ErrStopped), errors.Is(err, service.ErrNoAnalyzer):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *SessionHandler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(message, "error", err)
	}
	h.writeError(w, message, err.Error(), status)
}

// Helper methods

func (h *SessionHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *SessionHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	h.writeJSON(w, ErrorResponse{Error: error, Details: details}, statusCode)
}
