package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/scheduling"
)

// MaintenanceHandler exposes the scheduling engine over HTTP.
type MaintenanceHandler struct {
	engine *scheduling.Engine
}

// NewMaintenanceHandler creates a new maintenance handler.
func NewMaintenanceHandler(engine *scheduling.Engine) *MaintenanceHandler {
	return &MaintenanceHandler{engine: engine}
}

// Register wires the maintenance routes onto the mux.
func (h *MaintenanceHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/maintenance", h.CreateRecord)
	mux.HandleFunc("POST /api/maintenance/scheduled", h.CreateScheduled)
	mux.HandleFunc("PUT /api/maintenance/scheduled/{id}", h.UpdateScheduled)
	mux.HandleFunc("POST /api/maintenance/scheduled/{id}/complete", h.CompleteScheduled)
	mux.HandleFunc("POST /api/maintenance/scheduled/{id}/cancel", h.CancelScheduled)
	mux.HandleFunc("GET /api/maintenance/upcoming", h.Upcoming)
	mux.HandleFunc("GET /api/maintenance/overdue", h.Overdue)
	mux.HandleFunc("GET /api/maintenance/stats", h.Stats)
}

// CreateRecord handles ad-hoc maintenance record creation.
func (h *MaintenanceHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var input scheduling.CreateRecordInput
	if !decodeBody(w, r, &input) {
		return
	}
	task, err := h.engine.CreateRecord(r.Context(), input)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// CreateScheduled handles scheduled task creation.
func (h *MaintenanceHandler) CreateScheduled(w http.ResponseWriter, r *http.Request) {
	var input scheduling.CreateScheduledInput
	if !decodeBody(w, r, &input) {
		return
	}
	task, err := h.engine.CreateScheduled(r.Context(), input)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// UpdateScheduled handles edits to a still-scheduled task.
func (h *MaintenanceHandler) UpdateScheduled(w http.ResponseWriter, r *http.Request) {
	var patch scheduling.UpdatePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	task, err := h.engine.UpdateScheduled(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CompleteScheduled handles task completion.
func (h *MaintenanceHandler) CompleteScheduled(w http.ResponseWriter, r *http.Request) {
	var input scheduling.CompletionInput
	if !decodeBody(w, r, &input) {
		return
	}
	task, err := h.engine.CompleteScheduled(r.Context(), r.PathValue("id"), input)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// CancelScheduled handles task cancellation.
func (h *MaintenanceHandler) CancelScheduled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	task, err := h.engine.CancelScheduled(r.Context(), r.PathValue("id"), body.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Upcoming returns scheduled tasks due within the requested window.
func (h *MaintenanceHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid days parameter", http.StatusBadRequest)
			return
		}
		days = parsed
	}
	tasks, err := h.engine.UpcomingScheduled(r.Context(), days)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Overdue returns overdue tasks.
func (h *MaintenanceHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.engine.OverdueScheduled(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Stats returns maintenance statistics, optionally scoped to one vehicle.
func (h *MaintenanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.engine.Stats(r.Context(), r.URL.Query().Get("vehicle_id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

// writeEngineError maps the engine's typed errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	var notFound *scheduling.NotFoundError
	var validation *scheduling.ValidationError
	var invalidState *scheduling.InvalidStateError
	switch {
	case errors.As(err, &notFound):
		http.Error(w, notFound.Error(), http.StatusNotFound)
	case errors.As(err, &validation):
		http.Error(w, validation.Error(), http.StatusBadRequest)
	case errors.As(err, &invalidState):
		http.Error(w, invalidState.Error(), http.StatusConflict)
	default:
		log.WithError(err).Error("maintenance operation failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
