package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// VehicleHandler exposes the vehicle registry over HTTP.
type VehicleHandler struct {
	vehicles db.VehicleCollection
}

// NewVehicleHandler creates a new vehicle handler.
func NewVehicleHandler(vehicles db.VehicleCollection) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles}
}

// Register wires the vehicle routes onto the mux.
func (h *VehicleHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/vehicles", h.Create)
	mux.HandleFunc("GET /api/vehicles", h.List)
	mux.HandleFunc("GET /api/vehicles/{id}", h.Get)
}

// Create registers a new fleet vehicle.
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var vehicle models.Vehicle
	if !decodeBody(w, r, &vehicle) {
		return
	}
	if vehicle.Make == "" || vehicle.Model == "" {
		http.Error(w, "Make and model are required", http.StatusBadRequest)
		return
	}
	if vehicle.Status == "" {
		vehicle.Status = models.VehicleActive
	}
	vehicle.CreatedAt = time.Now()

	id, err := h.vehicles.InsertVehicle(r.Context(), vehicle)
	if err != nil {
		http.Error(w, "Failed to create vehicle", http.StatusInternalServerError)
		return
	}
	vehicle.ID = id
	writeJSON(w, http.StatusCreated, vehicle)
}

// List returns all fleet vehicles.
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.FindVehicles(r.Context())
	if err != nil {
		http.Error(w, "Failed to list vehicles", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// Get returns one vehicle by ID.
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Vehicle not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load vehicle", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}
