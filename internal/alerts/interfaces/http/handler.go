package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	alertapp "occupancy-cloud/internal/alerts/application"
	alerts "occupancy-cloud/internal/alerts/domain"
)

// Handler provides alert HTTP endpoints.
type Handler struct {
	service *alertapp.Service
}

// NewHandler constructs a handler.
func NewHandler(service *alertapp.Service) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alerts handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles /api/v1/alerts and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alerts":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleCreate(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/alerts/"):
		h.handleItem(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := parseIntQuery(r, "page", 1)
	limit := parseIntQuery(r, "limit", 10)
	list, err := h.service.ListAlerts(r.Context(), page, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var alert alerts.Alert
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	created, err := h.service.CreateAlert(r.Context(), alert)
	if err != nil {
		respondAlertError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		alert, err := h.service.GetAlert(r.Context(), id)
		if err != nil {
			respondAlertError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	case http.MethodPut:
		var update alerts.Alert
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		alert, err := h.service.UpdateAlert(r.Context(), id, update)
		if err != nil {
			respondAlertError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, alert)
	case http.MethodDelete:
		if err := h.service.RemoveAlert(r.Context(), id); err != nil {
			respondAlertError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func respondAlertError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, alerts.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, alerts.ErrConflict):
		http.Error(w, "device already has an alert", http.StatusConflict)
	case errors.Is(err, alerts.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
