package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	eventlog "occupancy-cloud/internal/eventlog/domain"
	"occupancy-cloud/internal/eventlog/interfaces"
	"occupancy-cloud/internal/observability/metrics"
)

const timeLayout = time.RFC3339

// Handler provides event log HTTP endpoints.
type Handler struct {
	store eventlog.Store
}

// NewHandler constructs a handler.
func NewHandler(store eventlog.Store) (*Handler, error) {
	if store == nil {
		return nil, errors.New("eventlog handler: nil store")
	}
	return &Handler{store: store}, nil
}

// ServeHTTP handles /api/v1/events and the export subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	switch r.URL.Path {
	case "/api/v1/events":
		h.handleList(w, r)
	case "/api/v1/events/export.csv":
		h.handleExport(w, r, "csv")
	case "/api/v1/events/export.xlsx":
		h.handleExport(w, r, "xlsx")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	deviceID, window, err := parseEventQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	events, err := h.store.QueryRange(r.Context(), deviceID, window)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"device_id": deviceID,
		"events":    events,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request, format string) {
	started := time.Now()
	deviceID, window, err := parseEventQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	events, err := h.store.QueryRange(r.Context(), deviceID, window)
	if err != nil {
		metrics.ObserveExport(format, "error", time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var payload []byte
	var contentType string
	switch format {
	case "csv":
		payload, err = interfaces.BuildEventsCSV(events)
		contentType = "text/csv"
	case "xlsx":
		payload, err = interfaces.BuildEventsXLSX(deviceID, window, events)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		http.Error(w, "unknown format", http.StatusNotFound)
		return
	}
	if err != nil {
		metrics.ObserveExport(format, "error", time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	metrics.ObserveExport(format, "success", time.Since(started))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=events-%s.%s", deviceID, format))
	_, _ = w.Write(payload)
}

func parseEventQuery(r *http.Request) (string, eventlog.Window, error) {
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		return "", eventlog.Window{}, errors.New("device_id is required")
	}
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return "", eventlog.Window{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return "", eventlog.Window{}, err
	}
	if !to.After(from) {
		return "", eventlog.Window{}, errors.New("to must be after from")
	}
	window := eventlog.Window{
		From:            from,
		To:              to,
		ExcludeWeekends: r.URL.Query().Get("working_days") == "true",
	}
	return deviceID, window, nil
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", key)
	}
	parsed, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339", key)
	}
	return parsed.UTC(), nil
}
