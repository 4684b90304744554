package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
	eventlog "occupancy-cloud/internal/eventlog/domain"
	"occupancy-cloud/internal/observability/metrics"
	occupancyapp "occupancy-cloud/internal/occupancy/application"
	occupancyiface "occupancy-cloud/internal/occupancy/interfaces"
)

const timeLayout = time.RFC3339

// Handler provides occupancy HTTP endpoints.
type Handler struct {
	service   *occupancyapp.Service
	refresher *occupancyapp.Refresher
}

// NewHandler constructs a handler.
func NewHandler(service *occupancyapp.Service, refresher *occupancyapp.Refresher) (*Handler, error) {
	if service == nil {
		return nil, errors.New("occupancy handler: nil service")
	}
	return &Handler{service: service, refresher: refresher}, nil
}

// ServeHTTP handles the occupancy endpoints.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/occupancy/summary":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleSummary(w, r)
	case r.URL.Path == "/api/v1/occupancy/report.pdf":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleReport(w, r)
	case r.URL.Path == "/api/v1/occupancy/refresh":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRefresh(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/occupancy/devices/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleDevice(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/occupancy/rooms/"):
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleRoom(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summarize(r.Context(), roomFilterFromQuery(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	summary, err := h.service.Summarize(r.Context(), roomFilterFromQuery(r))
	if err != nil {
		metrics.ObserveExport("pdf", "error", time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	payload, err := occupancyiface.BuildOccupancyPDF(summary)
	if err != nil {
		metrics.ObserveExport("pdf", "error", time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveExport("pdf", "success", time.Since(started))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename=occupancy-report.pdf")
	_, _ = w.Write(payload)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		http.Error(w, "refresh not available", http.StatusServiceUnavailable)
		return
	}
	if err := h.refresher.RefreshAll(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := strings.TrimPrefix(r.URL.Path, "/api/v1/occupancy/devices/")
	if deviceID == "" || strings.Contains(deviceID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	window, err := parseWindowQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hoursPerDay := 0.0
	if raw := r.URL.Query().Get("hours_per_day"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%f", &hoursPerDay); err != nil {
			http.Error(w, "hours_per_day must be numeric", http.StatusBadRequest)
			return
		}
	}
	result, err := h.service.ComputeDeviceOccupancy(r.Context(), deviceID, window, hoursPerDay)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) handleRoom(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimPrefix(r.URL.Path, "/api/v1/occupancy/rooms/")
	if roomID == "" || strings.Contains(roomID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	window, err := parseWindowQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.service.ComputeRoomOccupancy(r.Context(), roomID, window)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, result)
}

func parseWindowQuery(r *http.Request) (eventlog.Window, error) {
	from, err := parseTimeQuery(r, "from")
	if err != nil {
		return eventlog.Window{}, err
	}
	to, err := parseTimeQuery(r, "to")
	if err != nil {
		return eventlog.Window{}, err
	}
	if !to.After(from) {
		return eventlog.Window{}, errors.New("to must be after from")
	}
	return eventlog.Window{
		From:            from,
		To:              to,
		ExcludeWeekends: r.URL.Query().Get("working_days") == "true",
	}, nil
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

func roomFilterFromQuery(r *http.Request) directory.RoomFilter {
	query := r.URL.Query()
	return directory.RoomFilter{
		OrganizationIDs: splitQuery(query.Get("organization_id")),
		SiteIDs:         splitQuery(query.Get("site_id")),
		BuildingIDs:     splitQuery(query.Get("building_id")),
		FloorIDs:        splitQuery(query.Get("floor_id")),
		Search:          query.Get("search"),
	}
}

func splitQuery(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

func writeJSON(w http.ResponseWriter, value any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(value)
}
