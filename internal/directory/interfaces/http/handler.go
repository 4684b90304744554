package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
	directorypg "occupancy-cloud/internal/directory/infrastructure/postgres"
	occupancy "occupancy-cloud/internal/occupancy/domain"
)

// Handler provides directory HTTP endpoints for rooms and devices.
type Handler struct {
	rooms   *directorypg.RoomRepository
	devices *directorypg.DeviceRepository
}

// NewHandler constructs a handler.
func NewHandler(rooms *directorypg.RoomRepository, devices *directorypg.DeviceRepository) (*Handler, error) {
	if rooms == nil {
		return nil, errors.New("directory handler: nil room repository")
	}
	if devices == nil {
		return nil, errors.New("directory handler: nil device repository")
	}
	return &Handler{rooms: rooms, devices: devices}, nil
}

// ServeHTTP handles /api/v1/rooms and /api/v1/devices subtrees.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/rooms":
		h.handleRooms(w, r)
	case r.URL.Path == "/api/v1/rooms/stats":
		h.handleRoomStats(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/rooms/"):
		h.handleRoomItem(w, r)
	case r.URL.Path == "/api/v1/devices":
		h.handleDevices(w, r)
	case r.URL.Path == "/api/v1/devices/stats":
		h.handleDeviceStats(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/devices/"):
		h.handleDeviceItem(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleRooms(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rooms, err := h.rooms.ListRooms(r.Context(), roomFilterFromQuery(r))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rooms": rooms})
	case http.MethodPost:
		var room directory.Room
		if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.rooms.Create(r.Context(), &room); err != nil {
			respondDirectoryError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, room)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleRoomItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/rooms/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		room, err := h.rooms.GetRoom(r.Context(), id)
		if err != nil {
			respondDirectoryError(w, err)
			return
		}
		if room == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, room)
	case http.MethodPut:
		var room directory.Room
		if err := json.NewDecoder(r.Body).Decode(&room); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		room.ID = id
		if err := h.rooms.Update(r.Context(), &room); err != nil {
			respondDirectoryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, room)
	case http.MethodDelete:
		if err := h.rooms.Delete(r.Context(), id); err != nil {
			respondDirectoryError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RoomStats summarizes the portfolio the way facility dashboards expect:
// totals, area, capacity, band counts, and per-group room counts.
type RoomStats struct {
	Rooms             int            `json:"rooms"`
	TotalArea         float64        `json:"total_area"`
	TotalWorkstations int            `json:"total_workstations"`
	MaxDeskOccupation int            `json:"max_desk_occupation"`
	Red               int            `json:"red"`
	Amber             int            `json:"amber"`
	Green             int            `json:"green"`
	ByFunction        map[string]int `json:"by_function,omitempty"`
	ByDepartment      map[string]int `json:"by_department,omitempty"`
}

func (h *Handler) handleRoomStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rooms, err := h.rooms.ListRooms(r.Context(), roomFilterFromQuery(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats := RoomStats{
		Rooms:        len(rooms),
		ByFunction:   make(map[string]int),
		ByDepartment: make(map[string]int),
	}
	for _, room := range rooms {
		stats.TotalArea += room.NetUseableArea
		stats.TotalWorkstations += room.NumWorkstations
		stats.MaxDeskOccupation += room.MaxDeskOccupation
		switch occupancy.Classify(room.Occupancy) {
		case occupancy.BandRed:
			stats.Red++
		case occupancy.BandAmber:
			stats.Amber++
		case occupancy.BandGreen:
			stats.Green++
		}
		if room.Function != "" {
			stats.ByFunction[room.Function]++
		}
		if room.Department != "" {
			stats.ByDepartment[room.Department]++
		}
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleDevices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		page := parseIntQuery(r, "page", 1)
		limit := parseIntQuery(r, "limit", 10)
		devices, total, err := h.devices.List(r.Context(), page, limit, r.URL.Query().Get("search"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"devices": devices,
			"total":   total,
			"page":    page,
			"limit":   limit,
		})
	case http.MethodPost:
		var device directory.Device
		if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		now := time.Now().UTC()
		device.CreatedAt = now
		device.UpdatedAt = now
		if err := h.devices.Create(r.Context(), &device); err != nil {
			respondDirectoryError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, device)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleDeviceItem(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	switch r.Method {
	case http.MethodGet:
		device, err := h.devices.GetDevice(r.Context(), id)
		if err != nil {
			respondDirectoryError(w, err)
			return
		}
		if device == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, device)
	case http.MethodPut:
		var device directory.Device
		if err := json.NewDecoder(r.Body).Decode(&device); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		device.ID = id
		if err := h.devices.Update(r.Context(), &device); err != nil {
			respondDirectoryError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, device)
	case http.MethodDelete:
		if err := h.devices.Delete(r.Context(), id); err != nil {
			respondDirectoryError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleDeviceStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := h.devices.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func respondDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, directory.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
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
