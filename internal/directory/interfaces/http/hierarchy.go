package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	directory "occupancy-cloud/internal/directory/domain"
	directorypg "occupancy-cloud/internal/directory/infrastructure/postgres"
)

// HierarchyHandler provides the building hierarchy endpoints.
type HierarchyHandler struct {
	repo *directorypg.HierarchyRepository
}

// NewHierarchyHandler constructs a hierarchy handler.
func NewHierarchyHandler(repo *directorypg.HierarchyRepository) (*HierarchyHandler, error) {
	if repo == nil {
		return nil, errors.New("hierarchy handler: nil repository")
	}
	return &HierarchyHandler{repo: repo}, nil
}

// ServeHTTP handles organizations, sites, buildings and floors.
func (h *HierarchyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/organizations":
		h.handleOrganizations(w, r)
	case strings.HasPrefix(r.URL.Path, "/api/v1/organizations/"):
		h.handleOrganizationItem(w, r)
	case r.URL.Path == "/api/v1/sites":
		h.handleSites(w, r)
	case r.URL.Path == "/api/v1/buildings":
		h.handleBuildings(w, r)
	case r.URL.Path == "/api/v1/floors":
		h.handleFloors(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *HierarchyHandler) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		orgs, err := h.repo.ListOrganizations(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"organizations": orgs})
	case http.MethodPost:
		var org directory.Organization
		if err := json.NewDecoder(r.Body).Decode(&org); err != nil || org.ID == "" {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.repo.SaveOrganization(r.Context(), &org); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, org)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *HierarchyHandler) handleOrganizationItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/organizations/")
	if id == "" || strings.Contains(id, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	org, err := h.repo.GetOrganization(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if org == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (h *HierarchyHandler) handleSites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		orgID := r.URL.Query().Get("organization_id")
		if orgID == "" {
			http.Error(w, "organization_id is required", http.StatusBadRequest)
			return
		}
		sites, err := h.repo.ListSites(r.Context(), orgID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
	case http.MethodPost:
		var site directory.Site
		if err := json.NewDecoder(r.Body).Decode(&site); err != nil || site.ID == "" {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.repo.SaveSite(r.Context(), &site); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, site)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *HierarchyHandler) handleBuildings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		siteID := r.URL.Query().Get("site_id")
		if siteID == "" {
			http.Error(w, "site_id is required", http.StatusBadRequest)
			return
		}
		buildings, err := h.repo.ListBuildings(r.Context(), siteID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"buildings": buildings})
	case http.MethodPost:
		var building directory.Building
		if err := json.NewDecoder(r.Body).Decode(&building); err != nil || building.ID == "" {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.repo.SaveBuilding(r.Context(), &building); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, building)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *HierarchyHandler) handleFloors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		buildingID := r.URL.Query().Get("building_id")
		if buildingID == "" {
			http.Error(w, "building_id is required", http.StatusBadRequest)
			return
		}
		floors, err := h.repo.ListFloors(r.Context(), buildingID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"floors": floors})
	case http.MethodPost:
		var floor directory.Floor
		if err := json.NewDecoder(r.Body).Decode(&floor); err != nil || floor.ID == "" {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.repo.SaveFloor(r.Context(), &floor); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, floor)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}
