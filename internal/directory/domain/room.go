package directory

import "time"

// Room is the unit occupancy is computed for. HoursPerDay declares the
// opening hours occupancy percentages are measured against. Occupancy is
// the cached percentage written back by the hourly refresh cycle.
type Room struct {
	ID                 string    `json:"id"`
	OrganizationID     string    `json:"organization_id"`
	SiteID             string    `json:"site_id"`
	BuildingID         string    `json:"building_id"`
	FloorID            string    `json:"floor_id"`
	Name               string    `json:"name"`
	Function           string    `json:"function"`
	Department         string    `json:"department"`
	Division           string    `json:"division"`
	Cluster            string    `json:"cluster"`
	NetUseableArea     float64   `json:"net_useable_area"`
	MaxDeskOccupation  int       `json:"max_desk_occupation"`
	NumWorkstations    int       `json:"num_workstations"`
	HoursPerDay        float64   `json:"hours_per_day"`
	Occupancy          float64   `json:"occupancy"`
	OccupancyUpdatedAt time.Time `json:"occupancy_updated_at,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// RoomFilter narrows room listings by hierarchy.
type RoomFilter struct {
	OrganizationIDs []string
	SiteIDs         []string
	BuildingIDs     []string
	FloorIDs        []string
	Search          string
}
