package directory

import "time"

// Organization is the root of the building hierarchy.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Site belongs to an organization.
type Site struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Building belongs to a site.
type Building struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	SiteID         string    `json:"site_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}

// Floor belongs to a building.
type Floor struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	SiteID         string    `json:"site_id"`
	BuildingID     string    `json:"building_id"`
	Name           string    `json:"name"`
	Code           string    `json:"code"`
	CreatedAt      time.Time `json:"created_at"`
}
