package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
)

// HierarchyRepository is a Postgres implementation for the building
// hierarchy: organizations, sites, buildings and floors.
type HierarchyRepository struct {
	db *sql.DB
}

// NewHierarchyRepository constructs a repository.
func NewHierarchyRepository(db *sql.DB) *HierarchyRepository {
	return &HierarchyRepository{db: db}
}

// SaveOrganization upserts an organization.
func (r *HierarchyRepository) SaveOrganization(ctx context.Context, org *directory.Organization) error {
	if r == nil || r.db == nil {
		return errors.New("hierarchy repo: nil db")
	}
	if org == nil || org.ID == "" {
		return errors.New("hierarchy repo: nil organization")
	}
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO organizations (id, name, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name`, org.ID, org.Name, org.CreatedAt)
	return err
}

// GetOrganization loads an organization by id.
func (r *HierarchyRepository) GetOrganization(ctx context.Context, id string) (*directory.Organization, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("hierarchy repo: nil db")
	}
	var org directory.Organization
	err := r.db.QueryRowContext(ctx, `
SELECT id, name, created_at FROM organizations WHERE id = $1 LIMIT 1`, id).
		Scan(&org.ID, &org.Name, &org.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	org.CreatedAt = org.CreatedAt.UTC()
	return &org, nil
}

// ListOrganizations returns all organizations.
func (r *HierarchyRepository) ListOrganizations(ctx context.Context) ([]directory.Organization, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("hierarchy repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM organizations ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []directory.Organization
	for rows.Next() {
		var org directory.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.CreatedAt); err != nil {
			return nil, err
		}
		org.CreatedAt = org.CreatedAt.UTC()
		result = append(result, org)
	}
	return result, rows.Err()
}

// SaveSite upserts a site.
func (r *HierarchyRepository) SaveSite(ctx context.Context, site *directory.Site) error {
	if r == nil || r.db == nil {
		return errors.New("hierarchy repo: nil db")
	}
	if site == nil || site.ID == "" || site.OrganizationID == "" {
		return errors.New("hierarchy repo: nil site")
	}
	if site.CreatedAt.IsZero() {
		site.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sites (id, organization_id, name, created_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name`, site.ID, site.OrganizationID, site.Name, site.CreatedAt)
	return err
}

// ListSites returns sites for an organization.
func (r *HierarchyRepository) ListSites(ctx context.Context, organizationID string) ([]directory.Site, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("hierarchy repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, organization_id, name, created_at
FROM sites
WHERE organization_id = $1
ORDER BY name ASC`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []directory.Site
	for rows.Next() {
		var site directory.Site
		if err := rows.Scan(&site.ID, &site.OrganizationID, &site.Name, &site.CreatedAt); err != nil {
			return nil, err
		}
		site.CreatedAt = site.CreatedAt.UTC()
		result = append(result, site)
	}
	return result, rows.Err()
}

// SaveBuilding upserts a building.
func (r *HierarchyRepository) SaveBuilding(ctx context.Context, building *directory.Building) error {
	if r == nil || r.db == nil {
		return errors.New("hierarchy repo: nil db")
	}
	if building == nil || building.ID == "" || building.SiteID == "" {
		return errors.New("hierarchy repo: nil building")
	}
	if building.CreatedAt.IsZero() {
		building.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO buildings (id, organization_id, site_id, name, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name`,
		building.ID, building.OrganizationID, building.SiteID, building.Name, building.CreatedAt)
	return err
}

// ListBuildings returns buildings for a site.
func (r *HierarchyRepository) ListBuildings(ctx context.Context, siteID string) ([]directory.Building, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("hierarchy repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, organization_id, site_id, name, created_at
FROM buildings
WHERE site_id = $1
ORDER BY name ASC`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []directory.Building
	for rows.Next() {
		var building directory.Building
		if err := rows.Scan(&building.ID, &building.OrganizationID, &building.SiteID, &building.Name, &building.CreatedAt); err != nil {
			return nil, err
		}
		building.CreatedAt = building.CreatedAt.UTC()
		result = append(result, building)
	}
	return result, rows.Err()
}

// SaveFloor upserts a floor.
func (r *HierarchyRepository) SaveFloor(ctx context.Context, floor *directory.Floor) error {
	if r == nil || r.db == nil {
		return errors.New("hierarchy repo: nil db")
	}
	if floor == nil || floor.ID == "" || floor.BuildingID == "" {
		return errors.New("hierarchy repo: nil floor")
	}
	if floor.CreatedAt.IsZero() {
		floor.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO floors (id, organization_id, site_id, building_id, name, code, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id)
DO UPDATE SET name = EXCLUDED.name, code = EXCLUDED.code`,
		floor.ID, floor.OrganizationID, floor.SiteID, floor.BuildingID, floor.Name, floor.Code, floor.CreatedAt)
	return err
}

// ListFloors returns floors for a building.
func (r *HierarchyRepository) ListFloors(ctx context.Context, buildingID string) ([]directory.Floor, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("hierarchy repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, organization_id, site_id, building_id, name, code, created_at
FROM floors
WHERE building_id = $1
ORDER BY name ASC`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []directory.Floor
	for rows.Next() {
		var floor directory.Floor
		if err := rows.Scan(&floor.ID, &floor.OrganizationID, &floor.SiteID, &floor.BuildingID, &floor.Name, &floor.Code, &floor.CreatedAt); err != nil {
			return nil, err
		}
		floor.CreatedAt = floor.CreatedAt.UTC()
		result = append(result, floor)
	}
	return result, rows.Err()
}
