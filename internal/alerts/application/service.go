package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	alerts "occupancy-cloud/internal/alerts/domain"
)

// Repository is the full alert persistence contract.
type Repository interface {
	AlertStore
	Create(ctx context.Context, alert *alerts.Alert) error
	GetByID(ctx context.Context, id string) (*alerts.Alert, error)
	List(ctx context.Context, page, limit int) ([]alerts.Alert, int, error)
	Update(ctx context.Context, alert *alerts.Alert) error
	Delete(ctx context.Context, id string) error
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page         int `json:"page"`
	Limit        int `json:"limit"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
}

// ListResult is a paginated alert listing.
type ListResult struct {
	Results    []alerts.Alert `json:"results"`
	Pagination Pagination     `json:"pagination"`
}

// Service handles alert lifecycle operations.
type Service struct {
	repo  Repository
	clock Clock
}

// ServiceOption customizes the service.
type ServiceOption func(*Service)

// WithServiceClock assigns a clock.
func WithServiceClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewService constructs an alert service.
func NewService(repo Repository, opts ...ServiceOption) (*Service, error) {
	if repo == nil {
		return nil, errors.New("alert service: nil repository")
	}
	service := &Service{repo: repo, clock: systemClock{}}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// CreateAlert validates and stores a new alert. Creation fails with
// ErrConflict when the device already has one; an existing alert is never
// silently overwritten.
func (s *Service) CreateAlert(ctx context.Context, alert alerts.Alert) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alert service: nil service")
	}
	if err := alert.Validate(); err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	alert.ID = newAlertID()
	alert.ConditionStartTime = nil
	alert.Active = false
	alert.CreatedAt = now
	alert.UpdatedAt = now
	if err := s.repo.Create(ctx, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

// GetAlert loads one alert.
func (s *Service) GetAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alert service: nil service")
	}
	if id == "" {
		return nil, alerts.ErrNotFound
	}
	alert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	return alert, nil
}

// ListAlerts returns one page of alerts.
func (s *Service) ListAlerts(ctx context.Context, page, limit int) (*ListResult, error) {
	if s == nil {
		return nil, errors.New("alert service: nil service")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	results, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	totalPages := (total + limit - 1) / limit
	return &ListResult{
		Results: results,
		Pagination: Pagination{
			Page:         page,
			Limit:        limit,
			TotalPages:   totalPages,
			TotalResults: total,
		},
	}, nil
}

// UpdateAlert replaces the alert configuration. The debounce state is
// preserved as stored; only the tracker and scanner mutate it.
func (s *Service) UpdateAlert(ctx context.Context, id string, update alerts.Alert) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alert service: nil service")
	}
	existing, err := s.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	update.ID = existing.ID
	update.DeviceID = existing.DeviceID
	update.ConditionStartTime = existing.ConditionStartTime
	update.Active = existing.Active
	update.CreatedAt = existing.CreatedAt
	if err := update.Validate(); err != nil {
		return nil, err
	}
	update.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, &update); err != nil {
		return nil, err
	}
	return &update, nil
}

// RemoveAlert deletes an alert.
func (s *Service) RemoveAlert(ctx context.Context, id string) error {
	if s == nil {
		return errors.New("alert service: nil service")
	}
	if id == "" {
		return alerts.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

func newAlertID() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf)
	return "alert-" + hex.EncodeToString(buf)
}
