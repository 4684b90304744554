package application

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	alerts "occupancy-cloud/internal/alerts/domain"
)

type memRepo struct {
	*memStore
}

func newMemRepo(list ...alerts.Alert) *memRepo {
	return &memRepo{memStore: newMemStore(list...)}
}

func (r *memRepo) Create(_ context.Context, alert *alerts.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.alerts {
		if existing.DeviceID == alert.DeviceID {
			return alerts.ErrConflict
		}
	}
	copied := *alert
	r.alerts[copied.ID] = &copied
	return nil
}

func (r *memRepo) GetByID(_ context.Context, id string) (*alerts.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, nil
	}
	copied := *alert
	return &copied, nil
}

func (r *memRepo) List(_ context.Context, page, limit int) ([]alerts.Alert, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []alerts.Alert
	for _, alert := range r.alerts {
		all = append(all, *alert)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	offset := (page - 1) * limit
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memRepo) Update(_ context.Context, alert *alerts.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[alert.ID]; !ok {
		return alerts.ErrNotFound
	}
	copied := *alert
	r.alerts[copied.ID] = &copied
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[id]; !ok {
		return alerts.ErrNotFound
	}
	delete(r.alerts, id)
	return nil
}

func TestServiceCreateAlert(t *testing.T) {
	repo := newMemRepo()
	service, err := NewService(repo)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	created, err := service.CreateAlert(context.Background(), motionAlert())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("created alert has no id")
	}
	if created.ConditionStartTime != nil || created.Active {
		t.Fatal("new alert must start with idle debounce state")
	}
}

func TestServiceCreateRejectsSecondAlertPerDevice(t *testing.T) {
	repo := newMemRepo()
	service, _ := NewService(repo)

	if _, err := service.CreateAlert(context.Background(), motionAlert()); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := service.CreateAlert(context.Background(), motionAlert()); !errors.Is(err, alerts.ErrConflict) {
		t.Fatalf("second create err = %v, want ErrConflict", err)
	}
}

func TestServiceCreateValidates(t *testing.T) {
	repo := newMemRepo()
	service, _ := NewService(repo)

	bad := motionAlert()
	bad.Recipients = nil
	if _, err := service.CreateAlert(context.Background(), bad); !errors.Is(err, alerts.ErrValidation) {
		t.Fatalf("create err = %v, want ErrValidation", err)
	}
}

func TestServiceUpdatePreservesDebounceState(t *testing.T) {
	existing := motionAlert()
	start := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	existing.ConditionStartTime = &start
	existing.Active = true
	repo := newMemRepo(existing)
	service, _ := NewService(repo)

	update := motionAlert()
	update.Trigger.DurationMinutes = 30
	updated, err := service.UpdateAlert(context.Background(), existing.ID, update)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Trigger.DurationMinutes != 30 {
		t.Fatalf("duration = %d, want 30", updated.Trigger.DurationMinutes)
	}
	if updated.ConditionStartTime == nil || !updated.ConditionStartTime.Equal(start) || !updated.Active {
		t.Fatalf("update mutated debounce state: %+v", updated)
	}
}

func TestServiceUpdateUnknownAlert(t *testing.T) {
	service, _ := NewService(newMemRepo())
	if _, err := service.UpdateAlert(context.Background(), "missing", motionAlert()); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("update err = %v, want ErrNotFound", err)
	}
}

func TestServiceListPagination(t *testing.T) {
	var seed []alerts.Alert
	for i := 0; i < 25; i++ {
		alert := motionAlert()
		alert.ID = alertID(i)
		alert.DeviceID = "dev-" + alert.ID
		seed = append(seed, alert)
	}
	service, _ := NewService(newMemRepo(seed...))

	result, err := service.ListAlerts(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Results) != 10 {
		t.Fatalf("page size = %d, want 10", len(result.Results))
	}
	if result.Pagination.TotalResults != 25 || result.Pagination.TotalPages != 3 {
		t.Fatalf("pagination = %+v", result.Pagination)
	}

	// Out-of-range values clamp to defaults.
	clamped, err := service.ListAlerts(context.Background(), -1, 500)
	if err != nil {
		t.Fatalf("clamped list: %v", err)
	}
	if clamped.Pagination.Page != 1 || clamped.Pagination.Limit != 10 {
		t.Fatalf("clamped pagination = %+v", clamped.Pagination)
	}
}

func TestServiceGetAndRemove(t *testing.T) {
	existing := motionAlert()
	service, _ := NewService(newMemRepo(existing))

	if _, err := service.GetAlert(context.Background(), existing.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := service.GetAlert(context.Background(), "missing"); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("get missing err = %v, want ErrNotFound", err)
	}
	if err := service.RemoveAlert(context.Background(), existing.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := service.GetAlert(context.Background(), existing.ID); !errors.Is(err, alerts.ErrNotFound) {
		t.Fatalf("get removed err = %v, want ErrNotFound", err)
	}
}

func alertID(i int) string {
	return "alert-" + string(rune('a'+i/10)) + string(rune('0'+i%10))
}
