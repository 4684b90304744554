package application

import (
	"context"
	"errors"
	"time"

	directory "occupancy-cloud/internal/directory/domain"
	eventlog "occupancy-cloud/internal/eventlog/domain"
	"occupancy-cloud/internal/observability/metrics"
)

// Refresher recomputes every room's today-so-far occupancy on a fixed
// period and writes the result back to the directory.
type Refresher struct {
	service *Service
	rooms   RoomStore
	clock   Clock
	logger  Logger
}

// RefresherOption customizes the refresher.
type RefresherOption func(*Refresher)

// WithRefresherClock assigns a clock.
func WithRefresherClock(clock Clock) RefresherOption {
	return func(r *Refresher) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRefresher constructs a refresher.
func NewRefresher(service *Service, rooms RoomStore, logger Logger, opts ...RefresherOption) (*Refresher, error) {
	if service == nil {
		return nil, errors.New("occupancy refresher: nil service")
	}
	if rooms == nil {
		return nil, errors.New("occupancy refresher: nil room store")
	}
	if logger == nil {
		return nil, errors.New("occupancy refresher: nil logger")
	}
	refresher := &Refresher{
		service: service,
		rooms:   rooms,
		clock:   systemClock{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(refresher)
	}
	return refresher, nil
}

// RefreshAll recomputes occupancy for all rooms from midnight UTC to now.
// One room's failure is logged and skipped; the cycle continues.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	if r == nil {
		return errors.New("occupancy refresher: nil refresher")
	}
	started := time.Now()
	now := r.clock.Now().UTC()
	window := eventlog.Window{
		From: now.Truncate(24 * time.Hour),
		To:   now,
	}

	rooms, err := r.rooms.ListRooms(ctx, directory.RoomFilter{})
	if err != nil {
		metrics.ObserveRoomRefresh("error", time.Since(started))
		return err
	}

	failed := 0
	for _, room := range rooms {
		result, err := r.service.ComputeRoomOccupancy(ctx, room.ID, window)
		if err != nil {
			r.logger.Printf("occupancy refresher: room %s compute failed: %v", room.ID, err)
			failed++
			continue
		}
		if err := r.rooms.SetRoomOccupancy(ctx, room.ID, result.Percentage, now); err != nil {
			r.logger.Printf("occupancy refresher: room %s write failed: %v", room.ID, err)
			failed++
		}
	}

	result := "success"
	if failed > 0 {
		result = "partial"
	}
	metrics.ObserveRoomRefresh(result, time.Since(started))
	r.logger.Printf("occupancy refresher: refreshed %d rooms, %d failed", len(rooms)-failed, failed)
	return nil
}

// Run drives RefreshAll on the given period until the context is cancelled.
func (r *Refresher) Run(ctx context.Context, period time.Duration) {
	if r == nil || period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RefreshAll(ctx); err != nil {
				r.logger.Printf("occupancy refresher: cycle error: %v", err)
			}
		}
	}
}
