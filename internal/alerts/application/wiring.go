package application

import (
	"context"

	deviceevents "occupancy-cloud/internal/directory/application/events"
	"occupancy-cloud/internal/eventing"
	"occupancy-cloud/internal/eventing/eventbus"
)

// WireAlertEventBus registers the tracker on the event bus. This is the
// in-process wiring for the alerts context.
func WireAlertEventBus(bus eventbus.EventBus, tracker *Tracker, processed eventing.ProcessedStore) {
	if bus == nil || tracker == nil {
		return
	}

	eventing.Subscribe(bus, eventbus.EventTypeOf[deviceevents.DeviceStateChanged](), "alerts.tracker", func(ctx context.Context, event any) error {
		evt, ok := event.(deviceevents.DeviceStateChanged)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		return tracker.HandleDeviceStateChanged(ctx, evt)
	}, processed)
}
