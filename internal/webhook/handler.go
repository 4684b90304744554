package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"occupancy-cloud/internal/directory/application/events"
	directory "occupancy-cloud/internal/directory/domain"
	"occupancy-cloud/internal/eventing"
	eventlog "occupancy-cloud/internal/eventlog/domain"
	"occupancy-cloud/internal/observability/metrics"
)

const (
	eventTypeMotion           = "motion"
	eventTypeNetworkStatus    = "networkStatus"
	eventTypeConnectionStatus = "connectionStatus"

	signatureHeader = "x-dt-signature"
)

// DevicePatcher is the slice of the device repository the ingest path uses.
type DevicePatcher interface {
	GetByOEM(ctx context.Context, oem string) (*directory.Device, error)
	ApplyPatchByOEM(ctx context.Context, oem string, patch directory.DevicePatch) (*directory.Device, error)
}

// Publisher forwards domain events to the outbox bus.
type Publisher interface {
	Publish(ctx context.Context, event any) error
}

// Handler receives signed sensor notifications from the data connector.
type Handler struct {
	secret  []byte
	devices DevicePatcher
	events  eventlog.Store
	bus     Publisher
	logger  *log.Logger
}

// NewHandler constructs a webhook handler.
func NewHandler(secret []byte, devices DevicePatcher, events eventlog.Store, bus Publisher, logger *log.Logger) (*Handler, error) {
	if len(secret) == 0 {
		return nil, errors.New("webhook handler: empty secret")
	}
	if devices == nil || events == nil {
		return nil, errors.New("webhook handler: nil dependencies")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{secret: secret, devices: devices, events: events, bus: bus, logger: logger}, nil
}

// notification mirrors the connector's push payload. Only one of the data
// members is set, selected by event.eventType.
type notification struct {
	Event struct {
		EventID   string    `json:"eventId"`
		EventType string    `json:"eventType"`
		Timestamp time.Time `json:"timestamp"`
		Data      struct {
			Motion *struct {
				State      string    `json:"state"`
				UpdateTime time.Time `json:"updateTime"`
			} `json:"motion,omitempty"`
			NetworkStatus *struct {
				SignalStrength int `json:"signalStrength"`
			} `json:"networkStatus,omitempty"`
			ConnectionStatus *struct {
				Connection string `json:"connection"`
			} `json:"connectionStatus,omitempty"`
		} `json:"data"`
	} `json:"event"`
	Metadata struct {
		DeviceID string `json:"deviceId"`
	} `json:"metadata"`
}

// ServeHTTP handles POST /webhook/events.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	start := time.Now()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		metrics.IncWebhookError("read_body")
		metrics.ObserveWebhook("error", time.Since(start))
		http.Error(w, "cannot read body", http.StatusBadRequest)
		return
	}
	if err := VerifySignature(h.secret, r.Header.Get(signatureHeader), body); err != nil {
		h.logger.Printf("webhook: rejected request: %v", err)
		metrics.IncWebhookError("signature")
		metrics.ObserveWebhook("rejected", time.Since(start))
		http.Error(w, "bad signature", http.StatusBadRequest)
		return
	}

	var note notification
	if err := json.Unmarshal(body, &note); err != nil {
		metrics.IncWebhookError("decode")
		metrics.ObserveWebhook("error", time.Since(start))
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	switch err := h.process(r.Context(), note); {
	case err == nil:
		metrics.ObserveWebhook("ok", time.Since(start))
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, directory.ErrNotFound):
		h.logger.Printf("webhook: unknown device oem=%s", note.Metadata.DeviceID)
		metrics.IncWebhookError("unknown_device")
		metrics.ObserveWebhook("not_found", time.Since(start))
		http.Error(w, "unknown device", http.StatusNotFound)
	default:
		h.logger.Printf("webhook: processing failed oem=%s: %v", note.Metadata.DeviceID, err)
		metrics.IncWebhookError("processing")
		metrics.ObserveWebhook("error", time.Since(start))
		http.Error(w, "processing failed", http.StatusInternalServerError)
	}
}

func (h *Handler) process(ctx context.Context, note notification) error {
	switch note.Event.EventType {
	case eventTypeMotion:
		return h.handleMotion(ctx, note)
	case eventTypeNetworkStatus:
		return h.handleNetworkStatus(ctx, note)
	case eventTypeConnectionStatus:
		return h.handleConnectionStatus(ctx, note)
	default:
		// Unrecognized event types are acknowledged and dropped so the
		// connector does not retry them forever.
		return nil
	}
}

func (h *Handler) handleMotion(ctx context.Context, note notification) error {
	if note.Event.Data.Motion == nil {
		return errors.New("motion event without motion data")
	}
	state := directory.DeviceState(note.Event.Data.Motion.State)
	if !state.Valid() {
		return errors.New("unknown motion state " + note.Event.Data.Motion.State)
	}

	previous, err := h.devices.GetByOEM(ctx, note.Metadata.DeviceID)
	if err != nil {
		return err
	}
	if previous == nil {
		return directory.ErrNotFound
	}

	device, err := h.devices.ApplyPatchByOEM(ctx, note.Metadata.DeviceID, directory.DevicePatch{State: &state})
	if err != nil {
		return err
	}

	occurredAt := note.Event.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	occurredAt = occurredAt.UTC()

	eventID := note.Event.EventID
	if eventID == "" {
		eventID = eventing.NewEventID()
	}
	if err := h.events.Append(ctx, eventlog.Event{
		ID:        eventID,
		DeviceID:  device.ID,
		State:     state,
		CreatedAt: occurredAt,
	}); err != nil {
		return err
	}
	metrics.IncEventAppended()

	if h.bus == nil {
		return nil
	}
	ctx = eventing.WithEventID(ctx, eventID)
	return h.bus.Publish(ctx, events.DeviceStateChanged{
		DeviceID:      device.ID,
		DeviceName:    device.Name,
		RoomID:        device.RoomID,
		State:         state,
		PreviousState: previous.State,
		OccurredAt:    occurredAt,
	})
}

func (h *Handler) handleNetworkStatus(ctx context.Context, note notification) error {
	if note.Event.Data.NetworkStatus == nil {
		return errors.New("networkStatus event without data")
	}
	strength := note.Event.Data.NetworkStatus.SignalStrength
	_, err := h.devices.ApplyPatchByOEM(ctx, note.Metadata.DeviceID, directory.DevicePatch{SignalStrength: &strength})
	return err
}

func (h *Handler) handleConnectionStatus(ctx context.Context, note notification) error {
	if note.Event.Data.ConnectionStatus == nil {
		return errors.New("connectionStatus event without data")
	}
	offline := note.Event.Data.ConnectionStatus.Connection == "OFFLINE"
	_, err := h.devices.ApplyPatchByOEM(ctx, note.Metadata.DeviceID, directory.DevicePatch{Offline: &offline})
	return err
}
