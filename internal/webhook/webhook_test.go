package webhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"occupancy-cloud/internal/directory/application/events"
	directory "occupancy-cloud/internal/directory/domain"
	eventlog "occupancy-cloud/internal/eventlog/domain"
)

var testSecret = []byte("connector-secret")

func signBody(t *testing.T, secret []byte, body string) string {
	t.Helper()
	digest := sha256.Sum256([]byte(body))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"checksum_sha256": hex.EncodeToString(digest[:]),
		"exp":             time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"hello":"world"}`)

	if err := VerifySignature(testSecret, signBody(t, testSecret, string(body)), body); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	if err := VerifySignature(testSecret, signBody(t, []byte("wrong"), string(body)), body); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("wrong secret accepted, err=%v", err)
	}
	if err := VerifySignature(testSecret, signBody(t, testSecret, "other body"), body); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("checksum mismatch accepted, err=%v", err)
	}
	if err := VerifySignature(testSecret, "", body); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("empty token accepted, err=%v", err)
	}
}

type stubDevices struct {
	device  *directory.Device
	patched []directory.DevicePatch
}

func (s *stubDevices) GetByOEM(_ context.Context, oem string) (*directory.Device, error) {
	if s.device == nil || s.device.OEM != oem {
		return nil, nil
	}
	copied := *s.device
	return &copied, nil
}

func (s *stubDevices) ApplyPatchByOEM(_ context.Context, oem string, patch directory.DevicePatch) (*directory.Device, error) {
	if s.device == nil || s.device.OEM != oem {
		return nil, directory.ErrNotFound
	}
	s.patched = append(s.patched, patch)
	if patch.State != nil {
		s.device.State = *patch.State
	}
	if patch.SignalStrength != nil {
		s.device.SignalStrength = *patch.SignalStrength
	}
	if patch.Offline != nil {
		s.device.Offline = *patch.Offline
	}
	copied := *s.device
	return &copied, nil
}

type stubEventStore struct {
	appended []eventlog.Event
}

func (s *stubEventStore) Append(_ context.Context, event eventlog.Event) error {
	s.appended = append(s.appended, event)
	return nil
}

func (s *stubEventStore) QueryRange(context.Context, string, eventlog.Window) ([]eventlog.Event, error) {
	return nil, nil
}

type stubBus struct {
	published []any
}

func (s *stubBus) Publish(_ context.Context, event any) error {
	s.published = append(s.published, event)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *stubDevices, *stubEventStore, *stubBus) {
	t.Helper()
	devices := &stubDevices{device: &directory.Device{
		ID:     "dev-1",
		OEM:    "oem-1",
		Name:   "Sensor A",
		RoomID: "room-1",
		State:  directory.StateNoMotionDetected,
	}}
	store := &stubEventStore{}
	bus := &stubBus{}
	handler, err := NewHandler(testSecret, devices, store, bus, log.New(testWriter{t}, "", 0))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, devices, store, bus
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func postSigned(t *testing.T, handler *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/events", strings.NewReader(body))
	req.Header.Set(signatureHeader, signBody(t, testSecret, body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandlerMotionEvent(t *testing.T) {
	handler, devices, store, bus := newTestHandler(t)

	body := `{
		"event": {
			"eventId": "evt-1",
			"eventType": "motion",
			"timestamp": "2026-08-31T10:00:00Z",
			"data": {"motion": {"state": "MOTION_DETECTED"}}
		},
		"metadata": {"deviceId": "oem-1"}
	}`
	rec := postSigned(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if devices.device.State != directory.StateMotionDetected {
		t.Fatalf("device state = %s, want MOTION_DETECTED", devices.device.State)
	}
	if len(store.appended) != 1 {
		t.Fatalf("appended %d events, want 1", len(store.appended))
	}
	event := store.appended[0]
	if event.ID != "evt-1" || event.DeviceID != "dev-1" || event.State != directory.StateMotionDetected {
		t.Fatalf("unexpected event %+v", event)
	}
	if !event.CreatedAt.Equal(time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("event timestamp = %v", event.CreatedAt)
	}
	if len(bus.published) != 1 {
		t.Fatalf("published %d events, want 1", len(bus.published))
	}
	changed, ok := bus.published[0].(events.DeviceStateChanged)
	if !ok {
		t.Fatalf("published %T, want DeviceStateChanged", bus.published[0])
	}
	if changed.PreviousState != directory.StateNoMotionDetected || changed.State != directory.StateMotionDetected {
		t.Fatalf("unexpected transition %+v", changed)
	}
}

func TestHandlerNetworkStatusPatchesOnly(t *testing.T) {
	handler, devices, store, bus := newTestHandler(t)

	body := `{
		"event": {
			"eventType": "networkStatus",
			"data": {"networkStatus": {"signalStrength": 87}}
		},
		"metadata": {"deviceId": "oem-1"}
	}`
	rec := postSigned(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if devices.device.SignalStrength != 87 {
		t.Fatalf("signal strength = %d, want 87", devices.device.SignalStrength)
	}
	if len(store.appended) != 0 || len(bus.published) != 0 {
		t.Fatalf("networkStatus must not append or publish")
	}
}

func TestHandlerConnectionStatusOffline(t *testing.T) {
	handler, devices, _, _ := newTestHandler(t)

	body := `{
		"event": {
			"eventType": "connectionStatus",
			"data": {"connectionStatus": {"connection": "OFFLINE"}}
		},
		"metadata": {"deviceId": "oem-1"}
	}`
	rec := postSigned(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !devices.device.Offline {
		t.Fatal("device not marked offline")
	}
}

func TestHandlerBadSignatureRejected(t *testing.T) {
	handler, _, store, _ := newTestHandler(t)

	body := `{"event": {"eventType": "motion", "data": {"motion": {"state": "MOTION_DETECTED"}}}, "metadata": {"deviceId": "oem-1"}}`
	req := httptest.NewRequest(http.MethodPost, "/webhook/events", strings.NewReader(body))
	req.Header.Set(signatureHeader, signBody(t, testSecret, "tampered body"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(store.appended) != 0 {
		t.Fatal("rejected request must not append events")
	}
}

func TestHandlerUnknownDevice(t *testing.T) {
	handler, _, _, _ := newTestHandler(t)

	body := `{
		"event": {
			"eventType": "motion",
			"data": {"motion": {"state": "MOTION_DETECTED"}}
		},
		"metadata": {"deviceId": "oem-unknown"}
	}`
	rec := postSigned(t, handler, body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerUnknownEventTypeAcknowledged(t *testing.T) {
	handler, _, store, bus := newTestHandler(t)

	body := `{"event": {"eventType": "temperature", "data": {}}, "metadata": {"deviceId": "oem-1"}}`
	rec := postSigned(t, handler, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(store.appended) != 0 || len(bus.published) != 0 {
		t.Fatal("unknown event type must be dropped")
	}
}
