package application

import (
	"context"
	"errors"
	"sync"
	"time"

	alerts "occupancy-cloud/internal/alerts/domain"
	directory "occupancy-cloud/internal/directory/domain"
	"occupancy-cloud/internal/observability/metrics"
)

// Mailer delivers one alert notification to a recipient list.
type Mailer interface {
	SendDeviceAlert(ctx context.Context, recipients []string, deviceName, state, timestamp string) error
}

// DeviceReader loads device metadata for notification content.
type DeviceReader interface {
	GetDevice(ctx context.Context, id string) (*directory.Device, error)
}

// AlertEvent is a lifecycle update observable by stream subscribers.
type AlertEvent struct {
	Type  string       `json:"type"`
	Alert alerts.Alert `json:"alert"`
}

// AlertEventSink receives alert lifecycle events.
type AlertEventSink interface {
	Notify(ctx context.Context, event AlertEvent)
}

const notifyTimestampLayout = "Jan 2, 2006 15:04 MST"

// Scanner runs on a fixed tick and fires alerts whose condition has been
// continuously true for at least the configured dwell. Each activation is
// notified at most once: the alert is marked fired before dispatching, the
// debounce state is cleared after the dispatch attempt, and an alert found
// already fired only retries the clear. A dispatch failure still consumes
// the activation; it is logged and counted, never retried.
type Scanner struct {
	store       AlertStore
	devices     DeviceReader
	mailer      Mailer
	sink        AlertEventSink
	clock       Clock
	logger      Logger
	maxAttempts int
	backoff     time.Duration
}

// ScannerOption customizes the scanner.
type ScannerOption func(*Scanner)

// WithScannerClock assigns a clock.
func WithScannerClock(clock Clock) ScannerOption {
	return func(s *Scanner) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithScannerSink attaches a lifecycle event sink.
func WithScannerSink(sink AlertEventSink) ScannerOption {
	return func(s *Scanner) {
		s.sink = sink
	}
}

// WithScannerRetry bounds debounce-write retries.
func WithScannerRetry(attempts int, backoff time.Duration) ScannerOption {
	return func(s *Scanner) {
		if attempts > 0 {
			s.maxAttempts = attempts
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// NewScanner constructs a scanner.
func NewScanner(store AlertStore, devices DeviceReader, mailer Mailer, logger Logger, opts ...ScannerOption) (*Scanner, error) {
	if store == nil {
		return nil, errors.New("alert scanner: nil store")
	}
	if devices == nil {
		return nil, errors.New("alert scanner: nil device reader")
	}
	if mailer == nil {
		return nil, errors.New("alert scanner: nil mailer")
	}
	if logger == nil {
		return nil, errors.New("alert scanner: nil logger")
	}
	scanner := &Scanner{
		store:       store,
		devices:     devices,
		mailer:      mailer,
		clock:       systemClock{},
		logger:      logger,
		maxAttempts: 3,
		backoff:     100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(scanner)
	}
	return scanner, nil
}

// Tick scans pending alerts once. Alerts are evaluated concurrently with a
// join before returning; one alert's failure never blocks the others, and
// the batch is best-effort rather than atomic.
func (s *Scanner) Tick(ctx context.Context, now time.Time) error {
	if s == nil {
		return errors.New("alert scanner: nil scanner")
	}
	pending, err := s.store.FindPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	for _, alert := range pending {
		if !alert.Enabled || !alert.DwellSatisfied(now) {
			continue
		}
		wg.Add(1)
		go func(alert alerts.Alert) {
			defer wg.Done()
			s.fire(ctx, alert, now)
		}(alert)
	}
	wg.Wait()
	return nil
}

// Run drives Tick on the given period until the context is cancelled.
func (s *Scanner) Run(ctx context.Context, period time.Duration) {
	if s == nil || period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case tick := <-ticker.C:
			if err := s.Tick(ctx, tick.UTC()); err != nil {
				s.logger.Printf("alert scanner: tick error: %v", err)
			}
		}
	}
}

func (s *Scanner) fire(ctx context.Context, alert alerts.Alert, now time.Time) {
	// An alert still marked fired means an earlier clear failed after the
	// notification went out. Retry only the clear, never the dispatch.
	if alert.Active {
		s.clear(ctx, alert)
		return
	}

	// Mark the alert fired before dispatching. If this write cannot be
	// completed the alert stays pending and the next tick retries.
	if err := s.writeDebounce(ctx, alert.ID, alert.ConditionStartTime, true); err != nil {
		s.logger.Printf("alert scanner: alert %s mark fired failed: %v", alert.ID, err)
		return
	}
	alert.Active = true
	metrics.IncAlertEvent("fired")
	if s.sink != nil {
		s.sink.Notify(ctx, AlertEvent{Type: "fired", Alert: alert})
	}

	deviceName := alert.DeviceID
	state := string(alert.Trigger.State)
	if device, err := s.devices.GetDevice(ctx, alert.DeviceID); err == nil && device != nil {
		deviceName = device.Name
	}

	if err := s.mailer.SendDeviceAlert(ctx, alert.Recipients, deviceName, state, now.UTC().Format(notifyTimestampLayout)); err != nil {
		s.logger.Printf("alert scanner: alert %s notification failed: %v", alert.ID, err)
		metrics.IncNotification("error")
	} else {
		metrics.IncNotification("success")
	}

	// The activation is consumed regardless of the dispatch outcome.
	s.clear(ctx, alert)
}

func (s *Scanner) clear(ctx context.Context, alert alerts.Alert) {
	if err := s.writeDebounce(ctx, alert.ID, nil, false); err != nil {
		s.logger.Printf("alert scanner: alert %s debounce clear failed, retrying next tick: %v", alert.ID, err)
		metrics.IncAlertEvent("clear_failed")
		return
	}
	metrics.IncAlertEvent("cleared")
	if s.sink != nil {
		alert.ConditionStartTime = nil
		alert.Active = false
		s.sink.Notify(ctx, AlertEvent{Type: "cleared", Alert: alert})
	}
}

func (s *Scanner) writeDebounce(ctx context.Context, alertID string, start *time.Time, active bool) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		lastErr = s.store.UpdateDebounceState(ctx, alertID, start, active)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, alerts.ErrNotFound) {
			return lastErr
		}
		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.backoff * time.Duration(attempt)):
		}
	}
	return lastErr
}
