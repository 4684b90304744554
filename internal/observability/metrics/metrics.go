package metrics

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "occupancy_"

	resultSuccess = "success"
)

var (
	registerOnce sync.Once

	webhookRequests *prometheus.CounterVec
	webhookErrors   *prometheus.CounterVec
	webhookLatency  *prometheus.HistogramVec

	alertEventsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	pendingAlerts      prometheus.Gauge

	refreshTotal   *prometheus.CounterVec
	refreshLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	eventsAppended prometheus.Counter
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		webhookRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "webhook_requests_total",
				Help: "Total webhook ingest requests by result",
			},
			[]string{"result"},
		)
		webhookErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "webhook_errors_total",
				Help: "Total webhook ingest errors by reason",
			},
			[]string{"reason"},
		)
		webhookLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "webhook_latency_seconds",
				Help:    "Webhook ingest latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		alertEventsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alert lifecycle events by type",
			},
			[]string{"event"},
		)
		notificationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_notifications_total",
				Help: "Total alert notification dispatches by result",
			},
			[]string{"result"},
		)
		pendingAlerts = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "alerts_pending",
				Help: "Alerts with a running dwell timer",
			},
		)

		refreshTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "room_refresh_total",
				Help: "Total room occupancy refresh cycles by result",
			},
			[]string{"result"},
		)
		refreshLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "room_refresh_latency_seconds",
				Help:    "Room occupancy refresh latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		eventsAppended = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "events_appended_total",
				Help: "Total device state events appended to the log",
			},
		)

		prometheus.MustRegister(
			webhookRequests,
			webhookErrors,
			webhookLatency,
			alertEventsTotal,
			notificationsTotal,
			pendingAlerts,
			refreshTotal,
			refreshLatency,
			exportTotal,
			exportLatency,
			eventsAppended,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveWebhook records webhook request duration and result.
func ObserveWebhook(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if webhookRequests != nil {
		webhookRequests.WithLabelValues(result).Inc()
	}
	if webhookLatency != nil {
		webhookLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncWebhookError increments webhook error counter.
func IncWebhookError(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if webhookErrors != nil {
		webhookErrors.WithLabelValues(reason).Inc()
	}
}

// IncAlertEvent increments alert lifecycle counter.
func IncAlertEvent(event string) {
	if event == "" {
		event = "unknown"
	}
	if alertEventsTotal != nil {
		alertEventsTotal.WithLabelValues(event).Inc()
	}
}

// IncNotification increments notification dispatch counter.
func IncNotification(result string) {
	if result == "" {
		result = resultSuccess
	}
	if notificationsTotal != nil {
		notificationsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveRoomRefresh records refresh cycle latency and result.
func ObserveRoomRefresh(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if refreshTotal != nil {
		refreshTotal.WithLabelValues(result).Inc()
	}
	if refreshLatency != nil {
		refreshLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncEventAppended increments the appended event counter.
func IncEventAppended() {
	if eventsAppended != nil {
		eventsAppended.Inc()
	}
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			var count int
			err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE condition_start_time IS NOT NULL`).Scan(&count)
			cancel()
			if err != nil {
				if logger != nil {
					logger.Printf("metrics: pending alerts sample failed: %v", err)
				}
				continue
			}
			if pendingAlerts != nil {
				pendingAlerts.Set(float64(count))
			}
		}
	}()
}
