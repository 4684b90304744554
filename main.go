package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"time"

	alertapp "occupancy-cloud/internal/alerts/application"
	alertrepo "occupancy-cloud/internal/alerts/infrastructure/postgres"
	alerthttp "occupancy-cloud/internal/alerts/interfaces/http"
	"occupancy-cloud/internal/alerts/notify"
	"occupancy-cloud/internal/auth"
	deviceevents "occupancy-cloud/internal/directory/application/events"
	directoryrepo "occupancy-cloud/internal/directory/infrastructure/postgres"
	directoryhttp "occupancy-cloud/internal/directory/interfaces/http"
	"occupancy-cloud/internal/eventing"
	"occupancy-cloud/internal/eventing/eventbus"
	eventingrepo "occupancy-cloud/internal/eventing/infrastructure/postgres"
	eventlogrepo "occupancy-cloud/internal/eventlog/infrastructure/postgres"
	eventloghttp "occupancy-cloud/internal/eventlog/interfaces/http"
	"occupancy-cloud/internal/observability/metrics"
	occupancyapp "occupancy-cloud/internal/occupancy/application"
	occupancyhttp "occupancy-cloud/internal/occupancy/interfaces/http"
	"occupancy-cloud/internal/webhook"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)

	alertRepo := alertrepo.NewAlertRepository(db)
	eventRepo := eventlogrepo.NewEventRepository(db)
	deviceRepo := directoryrepo.NewDeviceRepository(db)
	roomRepo := directoryrepo.NewRoomRepository(db)
	hierarchyRepo := directoryrepo.NewHierarchyRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(deviceevents.DeviceStateChanged{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, cfg.OrgID, baseBus)

	tracker, err := alertapp.NewTracker(alertRepo, logger)
	if err != nil {
		logger.Fatalf("alert tracker error: %v", err)
	}
	alertapp.WireAlertEventBus(baseBus, tracker, processedStore)

	mailCfg, err := notify.LoadConfig()
	if err != nil {
		logger.Fatalf("mail config error: %v", err)
	}
	mailer, err := notify.NewMailChannel(mailCfg)
	if err != nil {
		logger.Fatalf("mail channel error: %v", err)
	}

	alertBroker := alerthttp.NewSSEBroker()
	scanner, err := alertapp.NewScanner(alertRepo, deviceRepo, mailer, logger, alertapp.WithScannerSink(alertBroker))
	if err != nil {
		logger.Fatalf("alert scanner error: %v", err)
	}
	go scanner.Run(context.Background(), cfg.AlertScanPeriod)

	occupancyService, err := occupancyapp.NewService(eventRepo, roomRepo, deviceRepo, logger)
	if err != nil {
		logger.Fatalf("occupancy service error: %v", err)
	}
	refresher, err := occupancyapp.NewRefresher(occupancyService, roomRepo, logger)
	if err != nil {
		logger.Fatalf("occupancy refresher error: %v", err)
	}
	go refresher.Run(context.Background(), cfg.RefreshPeriod)

	alertService, err := alertapp.NewService(alertRepo)
	if err != nil {
		logger.Fatalf("alert service error: %v", err)
	}
	alertHandler, err := alerthttp.NewHandler(alertService)
	if err != nil {
		logger.Fatalf("alert handler error: %v", err)
	}
	directoryHandler, err := directoryhttp.NewHandler(roomRepo, deviceRepo)
	if err != nil {
		logger.Fatalf("directory handler error: %v", err)
	}
	hierarchyHandler, err := directoryhttp.NewHierarchyHandler(hierarchyRepo)
	if err != nil {
		logger.Fatalf("hierarchy handler error: %v", err)
	}
	eventHandler, err := eventloghttp.NewHandler(eventRepo)
	if err != nil {
		logger.Fatalf("event handler error: %v", err)
	}
	occupancyHandler, err := occupancyhttp.NewHandler(occupancyService, refresher)
	if err != nil {
		logger.Fatalf("occupancy handler error: %v", err)
	}
	webhookHandler, err := webhook.NewHandler([]byte(cfg.WebhookSecret), deviceRepo, eventRepo, publisher, logger)
	if err != nil {
		logger.Fatalf("webhook handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/webhook/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/webhook/events", webhookHandler)
	mux.Handle("/api/v1/alerts", alertHandler)
	mux.Handle("/api/v1/alerts/stream", alerthttp.NewStreamHandler(alertBroker))
	mux.Handle("/api/v1/alerts/", alertHandler)
	mux.Handle("/api/v1/devices", directoryHandler)
	mux.Handle("/api/v1/devices/", directoryHandler)
	mux.Handle("/api/v1/rooms", directoryHandler)
	mux.Handle("/api/v1/rooms/", directoryHandler)
	mux.Handle("/api/v1/organizations", hierarchyHandler)
	mux.Handle("/api/v1/organizations/", hierarchyHandler)
	mux.Handle("/api/v1/sites", hierarchyHandler)
	mux.Handle("/api/v1/buildings", hierarchyHandler)
	mux.Handle("/api/v1/floors", hierarchyHandler)
	mux.Handle("/api/v1/events", eventHandler)
	mux.Handle("/api/v1/events/export.csv", eventHandler)
	mux.Handle("/api/v1/events/export.xlsx", eventHandler)
	mux.Handle("/api/v1/occupancy/", occupancyHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL     string
	HTTPAddr        string
	OrgID           string
	JWTSecret       string
	WebhookSecret   string
	AlertScanPeriod time.Duration
	RefreshPeriod   time.Duration
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:     getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		OrgID:           getenvDefault("ORG_ID", "org-demo"),
		JWTSecret:       getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		WebhookSecret:   getenvDefault("DATA_CONNECTOR_SECRET", ""),
		AlertScanPeriod: getenvDuration("ALERT_SCAN_PERIOD", time.Minute),
		RefreshPeriod:   getenvDuration("OCCUPANCY_REFRESH_PERIOD", time.Hour),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	if cfg.WebhookSecret == "" {
		log.Fatal("DATA_CONNECTOR_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
