// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/bookpro/internal/api"
	"github.com/tomtom215/bookpro/internal/audit"
	"github.com/tomtom215/bookpro/internal/auth"
	"github.com/tomtom215/bookpro/internal/authz"
	"github.com/tomtom215/bookpro/internal/availability"
	"github.com/tomtom215/bookpro/internal/billing"
	"github.com/tomtom215/bookpro/internal/booking"
	"github.com/tomtom215/bookpro/internal/catalog"
	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/media"
	"github.com/tomtom215/bookpro/internal/notify"
	"github.com/tomtom215/bookpro/internal/supervisor"
	"github.com/tomtom215/bookpro/internal/supervisor/services"
	ws "github.com/tomtom215/bookpro/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("BookPro failed")
	}
	logging.Info().Msg("Application stopped gracefully")
}

//nolint:gocyclo // Sequential wiring of every component
func run(cfg *config.Config) error {
	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Str("events_backend", cfg.Events.Backend).
		Bool("billing", cfg.Stripe.Enabled()).
		Msg("Starting BookPro with supervisor tree")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Strs("origins", cfg.Security.CORSOrigins).Msg("CORS allows every origin in production")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// === STORAGE ===

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	// === AUTHENTICATION ===

	revoked, err := auth.NewRevocationStore(cfg.Sessions)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer func() {
		if err := revoked.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing session store")
		}
	}()

	tokens, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("initialize JWT manager: %w", err)
	}
	authSvc, err := auth.NewService(db, tokens, revoked, auth.Config{
		LoginPerMinute: cfg.Security.LoginRatePerMin,
	})
	if err != nil {
		return fmt.Errorf("initialize auth service: %w", err)
	}

	if cfg.Security.AdminEmail != "" && cfg.Security.AdminPassword != "" {
		if _, err := authSvc.CreateAdmin(ctx, cfg.Security.AdminEmail, "Administrator", cfg.Security.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		logging.Info().Str("email", cfg.Security.AdminEmail).Msg("Admin account ensured")
	}

	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{
		ModelPath:  cfg.Security.CasbinModelPath,
		PolicyPath: cfg.Security.CasbinPolicyPath,
	})
	if err != nil {
		return fmt.Errorf("initialize RBAC enforcer: %w", err)
	}
	authorizer := authz.NewAuthorizer(enforcer, db)

	// === EVENTS ===

	bus, err := events.NewBus(cfg.Events)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	logging.Info().Str("backend", bus.Backend()).Msg("Event bus ready")

	// === DOMAIN SERVICES ===

	slots := availability.NewService(db, availability.Config{
		SlotStep:     cfg.Booking.SlotStep,
		MinNotice:    cfg.Booking.MinNotice,
		MaxAdvance:   cfg.Booking.MaxAdvance,
		MaxRangeDays: cfg.Booking.MaxRangeDays,
		CacheTTL:     cfg.Booking.SlotCacheTTL,
	})
	defer slots.Close()

	var gateway billing.Gateway
	if cfg.Stripe.Enabled() {
		stripeGateway := billing.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Timeout)
		gateway = billing.NewBreakerGateway(stripeGateway, cfg.Stripe.Timeout)
	} else {
		logging.Warn().Msg("Stripe is not configured; paid plans and online payments are disabled")
	}
	billingSvc := billing.NewService(db, gateway, bus, billing.Config{
		StarterPriceID:  cfg.Stripe.StarterPriceID,
		ProPriceID:      cfg.Stripe.ProPriceID,
		PublicURL:       cfg.Server.PublicURL,
		GracePeriod:     cfg.Billing.GracePeriod,
		SyncConcurrency: cfg.Billing.SyncConcurrency,
		SyncRatePerSec:  cfg.Billing.SyncRatePerSec,
		SyncMaxAttempts: cfg.Billing.SyncMaxAttempts,
		SyncBaseBackoff: cfg.Billing.SyncBaseBackoff,
		SyncMaxBackoff:  cfg.Billing.SyncMaxBackoff,
	})

	var payments booking.Payments
	if billingSvc.Enabled() {
		payments = billingSvc
	}
	bookings := booking.NewService(db, slots, billingSvc, payments, bus, booking.Config{
		PaymentHold: cfg.Booking.PaymentHold,
	})
	billingSvc.SetBookings(bookings)

	recorder := audit.NewRecorder(db, cfg.Audit)
	cat := catalog.NewService(db, billingSvc, slots, recorder, catalog.Config{})

	mediaSvc, err := media.New(ctx, cfg.Media, db)
	if err != nil {
		return fmt.Errorf("initialize media storage: %w", err)
	}

	hub := ws.NewHub()

	// === EVENT CONSUMERS ===

	router, err := events.NewRouter(bus, events.RouterConfig{
		CloseTimeout:         cfg.Events.CloseTimeout,
		RetryMaxRetries:      cfg.Events.RetryCount,
		RetryInitialInterval: cfg.Events.RetryInterval,
	})
	if err != nil {
		return fmt.Errorf("initialize event router: %w", err)
	}

	consumers := []events.Consumer{
		audit.NewConsumer(recorder),
		ws.NewBroadcaster(hub, instanceID()),
	}
	if cfg.Notify.Enabled {
		var channel notify.Channel
		if cfg.Notify.SMTPEnabled() {
			channel = notify.NewSMTPChannel(cfg.Notify)
		} else {
			logging.Warn().Msg("SMTP is not configured; notifications are only logged")
			channel = notify.NewLogChannel(100)
		}
		notifier, err := notify.NewNotifier(channel)
		if err != nil {
			return fmt.Errorf("initialize notifier: %w", err)
		}
		consumers = append(consumers, notifier)
	}
	for _, c := range consumers {
		if err := router.Register(c); err != nil {
			return fmt.Errorf("register consumer %s: %w", c.Name(), err)
		}
	}

	// === HTTP ===

	handler := api.NewHandler(api.Dependencies{
		Config:       cfg,
		DB:           db,
		Auth:         authSvc,
		Authorizer:   authorizer,
		Catalog:      cat,
		Availability: slots,
		Bookings:     bookings,
		Billing:      billingSvc,
		Audit:        recorder,
		Media:        mediaSvc,
		Hub:          hub,
	})
	handler.AddReadinessCheck("events", func(context.Context) error {
		if !router.IsRunning() {
			return errors.New("event router is not running")
		}
		return nil
	})

	mwCfg := api.DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = cfg.Security.CORSOrigins
	mwCfg.RateLimitRequests = cfg.Security.RateLimitReqs
	mwCfg.RateLimitWindow = cfg.Security.RateLimitWindow
	mwCfg.RateLimitDisabled = cfg.Security.RateLimitDisabled
	mwCfg.PublicRateLimit = cfg.Security.PublicRateLimit
	mwCfg.TrustedProxies = auth.ProxySet(cfg.Security.TrustedProxies)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler, api.NewChiMiddleware(mwCfg)).SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	// Worker layer
	tree.AddWorkerService(recorder)
	tree.AddWorkerService(services.NewJobService(recorder.Job()))
	tree.AddWorkerService(services.NewJobService(booking.NewHoldExpiryJob(bookings, cfg.Booking.HoldCheckInterval)))
	if cfg.Notify.Enabled {
		reminders := notify.NewReminderScheduler(db, bus, notify.ReminderConfig{
			Lead:          cfg.Notify.ReminderLead,
			Interval:      cfg.Notify.ReminderCheckInterval,
			MaxConcurrent: cfg.Notify.MaxConcurrent,
		})
		tree.AddWorkerService(services.NewJobService(reminders.Job()))
	}
	if billingSvc.Enabled() && cfg.Billing.SyncEnabled {
		tree.AddWorkerService(services.NewJobService(billing.NewSyncJob(billingSvc, cfg.Billing.SyncInterval)))
	}

	// Messaging layer
	tree.AddMessagingService(services.NewEventRouterService(router))
	tree.AddMessagingService(services.NewWebSocketHubService(hub))

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	// === START ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		serveErr = <-errCh
	case serveErr = <-errCh:
		cancel()
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}
	return nil
}

// instanceID distinguishes this process in NATS consumer names so that every
// replica feeds its own websocket clients.
func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "bookpro"
	}
	return host + "-" + uuid.NewString()[:8]
}
