package bootstrap

import (
	"context"
	"fmt"
	"time"

	"dispatch-server/internal/config"
	"dispatch-server/internal/observability"
	"dispatch-server/internal/store"

	agentconfigHandler "dispatch-server/internal/agentconfig/handler"
	agentconfigProcessor "dispatch-server/internal/agentconfig/processor"
	"dispatch-server/internal/alerts"
	authHandler "dispatch-server/internal/auth/handler"
	authProcessor "dispatch-server/internal/auth/processor"
	callsHandler "dispatch-server/internal/calls/handler"
	callsProcessor "dispatch-server/internal/calls/processor"
	"dispatch-server/internal/clients/mail"
	openaiClient "dispatch-server/internal/clients/openai"
	"dispatch-server/internal/clients/retell"
	twilioClient "dispatch-server/internal/clients/twilio"
	"dispatch-server/internal/livefeed"
	"dispatch-server/internal/reconciler"
	webhooksHandler "dispatch-server/internal/webhooks/handler"
	webhooksProcessor "dispatch-server/internal/webhooks/processor"
	"dispatch-server/internal/workers"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger

	// Handlers
	AuthHandler     authHandler.Handler
	CallsHandler    callsHandler.Handler
	ConfigHandler   agentconfigHandler.Handler
	WebhookHandler  *webhooksHandler.Handler
	LivefeedHandler livefeed.Handler

	// Background extraction
	Reconciler *reconciler.Reconciler
	WorkerPool workers.WorkerPool
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	// Initialize database store
	connectionString := cfg.Database.ConnectionString()
	var err error
	deps.Store, err = store.New(connectionString, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize vendor client
	retellClient := retell.NewClient(cfg.Vendor.APIKey, logger)

	// Phone validation runs only when Twilio credentials are configured
	var phoneValidator callsProcessor.PhoneValidator
	if cfg.Services.TwilioAccountSID != "" && cfg.Services.TwilioAuthToken != "" {
		phoneValidator = twilioClient.NewClient(cfg.Services.TwilioAccountSID, cfg.Services.TwilioAuthToken, logger)
	}

	// Initialize live feed hub and handler
	hub := livefeed.NewHub()
	deps.LivefeedHandler = livefeed.NewHandler(hub, cfg.Services.WebAppURI, logger)

	// Initialize calls processor and handler
	callsProc := callsProcessor.New(
		&deps.Store,
		retellClient,
		phoneValidator,
		hub,
		cfg.Vendor.AgentID,
		cfg.Vendor.FromNumber,
		logger,
	)
	deps.CallsHandler = callsHandler.New(callsProc, logger)

	// Email alerts run only when Resend is configured
	var alertService *alerts.Service
	if cfg.Services.ResendAPIKey != "" {
		mailClient, err := mail.NewResendClient(cfg.Services.ResendAPIKey, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create resend client: %w", err)
		}
		alertService = alerts.New(mailClient, cfg.Services.AlertEmailFrom, cfg.Services.AlertEmailTo, logger)
	}

	// Initialize extraction reconciler and its worker pool
	extractor := openaiClient.NewClient(cfg.Services.OpenAIAPIKey, logger)
	deps.Reconciler = reconciler.New(&deps.Store, extractor, reconcilerAlerts(alertService), hub, logger)
	deps.WorkerPool = workers.NewWorkerPool(workers.WorkerPoolConfig{
		NumWorkers:   cfg.Reconciler.Workers,
		QueueSize:    100,
		DrainTimeout: 30 * time.Second,
	}, deps.Reconciler, logger)
	deps.Reconciler.AttachPool(deps.WorkerPool)

	// Initialize webhook processor and handler
	webhookProc := webhooksProcessor.New(callsProc, deps.Reconciler, cfg.Vendor.WebhookSecret, logger)
	deps.WebhookHandler = webhooksHandler.New(webhookProc, logger)

	// Initialize agent config processor and handler
	configProc := agentconfigProcessor.New(&deps.Store, retellClient, cfg.Vendor.AgentID, logger)
	deps.ConfigHandler = agentconfigHandler.New(configProc, logger)

	// Initialize auth processor and handler
	authProc := authProcessor.New(cfg.Auth.JWTSecret, cfg.Auth.OperatorPasswordHash, logger)
	deps.AuthHandler = authHandler.New(authProc, logger)

	return deps, nil
}

// reconcilerAlerts keeps the AlertSender interface nil when alerting is not
// configured, rather than a non-nil interface wrapping a nil pointer.
func reconcilerAlerts(service *alerts.Service) reconciler.AlertSender {
	if service == nil {
		return nil
	}
	return service
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if db := d.Store.DB(); db != nil {
		db.Close()
	}
}
