package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AMvdBM19/monoliet-portal/internal/api"
	"github.com/AMvdBM19/monoliet-portal/internal/api/handlers"
	"github.com/AMvdBM19/monoliet-portal/internal/api/middleware"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/billing"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/health"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/n8n"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/notify"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/reconcile"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/logger"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/secrets"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/audit"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/auth"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/database"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/AMvdBM19/monoliet-portal/internal/workers"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Repositories
	clientRepo := repositories.NewClientRepository(db)
	userRepo := repositories.NewUserRepository(db)
	workflowRepo := repositories.NewWorkflowRepository(db)
	executionRepo := repositories.NewExecutionRepository(db)
	invoiceRepo := repositories.NewInvoiceRepository(db)
	ticketRepo := repositories.NewTicketRepository(db)
	credentialRepo := repositories.NewCredentialRepository(db)
	channelRepo := repositories.NewChannelRepository(db)
	trail := audit.NewTrail(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	keychain, err := secrets.NewKeychain(cfg.Encryption.CredentialKey)
	if err != nil {
		log.Fatalf("Failed to load credential key: %v", err)
	}
	engines := n8n.NewFactory(cfg.Engine, credentialRepo, keychain)
	engineFor := reconcile.EngineFactoryFunc(func(clientID string) (reconcile.EngineClient, error) {
		return engines.ForClient(clientID)
	})
	sink := notify.Multi(notify.LogSink{}, notify.NewWebhookSink(channelRepo, cfg.Notifications.Timeout))
	billingSvc := billing.NewService(invoiceRepo, trail, sink)

	// Batch jobs, exposed to admins through the jobs endpoint. The
	// worker process owns the tickers; the server only runs jobs on
	// demand.
	reconciler := reconcile.New(cfg.Reconciler, workflowRepo, executionRepo, engineFor, sink)
	monitor := health.New(cfg.Monitor, workflowRepo, executionRepo, trail, sink)
	lifecycle := billing.NewLifecycle(cfg.Billing, invoiceRepo, trail, sink)

	scheduler := workers.NewScheduler(
		workers.Job{Name: "reconcile", Every: cfg.Reconciler.Interval, Run: func(ctx context.Context) error {
			_, err := reconciler.Run(ctx)
			return err
		}},
		workers.Job{Name: "check-health", Every: cfg.Monitor.Interval, Run: func(ctx context.Context) error {
			_, err := monitor.Run(ctx)
			return err
		}},
		workers.Job{Name: "process-invoices", Every: cfg.Billing.Interval, Run: func(ctx context.Context) error {
			_, err := lifecycle.Run(ctx)
			return err
		}},
	)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)
	scopeMiddleware := middleware.NewClientScopeMiddleware(clientRepo)
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit)

	deps := &api.Dependencies{
		AuthHandler:       handlers.NewAuthHandler(userRepo, tokenSvc),
		ClientHandler:     handlers.NewClientHandler(clientRepo, trail),
		WorkflowHandler:   handlers.NewWorkflowHandler(workflowRepo, clientRepo, engines, trail),
		ExecutionHandler:  handlers.NewExecutionHandler(executionRepo, workflowRepo),
		InvoiceHandler:    handlers.NewInvoiceHandler(invoiceRepo, billingSvc, cfg.Billing),
		TicketHandler:     handlers.NewTicketHandler(ticketRepo, trail, sink),
		CredentialHandler: handlers.NewCredentialHandler(credentialRepo, clientRepo, keychain),
		ChannelHandler:    handlers.NewChannelHandler(channelRepo),
		DashboardHandler:  handlers.NewDashboardHandler(clientRepo, workflowRepo, executionRepo, invoiceRepo, ticketRepo),
		AuditHandler:      handlers.NewAuditHandler(trail),
		JobsHandler:       handlers.NewJobsHandler(scheduler),
		HealthHandler:     handlers.NewHealthHandler(db),

		AuthMiddleware:  authMiddleware,
		ScopeMiddleware: scopeMiddleware,
		RateLimiter:     rateLimiter,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
