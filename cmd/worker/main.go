package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/AMvdBM19/monoliet-portal/internal/engine/billing"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/health"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/n8n"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/notify"
	"github.com/AMvdBM19/monoliet-portal/internal/engine/reconcile"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/logger"
	"github.com/AMvdBM19/monoliet-portal/internal/pkg/secrets"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/audit"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/config"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/database"
	"github.com/AMvdBM19/monoliet-portal/internal/platform/repositories"
	"github.com/AMvdBM19/monoliet-portal/internal/workers"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	jobName := flag.String("job", "", "Run a single job instead of all tickers")
	once := flag.Bool("once", false, "Run the named job once and exit")
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

	workflowRepo := repositories.NewWorkflowRepository(db)
	executionRepo := repositories.NewExecutionRepository(db)
	invoiceRepo := repositories.NewInvoiceRepository(db)
	credentialRepo := repositories.NewCredentialRepository(db)
	channelRepo := repositories.NewChannelRepository(db)
	trail := audit.NewTrail(db)

	keychain, err := secrets.NewKeychain(cfg.Encryption.CredentialKey)
	if err != nil {
		log.Fatalf("Failed to load credential key: %v", err)
	}
	engines := n8n.NewFactory(cfg.Engine, credentialRepo, keychain)
	engineFor := reconcile.EngineFactoryFunc(func(clientID string) (reconcile.EngineClient, error) {
		return engines.ForClient(clientID)
	})
	sink := notify.Multi(notify.LogSink{}, notify.NewWebhookSink(channelRepo, cfg.Notifications.Timeout))

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *once {
		if *jobName == "" {
			log.Fatalf("-once requires -job, one of %v", scheduler.Names())
		}
		if err := scheduler.RunNow(ctx, *jobName); err != nil {
			log.Fatalf("Job %s failed: %v", *jobName, err)
		}
		return
	}
	if *jobName != "" {
		log.Fatalf("-job requires -once; tickers always run every job")
	}

	log.Printf("Worker starting jobs %v", scheduler.Names())
	scheduler.Start(ctx)
	log.Println("Worker stopped")
}
