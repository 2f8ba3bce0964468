package app

import (
	"context"
	"fmt"

	"github.com/bizflow/backend/internal/config"
	"github.com/bizflow/backend/internal/database"
	"github.com/bizflow/backend/internal/jobs"
	"github.com/bizflow/backend/internal/queue"
	"github.com/bizflow/backend/internal/repository"
	"github.com/bizflow/backend/internal/services/billing"
	"github.com/bizflow/backend/internal/services/email"
	"github.com/bizflow/backend/internal/services/notification"
	"github.com/bizflow/backend/internal/services/payment/providers/wompi"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// App holds the constructed billing services shared by the server and billingctl
type App struct {
	Config       *config.Config
	DB           *gorm.DB
	Redis        *redis.Client
	Queue        *queue.RedisQueue
	Email        *email.EmailService
	Notifier     billing.Notifier
	Orchestrator *billing.RenewalOrchestrator
	Status       *billing.StatusService
	Reconciler   *billing.WebhookReconciler
	Runner       *jobs.Runner
}

// New connects to the database and Redis and wires the billing services.
// Outside production a missing Redis degrades to log-only notifications and unleased sweeps.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		Config: cfg,
		DB:     db,
		Email:  email.NewEmailService(cfg.SMTP),
	}

	var locker jobs.Locker
	redisClient, err := queue.NewRedisClient(ctx, cfg.Redis)
	switch {
	case err == nil:
		a.Redis = redisClient
		a.Queue = queue.NewRedisQueue(redisClient)
		a.Notifier = notification.NewQueueNotifier(a.Queue)
		locker = queue.NewLease(redisClient)
	case cfg.IsProduction():
		database.Close(db)
		return nil, err
	default:
		log.Warn().Err(err).Msg("redis unavailable, notifications will only be logged")
		a.Notifier = notification.LogNotifier{}
	}

	repo := repository.NewGormRepository(db)
	ledger := billing.NewPaymentLedger()
	gateway := wompi.NewWompiProvider(wompi.WompiConfig{
		PrivateKey:      cfg.Gateway.PrivateKey,
		IntegritySecret: cfg.Gateway.IntegritySecret,
		BaseURL:         cfg.Gateway.BaseURL,
		Timeout:         cfg.Gateway.Timeout,
	})
	if cfg.Gateway.PrivateKey == "" {
		log.Warn().Msg("gateway private key not configured, charges will fail")
	}
	if cfg.Gateway.EventsSecret == "" {
		log.Warn().Msg("gateway events secret not configured, webhooks will be rejected")
	}

	a.Orchestrator = billing.NewRenewalOrchestrator(repo, gateway, a.Notifier, ledger, billing.RenewalConfig{
		Window:             cfg.Billing.RenewalWindow,
		TrialReminderAhead: cfg.Billing.TrialReminderAhead,
		Concurrency:        cfg.Billing.Concurrency,
		ChargeTimeout:      cfg.Gateway.Timeout,
	})
	a.Status = billing.NewStatusService(repo, nil)
	a.Reconciler = billing.NewWebhookReconciler(repo, billing.NewSignatureVerifier(cfg.Gateway.EventsSecret), a.Notifier, ledger, nil)
	a.Runner = jobs.NewRunner(a.Orchestrator, a.Status, locker, cfg.Scheduler.LeaseTTL)

	return a, nil
}

// Close releases the database and Redis connections
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close redis")
		}
	}
	if err := database.Close(a.DB); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
}
