package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/bizflow/backend/internal/app"
	"github.com/bizflow/backend/internal/config"
	"github.com/bizflow/backend/internal/database"
	"github.com/bizflow/backend/internal/handlers"
	"github.com/bizflow/backend/internal/jobs"
	"github.com/bizflow/backend/internal/logging"
	"github.com/bizflow/backend/internal/middleware"
	"github.com/bizflow/backend/internal/queue"
	"github.com/bizflow/backend/internal/routes"
	"github.com/bizflow/backend/internal/services/notification"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.LoadConfig()
	logging.Init(logging.Config{Format: cfg.Log.Format, Level: cfg.Log.Level, Component: "server"})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize billing services")
	}
	defer a.Close()

	if err := database.Migrate(a.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Notification delivery
	var processor *queue.JobProcessor
	var queueStats handlers.QueueInspector
	if a.Queue != nil {
		queueStats = a.Queue
		processor = queue.NewJobProcessor(a.Queue, 2)
		notification.NewDelivery(a.Email).Register(processor)
		processor.Start(ctx)
	}

	var scheduler *jobs.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler, err = jobs.NewScheduler(cfg.Scheduler, a.Runner)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create scheduler")
		}
		scheduler.Start()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", handlers.ChecksumHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	rateLimiter := middleware.NewRateLimiter(cfg.Server.WebhookRateLimit, cfg.Server.WebhookBurst)
	defer rateLimiter.Stop()

	routes.RegisterRoutes(router, routes.Dependencies{
		DB:          a.DB,
		Webhook:     handlers.NewWebhookHandler(a.Reconciler),
		Billing:     handlers.NewBillingHandler(a.Status),
		Admin:       handlers.NewAdminHandler(a.Runner, queueStats, notification.QueueName),
		RateLimiter: rateLimiter,
		JWTSecret:   cfg.JWT.Secret,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Str("port", cfg.Server.Port).Str("environment", cfg.Environment).Msg("billing server started")

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	if processor != nil {
		processor.Stop()
	}

	log.Info().Msg("server exiting")
}
