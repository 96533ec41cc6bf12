package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"

	"leadmailer/config"
	"leadmailer/middleware"
	"leadmailer/routes"
	"leadmailer/utils"
	"leadmailer/worker"
)

func main() {
	logger := log.New(os.Stdout, "SCHEDULER: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         config.AppConfig.SentryDSN,
			Environment: config.AppConfig.Environment,
		}); err != nil {
			logger.Printf("Sentry init failed: %v", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Shared send gate, per-campaign lock and variation cache
	limiter := utils.NewSendLimiter(config.DB)
	if config.AppConfig.SenderRotation {
		count, err := utils.CountActiveSenders(config.DB)
		if err != nil {
			logger.Fatalf("Failed to count sender accounts: %v", err)
		}
		limiter.RotationBypass = count > 1
	}

	locker := buildLocker(logger)
	rewriter := utils.NewHTTPRewriter(config.AppConfig.RewriteURL, config.AppConfig.RewriteAPIKey)
	variations := utils.NewVariationCache(config.DB, rewriter)
	mailer := utils.NewSMTPMailer(config.DB, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the two scheduler loops
	transmissionWorker := worker.NewTransmissionWorker(
		config.DB, mailer, limiter, locker, variations,
		log.New(os.Stdout, "TRANSMISSION: ", log.LstdFlags),
	)
	transmissionWorker.Interval = time.Duration(config.AppConfig.TransmissionTickSeconds) * time.Second
	go transmissionWorker.Start(ctx)

	funnelWorker := worker.NewFunnelWorker(
		config.DB, mailer, limiter, locker, variations,
		log.New(os.Stdout, "FUNNEL: ", log.LstdFlags),
	)
	funnelWorker.Interval = time.Duration(config.AppConfig.FunnelTickSeconds) * time.Second
	funnelWorker.TZMode = config.AppConfig.FunnelTZMode
	go funnelWorker.Start(ctx)

	// Create Fiber app
	app := fiber.New()
	app.Use(middleware.CORS())

	routes.SetupRoutes(app, config.DB, limiter, variations)

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "running",
			"version": "1.0.0",
		})
	})

	// Stop the workers cleanly on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Println("Shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	logger.Printf("Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}

func buildLocker(logger *log.Logger) utils.Locker {
	switch config.AppConfig.LockBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     config.AppConfig.Redis.Address,
			Password: config.AppConfig.Redis.Password,
			DB:       config.AppConfig.Redis.DB,
		})
		return utils.NewRedisLocker(client)
	case "memory":
		logger.Println("Using in-process lock; do not run multiple scheduler processes")
		return utils.NewMemoryLocker()
	default:
		return utils.NewPostgresLocker(config.DB)
	}
}
