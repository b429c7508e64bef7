// Package main provides the entry point for the HoroloGen API server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/isaomisk/HoroloGen/internal/api"
	"github.com/isaomisk/HoroloGen/internal/discovery"
	"github.com/isaomisk/HoroloGen/internal/fetcher"
	"github.com/isaomisk/HoroloGen/internal/generation"
	"github.com/isaomisk/HoroloGen/internal/pipeline"
	"github.com/isaomisk/HoroloGen/internal/policy"
	"github.com/isaomisk/HoroloGen/internal/temporal/activities"
	"github.com/isaomisk/HoroloGen/internal/temporal/workflows"
	"github.com/isaomisk/HoroloGen/internal/trust"
	"github.com/isaomisk/HoroloGen/pkg/logging"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logConfig := logging.DefaultLogConfig()
	logConfig.Level = getEnv("LOG_LEVEL", logConfig.Level)
	if err := logging.Setup(logConfig); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	registry := trust.DefaultRegistry()
	if path := os.Getenv("HOROLOGEN_TRUST_SOURCES"); path != "" {
		loaded, err := trust.LoadRegistry(path)
		if err != nil {
			log.Fatalf("Failed to load trust sources: %v", err)
		}
		registry = loaded
	}

	denoiseConfig := fetcher.DefaultDenoiseConfig()
	if path := os.Getenv("HOROLOGEN_DENOISE_CONFIG"); path != "" {
		loaded, err := fetcher.LoadDenoiseConfig(path)
		if err != nil {
			log.Fatalf("Failed to load denoise config: %v", err)
		}
		denoiseConfig = loaded
	}

	backend, err := generation.NewAnthropicClientFromEnv()
	if err != nil {
		log.Fatalf("Failed to configure generation backend: %v", err)
	}

	f := fetcher.New(fetcher.DefaultConfig(), registry, fetcher.NewStrategyTable(), fetcher.NewDenoiser(denoiseConfig))
	p := pipeline.New(registry, f.Fetch, backend, policy.NewFilter())
	d := discovery.NewService(registry, discovery.NewAnthropicWebSearcherFromEnv())

	events := pipeline.NewEventBus(64, 2)
	defer events.Close()
	p.AttachEventBus(events)
	auditLogger := logging.GetLogger("audit")
	events.Subscribe([]pipeline.EventType{
		pipeline.EventGenerationFailed,
		pipeline.EventPolicyViolation,
	}, func(_ context.Context, e *pipeline.GenerationEvent) error {
		auditLogger.Warn().
			Str("event_type", string(e.Type)).
			Str("generation_id", e.GenerationID).
			Str("reference", e.Reference).
			Str("error", e.Error).
			Msg("Generation problem recorded")
		return nil
	})

	// Batch generation runs through Temporal when a server is available.
	if hostPort := os.Getenv("TEMPORAL_HOST"); hostPort != "" {
		temporalClient, err := client.Dial(client.Options{HostPort: hostPort})
		if err != nil {
			log.Fatalf("Failed to create Temporal client: %v", err)
		}
		defer temporalClient.Close()

		activities.SetGlobalPipeline(p)

		w := worker.New(temporalClient, getEnv("TEMPORAL_TASK_QUEUE", "horologen"), worker.Options{
			MaxConcurrentActivityExecutionSize: 4,
		})
		w.RegisterWorkflow(workflows.BatchGenerationWorkflow)
		w.RegisterActivity(activities.GenerateArticleActivity)

		go func() {
			if err := w.Run(worker.InterruptCh()); err != nil {
				log.Fatalf("Failed to start worker: %v", err)
			}
		}()
	}

	app := fiber.New(fiber.Config{
		AppName:               "HoroloGen API",
		DisableStartupMessage: false,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${error}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "UTC",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: getEnv("CORS_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	h := api.NewHandlers(p, d)
	api.SetupRoutes(app, h)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.Shutdown(); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	port := getEnv("PORT", "8080")
	log.Printf("Starting HoroloGen API server on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
