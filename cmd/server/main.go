package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/formcoach/api/internal/client"
	"github.com/formcoach/api/internal/config"
	"github.com/formcoach/api/internal/handler"
	"github.com/formcoach/api/internal/service"
	"github.com/formcoach/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize storage and Gemini clients. Either may be unconfigured in
	// development; jobs then fail with a clear error instead of panicking.
	storage, err := client.NewR2Client(&cfg.Storage)
	if err != nil {
		log.Printf("Warning: storage client not available: %v", err)
	}

	gemini := client.NewGeminiClient(&cfg.Gemini)
	if !gemini.IsConfigured() {
		log.Printf("Warning: GEMINI_API_KEY not set, analysis jobs will fail")
	}

	// Initialize services
	workoutService := service.NewWorkoutService(redisClient, asynqClient)

	var analyzer service.VideoAnalyzer
	var overlayer service.VideoOverlayer
	if storage != nil && gemini.IsConfigured() {
		analyzer = service.NewAnalysisService(storage, gemini, cfg)
		overlayer = service.NewOverlayService(storage, cfg)
	}

	// Initialize handlers
	workoutHandler := handler.NewWorkoutHandler(workoutService, validate)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    50 * 1024 * 1024, // 50MB
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", healthHandler(redisClient, gemini, storage))

	// API routes
	api := app.Group("/api")

	workouts := api.Group("/workouts")
	workouts.Post("/", workoutHandler.Create)
	workouts.Get("/jobs/:jobId", workoutHandler.GetJob)
	workouts.Get("/:id", workoutHandler.GetByID)

	api.Get("/users/:userId/workouts", workoutHandler.ListByUser)

	// Start Asynq worker server
	go startWorkerServer(cfg, workoutService, analyzer, overlayer)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, workoutService *service.WorkoutService, analyzer service.VideoAnalyzer, overlayer service.VideoOverlayer) {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Transcoding is CPU-bound; keep concurrency low so parallel
			// encodes do not starve each other.
			Concurrency: 2,
			Queues: map[string]int{
				"analysis": 10,
			},
		},
	)

	analysisWorker := worker.NewAnalysisWorker(workoutService, analyzer, overlayer)

	mux := asynq.NewServeMux()
	mux.HandleFunc(service.TaskTypeAnalysis, analysisWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func healthHandler(redisClient *redis.Client, gemini *client.GeminiClient, storage *client.R2Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"gemini":  gemini.IsConfigured(),
				"storage": storage != nil,
				"redis":   redisClient.Ping(c.Context()).Err() == nil,
			},
		})
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
