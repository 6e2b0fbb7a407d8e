package main

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"

	config "github.com/DayMoonDevelopment/post-for-me-sub000/configs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/delivery"
	job "github.com/DayMoonDevelopment/post-for-me-sub000/internal/jobs"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/media"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/notify"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/orchestrator"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/platform"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/queue"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/repository"
	"github.com/DayMoonDevelopment/post-for-me-sub000/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Failed to load environment variables", err)
	}

	cfg := config.LoadConfig()

	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB(db)

	if err := db.Ping(); err != nil {
		log.Fatalf("Database is unreachable: %v", err)
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}

	store, err := storage.New(*cfg)
	if err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}

	postRepo := repository.NewPostRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	platformConfigRepo := repository.NewPlatformConfigRepository(db)
	postResultRepo := repository.NewPostResultRepository(db)
	projectRepo := repository.NewProjectRepository(db)
	eventRepo := repository.NewEventRepository(db)

	notifier := notify.New(eventRepo)
	jobClient := queue.NewJobClient(redisConn)

	localizer := media.NewLocalizer(store)
	normalizer := media.NewNormalizer(store, cfg.FFmpegPath, cfg.FFprobePath)
	compressor := media.NewCompressor(store, cfg.FFmpegPath, cfg.FFprobePath)

	deps := platform.Deps{
		HTTP:       &http.Client{Timeout: 5 * time.Minute},
		Downloader: store,
		Resolver:   compressor,
	}

	worker := delivery.NewWorker(*cfg, socialAccountRepo, postResultRepo, notifier, deps)
	orch := orchestrator.New(cfg, postRepo, postMediaRepo, platformConfigRepo, postResultRepo, projectRepo, jobClient, notifier)
	handlers := job.NewHandlers(orch, localizer, normalizer, compressor, worker)

	// cron jobs
	refreshTokenJob := job.NewTokenRefreshJob(cfg, socialAccountRepo, worker)

	c := cron.New()
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Minute,
		WriteTimeout: time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})
	app.Use(logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.Ping(); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok", "platforms": platform.Registered()})
	})

	app.Post("/internal/posts/:id/process", func(c *fiber.Ctx) error {
		postID, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid post id"})
		}
		err = jobClient.Submit(c.Context(), queue.Task{
			Kind:    queue.TaskTypeProcessPost,
			Payload: queue.ProcessPostPayload{PostID: postID},
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"post_id": postID})
	})

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
		})

		log.Println("Starting the Asynq server...")
		if err := server.Run(handlers.Mux()); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(cfg.OpsAddr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Printf("Ops server is running on %s", cfg.OpsAddr)

	gracefulShutdown(app, db)
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}

func gracefulShutdown(app *fiber.App, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	if err := app.Shutdown(); err != nil {
		log.Fatalf("Failed to shut down server: %v", err)
	}

	closeDB(db)
	log.Println("Server shutdown complete.")
}
