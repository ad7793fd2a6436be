package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	config "github.com/ithub/crossposter/configs"
	"github.com/ithub/crossposter/internal/api/handlers"
	"github.com/ithub/crossposter/internal/api/middleware"
	job "github.com/ithub/crossposter/internal/jobs"
	"github.com/ithub/crossposter/internal/queue"
	"github.com/ithub/crossposter/internal/repository"
	"github.com/ithub/crossposter/internal/sender"
	"github.com/ithub/crossposter/internal/service"
	_ "github.com/lib/pq"
	"github.com/robfig/cron"
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
	asynqClient := asynq.NewClient(redisConn)
	defer asynqClient.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	postRepo := repository.NewPostRepository(db)
	postMediaRepo := repository.NewPostMediaRepository(db)
	socialTaskRepo := repository.NewSocialTaskRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)

	storageService := service.NewStorageService(*cfg)
	mediaService := service.NewMediaService(mediaAssetRepo, storageService)
	accountService := service.NewAccountService(*cfg, socialAccountRepo)
	accountDirectory := service.NewAccountDirectory(*cfg, socialAccountRepo)
	mediaResolver := service.NewMediaResolver(service.NewStorageResolver(mediaAssetRepo, storageService), 15*time.Second)
	postService := service.NewPostService(db, postRepo, socialTaskRepo, postMediaRepo, socialAccountRepo, mediaAssetRepo)

	senders := sender.NewRegistry(
		sender.NewTelegram(cfg.TelegramBotToken),
		sender.NewInstagram(storageService),
	)

	publisher := service.NewPublisher(postRepo, socialTaskRepo, postMediaRepo, accountDirectory, mediaResolver, senders)

	queueClient := queue.NewClient(asynqClient)

	authMiddleware := middleware.NewAuthMiddleware(*cfg)

	account := handlers.NewAccountHandler(*cfg, accountService)
	app.Get("/auth/:platform", account.AddSocialAccount)
	app.Get("/auth/:platform/callback", account.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	post := handlers.NewPostHandler(postService, publisher, queueClient)
	api.Post("/posts", post.CreatePost)
	api.Get("/posts", post.ListPosts)
	api.Get("/posts/:id", post.GetPost)
	api.Put("/posts/:id", post.UpdatePost)
	api.Delete("/posts/:id", post.RemovePost)
	api.Post("/posts/:id/publish", post.PublishPost)

	media := handlers.NewMediaHandler(mediaService)
	api.Post("/media/upload", media.Upload)
	api.Get("/media", media.ListMedia)

	// social accounts api routes
	api.Get("/accounts", account.ListSocialAccounts)
	api.Post("/accounts/telegram", account.LinkTelegram)
	api.Post("/accounts/remove", account.DeleteSocialAccount)

	// cron jobs
	publishDueJob := job.NewPublishDueJob(postRepo, queueClient)
	refreshTokenJob := job.NewTokenRefreshJob(socialAccountRepo, accountService)

	c := cron.New()
	c.AddFunc(cfg.PublishCronSpec, publishDueJob.Run)
	c.AddFunc("@every 00h10m00s", refreshTokenJob.RefreshTokens)
	c.Start()

	// queue worker
	worker := queue.NewWorker(publisher, postRepo)

	go func() {
		server := asynq.NewServer(redisConn, asynq.Config{
			Concurrency: 10,
		})

		mux := asynq.NewServeMux()
		mux.HandleFunc(queue.TaskTypePublishPost, worker.HandlePublishPostTask)

		log.Println("Starting the Asynq server...")
		if err := server.Run(mux); err != nil {
			log.Fatalf("Could not start Asynq server: %v", err)
		}
	}()

	go func() {
		if err := app.Listen(":3000"); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()
	log.Println("Server is running on http://localhost:3000")

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
