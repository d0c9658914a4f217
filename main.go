package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"learnwithavi-server/config"
	"learnwithavi-server/db"
	"learnwithavi-server/handlers"
	"learnwithavi-server/llm"
	"learnwithavi-server/logger"
	"learnwithavi-server/middleware"
	"learnwithavi-server/quiz"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	zlog, err := logger.New(cfg.GinMode)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer zlog.Sync()

	// Initialize database connection pool
	pool, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		zlog.Fatal("Unable to connect to database", "error", err)
	}
	defer pool.Close()
	if err := db.CreateSchema(pool); err != nil {
		zlog.Fatal("Error creating database schema", "error", err)
	}
	zlog.Info("Connected to PostgreSQL")

	// Question generator and its collaborators
	completions, err := llm.NewOpenAIClient(cfg.OpenAI)
	if err != nil {
		zlog.Fatal("Error creating OpenAI client", "error", err)
	}
	transcripts := db.NewTranscriptStore(pool)
	generator := quiz.NewGenerator(completions, transcripts, zlog)

	// Admission control: Redis-backed when configured, in-memory otherwise
	var limiter middleware.Limiter
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Invalid REDIS_URL", "error", err)
		}
		limiter = middleware.NewRedisLimiter(redis.NewClient(opts), cfg.RateLimit.RequestsPerMinute)
		zlog.Info("Rate limiting via Redis")
	} else {
		limiter = middleware.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute)
		zlog.Info("Rate limiting in memory")
	}

	// Set Gin mode
	gin.SetMode(cfg.GinMode)
	if err := handlers.RegisterValidators(); err != nil {
		zlog.Fatal("Error registering validators", "error", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(zlog))

	router.GET("/healthz", handlers.Healthz(pool))

	apiV1 := router.Group("/api/v1")
	{
		quizGroup := apiV1.Group("/quiz")
		quizGroup.GET("/levels", handlers.BloomLevels())
		quizGroup.POST("/generate", middleware.RateLimit(limiter, zlog), handlers.GenerateQuiz(generator, zlog))
	}

	// Start the server
	srv := &http.Server{
		Addr:    cfg.ServerPort,
		Handler: router,
	}

	// Goroutine to gracefully shut down the server
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		zlog.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			zlog.Fatal("Server forced to shutdown", "error", err)
		}
	}()

	zlog.Info("LearnWithAvi quiz server starting", "addr", cfg.ServerPort)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		zlog.Fatal("Server startup error", "error", err)
	}
	zlog.Info("Server exited gracefully")
}
