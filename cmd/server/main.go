package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"castqueue/internal/autopub"
	"castqueue/internal/db"
	"castqueue/internal/handlers"
	"castqueue/internal/middleware"
	"castqueue/internal/publisher"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	defer client.Close()

	registry := publisher.NewRegistryFromEnv()
	loop := autopub.New(registry, publishInterval(), publishBatchSize())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	loop.Start(ctx)

	h := handlers.New(client, registry, loop, os.Getenv("PUBLISH_TRIGGER_SECRET"))
	rateLimiter := middleware.NewRateLimiterMiddleware(rate.Limit(5), 10)

	r := mux.NewRouter()
	r.HandleFunc("/feed/{uuid}", h.GetFeed).Methods(http.MethodGet)
	r.HandleFunc("/internal/publish-due", h.TriggerPublishDue).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware, rateLimiter.Middleware)
	api.HandleFunc("/posts", h.CreatePost).Methods(http.MethodPost)
	api.HandleFunc("/posts", h.ListPosts).Methods(http.MethodGet)
	api.HandleFunc("/posts/bulk", h.BulkSchedulePosts).Methods(http.MethodPost)
	api.HandleFunc("/posts/series", h.CreateSeries).Methods(http.MethodPost)
	api.HandleFunc("/calendar", h.GetCalendar).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id}", h.GetPost).Methods(http.MethodGet)
	api.HandleFunc("/posts/{id}", h.UpdatePost).Methods(http.MethodPut)
	api.HandleFunc("/posts/{id}", h.DeletePost).Methods(http.MethodDelete)
	api.HandleFunc("/posts/{id}/reschedule", h.ReschedulePost).Methods(http.MethodPatch)
	api.HandleFunc("/posts/{id}/retry", h.RetryPost).Methods(http.MethodPost)
	api.HandleFunc("/posts/{id}/metrics", h.UpdateMetrics).Methods(http.MethodPatch)

	srv := &http.Server{Addr: ":" + port, Handler: r}
	go func() {
		log.Printf("Starting server on :%s (commit: %s)", port, CommitSHA)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func publishInterval() time.Duration {
	if v := os.Getenv("PUBLISH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid PUBLISH_INTERVAL: %v", err)
		}
		return d
	}
	return 5 * time.Minute
}

func publishBatchSize() int {
	if v := os.Getenv("PUBLISH_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Fatalf("Invalid PUBLISH_BATCH_SIZE: %q", v)
		}
		return n
	}
	return 25
}
