package main

import (
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"castqueue/internal/autopub"
	"castqueue/internal/db"
	"castqueue/internal/publisher"
	"castqueue/internal/worker"
	"castqueue/pkg/tasks"
)

// CommitSHA is set at build time via ldflags
var CommitSHA = "unknown"

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	db.InitDB()

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			// One pass at a time; the loop's guard would drop overlapping
			// passes anyway.
			Concurrency: 1,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	registry := publisher.NewRegistryFromEnv()
	loop := autopub.New(registry, 5*time.Minute, 25)

	mux := asynq.NewServeMux()
	taskHandler := worker.NewTaskHandler(loop)
	mux.HandleFunc(tasks.TypePublishDue, taskHandler.HandlePublishDueTask)

	log.Printf("Worker starting (commit: %s)", CommitSHA)
	if err := srv.Run(mux); err != nil {
		log.Fatalf("could not run server: %v", err)
	}
}
