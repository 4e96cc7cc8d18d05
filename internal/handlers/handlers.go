package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"castqueue/internal/autopub"
	"castqueue/internal/middleware"
	"castqueue/internal/models"
	"castqueue/internal/publisher"
	"castqueue/pkg/tasks"
)

type Handlers struct {
	asynqClient   tasks.TaskEnqueuer
	registry      *publisher.Registry
	loop          *autopub.Loop
	triggerSecret string
}

func New(asynqClient tasks.TaskEnqueuer, registry *publisher.Registry, loop *autopub.Loop, triggerSecret string) *Handlers {
	return &Handlers{
		asynqClient:   asynqClient,
		registry:      registry,
		loop:          loop,
		triggerSecret: triggerSecret,
	}
}

func currentUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(middleware.UserContextKey).(*models.User)
	return user, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}

// enqueuePublishPass asks the worker for a prompt pass, so posts scheduled in
// the past do not wait for the next timer tick. Best effort: the timer covers
// it anyway.
func (h *Handlers) enqueuePublishPass() {
	task, err := tasks.NewPublishDueTask()
	if err != nil {
		log.Printf("Error creating publish-due task: %v", err)
		return
	}
	if _, err := h.asynqClient.Enqueue(task); err != nil {
		log.Printf("Error enqueuing publish-due task: %v", err)
	}
}
