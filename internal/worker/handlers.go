package worker

import (
	"context"
	"errors"
	"log"

	"github.com/hibiken/asynq"

	"castqueue/internal/autopub"
)

type TaskHandler struct {
	loop *autopub.Loop
}

func NewTaskHandler(loop *autopub.Loop) *TaskHandler {
	return &TaskHandler{loop: loop}
}

// HandlePublishDueTask runs one publish pass. A pass already running in this
// process is not a failure: the other pass covers the same due rows, so the
// task is done either way and must not be retried.
func (h *TaskHandler) HandlePublishDueTask(ctx context.Context, t *asynq.Task) error {
	stats, err := h.loop.RunOnce(ctx)
	if errors.Is(err, autopub.ErrPassInProgress) {
		log.Println("Publish-due task skipped: a pass is already running")
		return nil
	}
	if err != nil {
		return err
	}

	log.Printf("Publish-due task done: attempted=%d published=%d failed=%d skipped=%d",
		stats.Attempted, stats.Published, stats.Failed, stats.SkippedManualOnly)
	return nil
}
