package tasks

import (
	"github.com/hibiken/asynq"
)

const (
	// TypePublishDue runs one auto-publisher pass over due posts.
	TypePublishDue = "posts:publish_due"
)

func NewPublishDueTask() (*asynq.Task, error) {
	return asynq.NewTask(TypePublishDue, nil), nil
}
