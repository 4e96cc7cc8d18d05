// Package autopub drives due scheduled posts through their platform
// adapters. One pass at a time: overlapping triggers are dropped, not queued.
package autopub

import (
	"context"
	"errors"
	"log"
	"time"

	"castqueue/internal/db"
	"castqueue/internal/publisher"
)

// ErrPassInProgress is returned when a trigger finds a pass already running.
var ErrPassInProgress = errors.New("publish pass already in progress")

// Stats summarizes one publish pass.
type Stats struct {
	Attempted         int `json:"attempted"`
	Published         int `json:"published"`
	Failed            int `json:"failed"`
	SkippedManualOnly int `json:"skippedManualOnly"`
}

// Loop periodically finds due SCHEDULED posts and moves each to PUBLISHED or
// FAILED via conditional updates. Safe to trigger concurrently from the
// timer, the manual endpoint and the task worker: a single-permit guard keeps
// at most one pass active per process, and the store's conditional updates
// keep concurrent processes from double-publishing.
type Loop struct {
	registry  *publisher.Registry
	interval  time.Duration
	batchSize int

	now    func() time.Time
	permit chan struct{}
}

func New(registry *publisher.Registry, interval time.Duration, batchSize int) *Loop {
	l := &Loop{
		registry:  registry,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
		permit:    make(chan struct{}, 1),
	}
	l.permit <- struct{}{}
	return l
}

// Start runs one pass immediately, then one per interval until ctx is
// cancelled. Cancellation stops the timer; an in-flight pass finishes.
func (l *Loop) Start(ctx context.Context) {
	go func() {
		l.runLogged()

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("Auto-publisher stopped")
				return
			case <-ticker.C:
				l.runLogged()
			}
		}
	}()
}

func (l *Loop) runLogged() {
	stats, err := l.RunOnce(context.Background())
	if errors.Is(err, ErrPassInProgress) {
		return
	}
	if err != nil {
		log.Printf("Publish pass failed: %v", err)
		return
	}
	if stats.Attempted > 0 {
		log.Printf("Publish pass done: attempted=%d published=%d failed=%d skipped=%d",
			stats.Attempted, stats.Published, stats.Failed, stats.SkippedManualOnly)
	}
}

// RunOnce executes a single publish pass. If another pass holds the permit
// it does no work and returns ErrPassInProgress.
func (l *Loop) RunOnce(ctx context.Context) (Stats, error) {
	select {
	case <-l.permit:
	default:
		log.Println("Publish pass skipped: previous pass still running")
		return Stats{}, ErrPassInProgress
	}
	defer func() { l.permit <- struct{}{} }()

	return l.publishDue(ctx)
}

func (l *Loop) publishDue(ctx context.Context) (Stats, error) {
	stats := Stats{}

	posts, err := db.ListDuePosts(l.now(), l.registry.SchedulablePlatforms(), l.batchSize)
	if err != nil {
		return stats, err
	}

	// Sequential on purpose: bounds outward request concurrency to one per
	// process. A failing row never blocks its siblings.
	for i := range posts {
		post := &posts[i]
		stats.Attempted++

		if !l.registry.IsSchedulable(post.Platform) {
			stats.SkippedManualOnly++
			continue
		}

		externalID, pubErr := l.registry.Publish(ctx, post)
		if pubErr != nil {
			stats.Failed++
			if err := db.MarkFailed(post.ID, pubErr.Error()); err != nil {
				if errors.Is(err, db.ErrConflict) {
					log.Printf("Post %s changed while publishing, leaving it alone", post.ID)
				} else {
					log.Printf("Failed to mark post %s failed: %v", post.ID, err)
				}
			}
			continue
		}

		if err := db.MarkPublished(post.ID, externalID); err != nil {
			if errors.Is(err, db.ErrConflict) {
				log.Printf("Post %s was edited or deleted mid-publish, not overwriting", post.ID)
			} else {
				log.Printf("Failed to mark post %s published: %v", post.ID, err)
			}
			continue
		}
		stats.Published++
	}

	return stats, nil
}
