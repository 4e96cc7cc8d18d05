// Package publisher delivers posts to external platforms. It is the only
// package that performs network I/O toward a platform; everything else talks
// to the store.
package publisher

import (
	"context"
	"sort"

	"castqueue/internal/models"
)

// PublishError describes a failed delivery attempt. TokenExpired failures
// require the user to re-authenticate before a manual retry; they are never
// retried automatically.
type PublishError struct {
	Reason       string
	TokenExpired bool
}

func (e *PublishError) Error() string {
	return e.Reason
}

// Adapter is one platform's publishing capability. Platforms without an
// automated integration report Schedulable() == false and are stored for
// manual copy/paste workflows only.
type Adapter interface {
	Schedulable() bool
	Publish(ctx context.Context, post *models.ScheduledPost) (externalID string, err error)
}

// Registry maps platform tags to adapters. Unregistered platforms resolve to
// a manual-only adapter.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(platform string, adapter Adapter) {
	r.adapters[platform] = adapter
}

// Adapter never returns nil: unknown platforms get the manual-only default.
func (r *Registry) Adapter(platform string) Adapter {
	if a, ok := r.adapters[platform]; ok {
		return a
	}
	return manualOnly{}
}

func (r *Registry) IsSchedulable(platform string) bool {
	return r.Adapter(platform).Schedulable()
}

// SchedulablePlatforms lists the platform tags the auto-publisher may query
// for, sorted for stable SQL.
func (r *Registry) SchedulablePlatforms() []string {
	var platforms []string
	for tag, a := range r.adapters {
		if a.Schedulable() {
			platforms = append(platforms, tag)
		}
	}
	sort.Strings(platforms)
	return platforms
}

// Publish dispatches through the platform's adapter.
func (r *Registry) Publish(ctx context.Context, post *models.ScheduledPost) (string, error) {
	return r.Adapter(post.Platform).Publish(ctx, post)
}

type manualOnly struct{}

func (manualOnly) Schedulable() bool { return false }

func (manualOnly) Publish(_ context.Context, post *models.ScheduledPost) (string, error) {
	return "", &PublishError{Reason: "platform " + post.Platform + " has no automated integration"}
}
