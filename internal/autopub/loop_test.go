package autopub

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"castqueue/internal/db"
	"castqueue/internal/models"
	"castqueue/internal/publisher"
	"castqueue/internal/test"
)

var postColumns = []string{
	"id", "owner_id", "team_id", "transcript_id", "platform", "provider",
	"title", "content", "content_html", "scheduled_at", "status",
	"external_id", "last_error", "metrics", "meta", "created_at", "updated_at",
}

func addDueRow(rows *sqlmock.Rows, id, platform string, at time.Time) *sqlmock.Rows {
	return rows.AddRow(id, int64(1), nil, nil, platform, nil, nil, "content", nil,
		at, db.StatusScheduled, nil, nil, nil, nil, at, at)
}

type stubResult struct {
	externalID string
	err        error
}

// stubAdapter resolves each post by ID and can block mid-publish so tests can
// force overlapping passes.
type stubAdapter struct {
	results map[string]stubResult

	startedOnce sync.Once
	started     chan struct{}
	release     chan struct{}
}

func (a *stubAdapter) Schedulable() bool { return true }

func (a *stubAdapter) Publish(_ context.Context, post *models.ScheduledPost) (string, error) {
	if a.started != nil {
		a.startedOnce.Do(func() { close(a.started) })
	}
	if a.release != nil {
		<-a.release
	}
	r := a.results[post.ID]
	return r.externalID, r.err
}

func newTestLoop(adapter publisher.Adapter, batchSize int, now time.Time) *Loop {
	registry := publisher.NewRegistry()
	registry.Register(models.PlatformLinkedIn, adapter)
	l := New(registry, 5*time.Minute, batchSize)
	l.now = func() time.Time { return now }
	return l
}

func TestRunOncePublishesDuePosts(t *testing.T) {
	_, mock := test.NewMockDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-10 * time.Minute)

	rows := sqlmock.NewRows(postColumns)
	addDueRow(rows, "post-1", models.PlatformLinkedIn, due)
	addDueRow(rows, "post-2", models.PlatformLinkedIn, due.Add(time.Minute))
	mock.ExpectQuery(`SELECT \* FROM scheduled_posts`).
		WithArgs(db.StatusScheduled, models.PlatformLinkedIn, now, 25).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusPublished, "ext-1", "post-1", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusPublished, "ext-2", "post-2", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	adapter := &stubAdapter{results: map[string]stubResult{
		"post-1": {externalID: "ext-1"},
		"post-2": {externalID: "ext-2"},
	}}
	loop := newTestLoop(adapter, 25, now)

	stats, err := loop.RunOnce(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, Stats{Attempted: 2, Published: 2}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnceOneFailureDoesNotBlockSiblings(t *testing.T) {
	_, mock := test.NewMockDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Hour)

	rows := sqlmock.NewRows(postColumns)
	addDueRow(rows, "bad", models.PlatformLinkedIn, due)
	addDueRow(rows, "good", models.PlatformLinkedIn, due.Add(time.Minute))
	mock.ExpectQuery(`SELECT \* FROM scheduled_posts`).
		WithArgs(db.StatusScheduled, models.PlatformLinkedIn, now, 25).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusFailed, "linkedin: platform returned HTTP 422: nope", "bad", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusPublished, "ext-good", "good", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	adapter := &stubAdapter{results: map[string]stubResult{
		"bad":  {err: &publisher.PublishError{Reason: "linkedin: platform returned HTTP 422: nope"}},
		"good": {externalID: "ext-good"},
	}}
	loop := newTestLoop(adapter, 25, now)

	stats, err := loop.RunOnce(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, Stats{Attempted: 2, Published: 1, Failed: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnceTokenExpiredMarksFailed(t *testing.T) {
	_, mock := test.NewMockDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(postColumns)
	addDueRow(rows, "stale", models.PlatformLinkedIn, now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT \* FROM scheduled_posts`).
		WithArgs(db.StatusScheduled, models.PlatformLinkedIn, now, 25).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusFailed, "linkedin: access token expired or revoked (HTTP 401)", "stale", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	adapter := &stubAdapter{results: map[string]stubResult{
		"stale": {err: &publisher.PublishError{
			Reason:       "linkedin: access token expired or revoked (HTTP 401)",
			TokenExpired: true,
		}},
	}}
	loop := newTestLoop(adapter, 25, now)

	stats, err := loop.RunOnce(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, Stats{Attempted: 1, Failed: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnceConcurrentEditIsNotAnError(t *testing.T) {
	_, mock := test.NewMockDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(postColumns)
	addDueRow(rows, "moved", models.PlatformLinkedIn, now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT \* FROM scheduled_posts`).
		WithArgs(db.StatusScheduled, models.PlatformLinkedIn, now, 25).
		WillReturnRows(rows)
	// Conditional update misses: the user already moved the row.
	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusPublished, "ext-moved", "moved", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 0))

	adapter := &stubAdapter{results: map[string]stubResult{
		"moved": {externalID: "ext-moved"},
	}}
	loop := newTestLoop(adapter, 25, now)

	stats, err := loop.RunOnce(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, Stats{Attempted: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOverlappingPassesRunExactlyOne(t *testing.T) {
	_, mock := test.NewMockDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(postColumns)
	addDueRow(rows, "slow", models.PlatformLinkedIn, now.Add(-time.Minute))
	mock.ExpectQuery(`SELECT \* FROM scheduled_posts`).
		WithArgs(db.StatusScheduled, models.PlatformLinkedIn, now, 25).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE scheduled_posts`).
		WithArgs(db.StatusPublished, "ext-slow", "slow", db.StatusScheduled).
		WillReturnResult(sqlmock.NewResult(0, 1))

	adapter := &stubAdapter{
		results: map[string]stubResult{"slow": {externalID: "ext-slow"}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	loop := newTestLoop(adapter, 25, now)

	done := make(chan Stats)
	go func() {
		stats, err := loop.RunOnce(context.Background())
		assert.NoError(t, err)
		done <- stats
	}()

	<-adapter.started

	// Second trigger while the first pass is mid-publish: no work, no wait.
	stats, err := loop.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrPassInProgress)
	assert.Equal(t, Stats{}, stats)

	close(adapter.release)
	assert.Equal(t, Stats{Attempted: 1, Published: 1}, <-done)
	assert.NoError(t, mock.ExpectationsWereMet())

	// The permit is free again afterwards.
	mock.ExpectQuery(`SELECT \* FROM scheduled_posts`).
		WithArgs(db.StatusScheduled, models.PlatformLinkedIn, now, 25).
		WillReturnRows(sqlmock.NewRows(postColumns))
	stats, err = loop.RunOnce(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestBatchCapLimitsOnePass(t *testing.T) {
	_, mock := test.NewMockDB(t)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	// The store is asked for at most 25 rows even when 30 are due; the five
	// others wait for the next tick.
	results := make(map[string]stubResult, 25)
	rows := sqlmock.NewRows(postColumns)
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("post-%02d", i)
		addDueRow(rows, id, models.PlatformLinkedIn, now.Add(time.Duration(i-60)*time.Minute))
		results[id] = stubResult{externalID: "ext-" + id}
	}
	mock.ExpectQuery(`SELECT \* FROM scheduled_posts`).
		WithArgs(db.StatusScheduled, models.PlatformLinkedIn, now, 25).
		WillReturnRows(rows)
	for i := 0; i < 25; i++ {
		id := fmt.Sprintf("post-%02d", i)
		mock.ExpectExec(`UPDATE scheduled_posts`).
			WithArgs(db.StatusPublished, "ext-"+id, id, db.StatusScheduled).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	loop := newTestLoop(&stubAdapter{results: results}, 25, now)

	stats, err := loop.RunOnce(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, Stats{Attempted: 25, Published: 25}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
