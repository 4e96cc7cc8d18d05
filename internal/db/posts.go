package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"castqueue/internal/models"
)

const (
	StatusScheduled = "SCHEDULED"
	StatusPublished = "PUBLISHED"
	StatusFailed    = "FAILED"
)

var (
	// ErrNotFound is returned when a post does not exist or is not owned
	// by the caller.
	ErrNotFound = errors.New("post not found")
	// ErrConflict is returned when a conditional update's expected-status
	// precondition failed: someone else already moved the row.
	ErrConflict = errors.New("post status changed concurrently")
)

// PostFilters narrows ListPostsByOwner. Zero values mean "no filter".
type PostFilters struct {
	Platform string
	Status   string
	From     time.Time
	To       time.Time
}

func InsertPost(post *models.ScheduledPost) (models.ScheduledPost, error) {
	created := models.ScheduledPost{}
	query := `
		INSERT INTO scheduled_posts
			(id, owner_id, team_id, transcript_id, platform, provider, title, content, content_html, scheduled_at, status, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING *
	`
	err := DB.Get(&created, query,
		post.ID, post.OwnerID, post.TeamID, post.TranscriptID, post.Platform,
		post.Provider, post.Title, post.Content, post.ContentHTML,
		post.ScheduledAt.UTC(), StatusScheduled, post.Meta)
	if err != nil {
		log.Printf("Error inserting post for owner %d: %v", post.OwnerID, err)
		return created, err
	}
	return created, nil
}

func GetPost(ownerID int64, id string) (models.ScheduledPost, error) {
	post := models.ScheduledPost{}
	err := DB.Get(&post, "SELECT * FROM scheduled_posts WHERE id = $1 AND owner_id = $2", id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return post, ErrNotFound
	}
	return post, err
}

// ListDuePosts returns due rows for the auto-publisher: still SCHEDULED, on a
// platform with an automated integration, scheduled at or before now. Oldest
// first, capped at limit.
func ListDuePosts(now time.Time, platforms []string, limit int) ([]models.ScheduledPost, error) {
	if len(platforms) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`
		SELECT * FROM scheduled_posts
		WHERE status = ? AND platform IN (?) AND scheduled_at <= ?
		ORDER BY scheduled_at ASC
		LIMIT ?`,
		StatusScheduled, platforms, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to build due-posts query: %w", err)
	}

	var posts []models.ScheduledPost
	err = DB.Select(&posts, DB.Rebind(query), args...)
	if err != nil {
		log.Printf("Error listing due posts: %v", err)
		return nil, err
	}
	return posts, nil
}

func ListPostsByOwner(ownerID int64, filters PostFilters) ([]models.ScheduledPost, error) {
	query := "SELECT * FROM scheduled_posts WHERE owner_id = $1"
	args := []interface{}{ownerID}

	if filters.Platform != "" {
		args = append(args, filters.Platform)
		query += fmt.Sprintf(" AND platform = $%d", len(args))
	}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !filters.From.IsZero() {
		args = append(args, filters.From.UTC())
		query += fmt.Sprintf(" AND scheduled_at >= $%d", len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To.UTC())
		query += fmt.Sprintf(" AND scheduled_at < $%d", len(args))
	}
	query += " ORDER BY scheduled_at ASC"

	var posts []models.ScheduledPost
	err := DB.Select(&posts, query, args...)
	if err != nil {
		log.Printf("Error listing posts for owner %d: %v", ownerID, err)
		return nil, err
	}
	return posts, nil
}

// MarkPublished moves a row to PUBLISHED, but only if it is still SCHEDULED.
// A row deleted or edited out of SCHEDULED in the meantime yields ErrConflict.
func MarkPublished(id string, externalID string) error {
	result, err := DB.Exec(`
		UPDATE scheduled_posts
		SET status = $1, external_id = $2, last_error = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		StatusPublished, externalID, id, StatusScheduled)
	if err != nil {
		return err
	}
	return requireOneRow(result, ErrConflict)
}

// MarkFailed moves a row to FAILED with a failure reason, but only if it is
// still SCHEDULED.
func MarkFailed(id string, reason string) error {
	result, err := DB.Exec(`
		UPDATE scheduled_posts
		SET status = $1, last_error = $2, external_id = NULL, updated_at = NOW()
		WHERE id = $3 AND status = $4`,
		StatusFailed, reason, id, StatusScheduled)
	if err != nil {
		return err
	}
	return requireOneRow(result, ErrConflict)
}

// PostPatch is an explicit user edit. Nil fields are left untouched.
type PostPatch struct {
	Title       *string
	Content     *string
	ContentHTML *string
	ScheduledAt *time.Time
	Status      *string
}

func UpdatePost(ownerID int64, id string, patch PostPatch) (models.ScheduledPost, error) {
	updated := models.ScheduledPost{}
	query := `
		UPDATE scheduled_posts
		SET title = COALESCE($1, title),
		    content = COALESCE($2, content),
		    content_html = COALESCE($3, content_html),
		    scheduled_at = COALESCE($4, scheduled_at),
		    status = COALESCE($5, status),
		    updated_at = NOW()
		WHERE id = $6 AND owner_id = $7
		RETURNING *
	`
	var at *time.Time
	if patch.ScheduledAt != nil {
		utc := patch.ScheduledAt.UTC()
		at = &utc
	}
	err := DB.Get(&updated, query, patch.Title, patch.Content, patch.ContentHTML, at, patch.Status, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return updated, ErrNotFound
	}
	if err != nil {
		log.Printf("Error updating post %s for owner %d: %v", id, ownerID, err)
		return updated, err
	}
	return updated, nil
}

// ReschedulePost sets a new scheduled_at on a row that has not been published
// yet. Published rows keep their instant.
func ReschedulePost(ownerID int64, id string, newAt time.Time) (models.ScheduledPost, error) {
	post := models.ScheduledPost{}
	query := `
		UPDATE scheduled_posts
		SET scheduled_at = $1, updated_at = NOW()
		WHERE id = $2 AND owner_id = $3 AND status <> $4
		RETURNING *
	`
	err := DB.Get(&post, query, newAt.UTC(), id, ownerID, StatusPublished)
	if errors.Is(err, sql.ErrNoRows) {
		return post, ErrNotFound
	}
	return post, err
}

// RetryFailedPost is the manual FAILED -> SCHEDULED transition. It clears the
// stored failure reason; the auto-publisher never does this on its own.
func RetryFailedPost(ownerID int64, id string) (models.ScheduledPost, error) {
	post := models.ScheduledPost{}
	query := `
		UPDATE scheduled_posts
		SET status = $1, last_error = NULL, updated_at = NOW()
		WHERE id = $2 AND owner_id = $3 AND status = $4
		RETURNING *
	`
	err := DB.Get(&post, query, StatusScheduled, id, ownerID, StatusFailed)
	if errors.Is(err, sql.ErrNoRows) {
		return post, ErrNotFound
	}
	return post, err
}

// UpdatePostMetrics writes engagement numbers without touching the lifecycle
// columns. Valid against any status, including PUBLISHED.
func UpdatePostMetrics(ownerID int64, id string, metrics types.JSONText) error {
	result, err := DB.Exec(`
		UPDATE scheduled_posts
		SET metrics = $1, updated_at = NOW()
		WHERE id = $2 AND owner_id = $3`,
		metrics, id, ownerID)
	if err != nil {
		log.Printf("Error updating metrics for post %s: %v", id, err)
		return err
	}
	return requireOneRow(result, ErrNotFound)
}

func DeletePost(ownerID int64, id string) error {
	result, err := DB.Exec("DELETE FROM scheduled_posts WHERE id = $1 AND owner_id = $2", id, ownerID)
	if err != nil {
		log.Printf("Error deleting post %s for owner %d: %v", id, ownerID, err)
		return err
	}
	return requireOneRow(result, ErrNotFound)
}

// GetPublishedPostsByOwner returns PUBLISHED rows newest first, for the
// public feed.
func GetPublishedPostsByOwner(ownerID int64) ([]models.ScheduledPost, error) {
	var posts []models.ScheduledPost
	query := `
		SELECT * FROM scheduled_posts
		WHERE owner_id = $1 AND status = $2
		ORDER BY scheduled_at DESC
	`
	err := DB.Select(&posts, query, ownerID, StatusPublished)
	if err != nil {
		log.Printf("Error listing published posts for owner %d: %v", ownerID, err)
		return nil, err
	}
	return posts, nil
}

func requireOneRow(result sql.Result, missing error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
