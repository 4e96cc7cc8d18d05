package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Platform tags understood by the dashboard. Platforms without a publisher
// integration are stored for manual copy/paste workflows.
const (
	PlatformLinkedIn  = "linkedin"
	PlatformTwitter   = "twitter"
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
	PlatformEmail     = "email"
	PlatformMedium    = "medium"
)

// ScheduledPost is one planned delivery of repurposed content to one
// platform at one instant.
type ScheduledPost struct {
	ID           string         `db:"id"`
	OwnerID      int64          `db:"owner_id"`
	TeamID       *int64         `db:"team_id"`
	TranscriptID *string        `db:"transcript_id"`
	Platform     string         `db:"platform"`
	Provider     *string        `db:"provider"`
	Title        *string        `db:"title"`
	Content      string         `db:"content"`
	ContentHTML  *string        `db:"content_html"`
	ScheduledAt  time.Time      `db:"scheduled_at"`
	Status       string         `db:"status"`
	ExternalID   *string        `db:"external_id"`
	LastError    *string        `db:"last_error"`
	Metrics      types.JSONText `db:"metrics"`
	Meta         types.JSONText `db:"meta"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}
