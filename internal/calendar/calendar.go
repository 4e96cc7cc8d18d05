// Package calendar projects scheduled posts into the views the dashboard
// renders: day buckets, platform/status filters, and drag-reschedule targets.
// Everything here is a pure projection over already-loaded rows.
package calendar

import (
	"time"

	"castqueue/internal/models"
)

// Reschedule moves a post to a new calendar date, keeping the original
// time-of-day. Dragging a 09:00 post onto another day keeps it at 09:00.
func Reschedule(oldScheduledAt time.Time, newDate time.Time) time.Time {
	y, m, d := newDate.Date()
	return time.Date(y, m, d,
		oldScheduledAt.Hour(), oldScheduledAt.Minute(), oldScheduledAt.Second(),
		oldScheduledAt.Nanosecond(), oldScheduledAt.Location())
}

// DayBucket groups the posts that display on one calendar date.
type DayBucket struct {
	Date  string                 `json:"date"` // YYYY-MM-DD in the display zone
	Posts []models.ScheduledPost `json:"posts"`
}

// GroupByDay buckets posts by their display date in loc. Rows with a zero
// scheduled_at cannot be placed on the calendar; they are returned separately
// so the UI can flag them instead of silently dropping them.
func GroupByDay(posts []models.ScheduledPost, loc *time.Location) (buckets []DayBucket, flagged []models.ScheduledPost) {
	index := make(map[string]int)
	for _, post := range posts {
		if post.ScheduledAt.IsZero() {
			flagged = append(flagged, post)
			continue
		}
		date := post.ScheduledAt.In(loc).Format("2006-01-02")
		i, ok := index[date]
		if !ok {
			i = len(buckets)
			index[date] = i
			buckets = append(buckets, DayBucket{Date: date})
		}
		buckets[i].Posts = append(buckets[i].Posts, post)
	}
	return buckets, flagged
}

// FilterPosts narrows a loaded list by platform and/or status. Empty values
// mean "no filter". The store is never touched.
func FilterPosts(posts []models.ScheduledPost, platform, status string) []models.ScheduledPost {
	var out []models.ScheduledPost
	for _, post := range posts {
		if platform != "" && post.Platform != platform {
			continue
		}
		if status != "" && post.Status != status {
			continue
		}
		out = append(out, post)
	}
	return out
}
