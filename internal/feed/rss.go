package feed

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/eduncan911/podcast"

	"castqueue/internal/models"
)

func getBaseURL(r *http.Request) string {
	if baseURL := os.Getenv("BASE_URL"); baseURL != "" {
		return baseURL
	}

	scheme := r.URL.Scheme
	if scheme == "" {
		scheme = "https"
		if r.Header.Get("X-Forwarded-Proto") != "" {
			scheme = r.Header.Get("X-Forwarded-Proto")
		}
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// GenerateRSS renders an owner's published posts as an RSS feed, so the
// repurposed content is subscribable outside the dashboard.
func GenerateRSS(user *models.User, posts []models.ScheduledPost, r *http.Request) (string, error) {
	baseURL := getBaseURL(r)

	p := podcast.New(
		fmt.Sprintf("%s's published posts", user.TelegramUsername),
		fmt.Sprintf("%s/feed/%s", baseURL, user.FeedUUID),
		"Repurposed podcast content published across platforms.",
		&time.Time{}, &time.Time{},
	)

	for _, post := range posts {
		title := post.Platform
		if post.Title != nil && *post.Title != "" {
			title = *post.Title
		}
		pubDate := post.ScheduledAt
		item := podcast.Item{
			Title:       title,
			Description: post.Content,
			Link:        fmt.Sprintf("%s/posts/%s", baseURL, post.ID),
			PubDate:     &pubDate,
		}
		if _, err := p.AddItem(item); err != nil {
			return "", err
		}
	}

	return p.String(), nil
}
