package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"castqueue/internal/models"
)

// httpAdapter posts JSON to a platform's publish endpoint with a bearer
// token. All the integrated platforms speak this shape through their
// respective relays.
type httpAdapter struct {
	platform string
	endpoint string
	token    string
	client   *http.Client
}

func newHTTPAdapter(platform, endpoint, token string) *httpAdapter {
	return &httpAdapter{
		platform: platform,
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *httpAdapter) Schedulable() bool { return a.endpoint != "" }

type publishRequest struct {
	Platform    string `json:"platform"`
	Provider    string `json:"provider,omitempty"`
	Title       string `json:"title,omitempty"`
	Content     string `json:"content"`
	ContentHTML string `json:"content_html,omitempty"`
}

type publishResponse struct {
	ID string `json:"id"`
}

func (a *httpAdapter) Publish(ctx context.Context, post *models.ScheduledPost) (string, error) {
	if a.token == "" {
		return "", &PublishError{
			Reason:       fmt.Sprintf("%s: no access token configured, re-authenticate the account", a.platform),
			TokenExpired: true,
		}
	}

	reqBody := publishRequest{
		Platform: a.platform,
		Content:  post.Content,
	}
	if post.Provider != nil {
		reqBody.Provider = *post.Provider
	}
	if post.Title != nil {
		reqBody.Title = *post.Title
	}
	if post.ContentHTML != nil {
		reqBody.ContentHTML = *post.ContentHTML
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.token)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &PublishError{Reason: fmt.Sprintf("%s: request failed: %v", a.platform, err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", &PublishError{
			Reason:       fmt.Sprintf("%s: access token expired or revoked (HTTP %d)", a.platform, resp.StatusCode),
			TokenExpired: true,
		}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &PublishError{Reason: fmt.Sprintf("%s: platform returned HTTP %d: %s", a.platform, resp.StatusCode, string(body))}
	}

	var parsed publishResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &PublishError{Reason: fmt.Sprintf("%s: unreadable publish response: %v", a.platform, err)}
	}
	if parsed.ID == "" {
		return "", &PublishError{Reason: a.platform + ": publish response missing post id"}
	}
	return parsed.ID, nil
}

// NewRegistryFromEnv builds the production registry. LinkedIn, Facebook,
// Medium and email have automated integrations; Twitter and Instagram stay
// manual-only until an integration exists for them.
func NewRegistryFromEnv() *Registry {
	r := NewRegistry()
	r.Register(models.PlatformLinkedIn, newHTTPAdapter(
		models.PlatformLinkedIn,
		envOr("LINKEDIN_API_URL", "https://api.linkedin.com/v2/ugcPosts"),
		os.Getenv("LINKEDIN_TOKEN")))
	r.Register(models.PlatformFacebook, newHTTPAdapter(
		models.PlatformFacebook,
		envOr("FACEBOOK_API_URL", "https://graph.facebook.com/v19.0/me/feed"),
		os.Getenv("FACEBOOK_TOKEN")))
	r.Register(models.PlatformMedium, newHTTPAdapter(
		models.PlatformMedium,
		envOr("MEDIUM_API_URL", "https://api.medium.com/v1/posts"),
		os.Getenv("MEDIUM_TOKEN")))
	r.Register(models.PlatformEmail, newHTTPAdapter(
		models.PlatformEmail,
		os.Getenv("MAILER_API_URL"),
		os.Getenv("MAILER_TOKEN")))
	return r
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
