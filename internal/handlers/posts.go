package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx/types"

	"castqueue/internal/calendar"
	"castqueue/internal/db"
	"castqueue/internal/models"
	"castqueue/internal/planner"
)

// postItem is the payload shape shared by single, bulk and series requests.
type postItem struct {
	Platform      string          `json:"platform"`
	Provider      *string         `json:"provider,omitempty"`
	Title         *string         `json:"title,omitempty"`
	Content       string          `json:"content"`
	ContentHTML   *string         `json:"contentHtml,omitempty"`
	TranscriptID  *string         `json:"transcriptId,omitempty"`
	Meta          json.RawMessage `json:"meta,omitempty"`
	OffsetMinutes int             `json:"offsetMinutes,omitempty"`
}

func (item *postItem) validate() error {
	if item.Platform == "" {
		return errors.New("platform is required")
	}
	if item.Content == "" {
		return errors.New("content is required")
	}
	return nil
}

func (item *postItem) toPost(ownerID int64, scheduledAt time.Time) *models.ScheduledPost {
	return &models.ScheduledPost{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		TranscriptID: item.TranscriptID,
		Platform:     item.Platform,
		Provider:     item.Provider,
		Title:        item.Title,
		Content:      item.Content,
		ContentHTML:  item.ContentHTML,
		ScheduledAt:  scheduledAt,
		Meta:         types.JSONText(item.Meta),
	}
}

type createPostRequest struct {
	postItem
	ScheduledAt time.Time `json:"scheduledAt"`
}

func (h *Handlers) CreatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ScheduledAt.IsZero() {
		http.Error(w, "scheduledAt is required", http.StatusBadRequest)
		return
	}

	created, err := db.InsertPost(req.toPost(user.ID, req.ScheduledAt))
	if err != nil {
		log.Printf("Error creating post: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// A post scheduled in the past is due right away.
	if h.registry.IsSchedulable(created.Platform) && !created.ScheduledAt.After(time.Now()) {
		h.enqueuePublishPass()
	}

	writeJSON(w, http.StatusCreated, created)
}

type cadenceRequest struct {
	Kind  string `json:"kind"`
	Hours int    `json:"hours,omitempty"`
}

func (c cadenceRequest) toCadence() planner.Cadence {
	if c.Kind == planner.CadenceCustom {
		return planner.CustomHours(c.Hours)
	}
	return planner.Cadence{Kind: c.Kind}
}

type bulkScheduleRequest struct {
	StartAt time.Time      `json:"startAt"`
	Cadence cadenceRequest `json:"cadence"`
	Items   []postItem     `json:"items"`
}

type bulkScheduleResponse struct {
	Scheduled         int                    `json:"scheduled"`
	SkippedManualOnly int                    `json:"skippedManualOnly"`
	Failed            int                    `json:"failed"`
	Posts             []models.ScheduledPost `json:"posts"`
}

// BulkSchedulePosts staggers a batch of posts from a start instant. The
// planner validates first; nothing is stored when the cadence is invalid.
func (h *Handlers) BulkSchedulePosts(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req bulkScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.StartAt.IsZero() {
		http.Error(w, "startAt is required", http.StatusBadRequest)
		return
	}
	platforms := make([]string, len(req.Items))
	for i := range req.Items {
		if err := req.Items[i].validate(); err != nil {
			http.Error(w, fmt.Sprintf("item %d: %v", i, err), http.StatusBadRequest)
			return
		}
		platforms[i] = req.Items[i].Platform
	}

	entries, skipped, err := planner.Plan(platforms, req.StartAt, req.Cadence.toCadence(), h.registry.IsSchedulable)
	if err != nil {
		var verr *planner.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Reason, http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := bulkScheduleResponse{SkippedManualOnly: skipped, Posts: []models.ScheduledPost{}}
	for _, entry := range entries {
		created, err := db.InsertPost(req.Items[entry.Index].toPost(user.ID, entry.ScheduledAt))
		if err != nil {
			log.Printf("Error inserting bulk post %d: %v", entry.Index, err)
			resp.Failed++
			continue
		}
		resp.Scheduled++
		resp.Posts = append(resp.Posts, created)
	}

	writeJSON(w, http.StatusCreated, resp)
}

type seriesRequest struct {
	StartAt time.Time    `json:"startAt"`
	Days    [][]postItem `json:"days"`
}

// CreateSeries spreads posts over a multi-day calendar series: day N fires at
// the series start plus N-1 days, and items within a day share that instant
// unless they carry an offset.
func (h *Handlers) CreateSeries(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req seriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.StartAt.IsZero() {
		http.Error(w, "startAt is required", http.StatusBadRequest)
		return
	}
	for d, items := range req.Days {
		for i := range items {
			if err := items[i].validate(); err != nil {
				http.Error(w, fmt.Sprintf("day %d item %d: %v", d+1, i, err), http.StatusBadRequest)
				return
			}
		}
	}

	resp := bulkScheduleResponse{Posts: []models.ScheduledPost{}}
	for d, items := range req.Days {
		dayStart, err := planner.DayStart(req.StartAt, d+1)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for i := range items {
			item := &items[i]
			if !h.registry.IsSchedulable(item.Platform) {
				resp.SkippedManualOnly++
				continue
			}
			post := item.toPost(user.ID, dayStart.Add(time.Duration(item.OffsetMinutes)*time.Minute))
			if len(post.Meta) == 0 {
				post.Meta = types.JSONText(fmt.Sprintf(`{"day": %d}`, d+1))
			}
			created, err := db.InsertPost(post)
			if err != nil {
				log.Printf("Error inserting series post (day %d): %v", d+1, err)
				resp.Failed++
				continue
			}
			resp.Scheduled++
			resp.Posts = append(resp.Posts, created)
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

func parseFilters(r *http.Request) (db.PostFilters, error) {
	filters := db.PostFilters{
		Platform: r.URL.Query().Get("platform"),
		Status:   r.URL.Query().Get("status"),
	}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return filters, fmt.Errorf("invalid from: %v", err)
		}
		filters.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return filters, fmt.Errorf("invalid to: %v", err)
		}
		filters.To = t
	}
	return filters, nil
}

func (h *Handlers) ListPosts(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	filters, err := parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	posts, err := db.ListPostsByOwner(user.ID, filters)
	if err != nil {
		log.Printf("Error listing posts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []models.ScheduledPost{}
	}
	writeJSON(w, http.StatusOK, posts)
}

type calendarResponse struct {
	Days    []calendar.DayBucket   `json:"days"`
	Flagged []models.ScheduledPost `json:"flagged"`
}

// GetCalendar projects the owner's posts into per-day buckets for the
// calendar view. Rows that cannot be placed are flagged, not dropped.
func (h *Handlers) GetCalendar(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	filters, err := parseFilters(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			http.Error(w, "invalid tz", http.StatusBadRequest)
			return
		}
	}

	posts, err := db.ListPostsByOwner(user.ID, db.PostFilters{From: filters.From, To: filters.To})
	if err != nil {
		log.Printf("Error listing posts for calendar: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	filtered := calendar.FilterPosts(posts, filters.Platform, filters.Status)
	days, flagged := calendar.GroupByDay(filtered, loc)
	resp := calendarResponse{Days: days, Flagged: flagged}
	if resp.Days == nil {
		resp.Days = []calendar.DayBucket{}
	}
	if resp.Flagged == nil {
		resp.Flagged = []models.ScheduledPost{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) GetPost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	post, err := db.GetPost(user.ID, mux.Vars(r)["id"])
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error getting post: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type updatePostRequest struct {
	Title       *string    `json:"title"`
	Content     *string    `json:"content"`
	ContentHTML *string    `json:"contentHtml"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	Status      *string    `json:"status"`
}

// UpdatePost is the explicit user edit. It may correct content or status on
// any row, but a published row keeps its publish instant.
func (h *Handlers) UpdatePost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Status != nil {
		switch *req.Status {
		case db.StatusScheduled, db.StatusPublished, db.StatusFailed:
		default:
			http.Error(w, "invalid status", http.StatusBadRequest)
			return
		}
	}

	id := mux.Vars(r)["id"]
	existing, err := db.GetPost(user.ID, id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error getting post for update: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if existing.Status == db.StatusPublished && req.ScheduledAt != nil {
		http.Error(w, "Published posts keep their publish time", http.StatusConflict)
		return
	}

	updated, err := db.UpdatePost(user.ID, id, db.PostPatch{
		Title:       req.Title,
		Content:     req.Content,
		ContentHTML: req.ContentHTML,
		ScheduledAt: req.ScheduledAt,
		Status:      req.Status,
	})
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type rescheduleRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, from the calendar drag target
}

// ReschedulePost moves a post to another calendar date, preserving its
// time-of-day.
func (h *Handlers) ReschedulePost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	newDate, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	post, err := db.GetPost(user.ID, id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if post.Status == db.StatusPublished {
		http.Error(w, "Published posts cannot be rescheduled", http.StatusConflict)
		return
	}

	updated, err := db.ReschedulePost(user.ID, id, calendar.Reschedule(post.ScheduledAt, newDate))
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error rescheduling post %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// RetryPost is the manual FAILED -> SCHEDULED transition.
func (h *Handlers) RetryPost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	post, err := db.RetryFailedPost(user.ID, id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Post not found or not in a failed state", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Error retrying post %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if h.registry.IsSchedulable(post.Platform) && !post.ScheduledAt.After(time.Now()) {
		h.enqueuePublishPass()
	}
	writeJSON(w, http.StatusOK, post)
}

// UpdateMetrics writes engagement numbers for a post. The lifecycle status is
// never touched, so published rows accept this too.
func (h *Handlers) UpdateMetrics(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var metrics json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&metrics); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	err := db.UpdatePostMetrics(user.ID, id, types.JSONText(metrics))
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) DeletePost(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	id := mux.Vars(r)["id"]
	err := db.DeletePost(user.ID, id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Post not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
