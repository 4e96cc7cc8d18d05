package handlers

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"castqueue/internal/db"
	"castqueue/internal/feed"
)

// GetFeed serves the public RSS feed of an owner's published posts.
func (h *Handlers) GetFeed(w http.ResponseWriter, r *http.Request) {
	uuid := mux.Vars(r)["uuid"]

	user, err := db.GetUserByFeedUUID(uuid)
	if err != nil {
		http.Error(w, "Feed not found", http.StatusNotFound)
		return
	}

	posts, err := db.GetPublishedPostsByOwner(user.ID)
	if err != nil {
		log.Printf("Error getting published posts: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rss, err := feed.GenerateRSS(user, posts, r)
	if err != nil {
		log.Printf("Error generating RSS: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml")
	w.Write([]byte(rss))
}
